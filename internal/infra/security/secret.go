package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// RefreshSecretBytes is the entropy of a refresh secret.
const RefreshSecretBytes = 64

// GenerateRefreshSecret returns RefreshSecretBytes random bytes, base64 encoded.
func GenerateRefreshSecret() (string, error) {
	buf := make([]byte, RefreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// HashSecret returns the upper-case hex SHA-256 of value. Only this digest is stored.
func HashSecret(value string) string {
	sum := sha256.Sum256([]byte(value))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
