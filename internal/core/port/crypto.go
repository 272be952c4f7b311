package port

import (
	"time"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
)

// AccessTokenSigner signs and validates access tokens.
type AccessTokenSigner interface {
	Sign(claims AccessClaims) (string, error)
	Parse(token string) (*domain.Identity, error)
}

// AccessClaims are the inputs of a signed access token.
type AccessClaims struct {
	UserID    string
	Email     string
	Name      string
	JTI       string
	CompanyID string
	RoleIDs   []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}
