package domain

import "time"

// RefreshToken is the stored side of a refresh credential. Only the hash of
// the secret handed to the client is kept.
type RefreshToken struct {
	ID            string
	UserID        string
	TokenHash     string
	IssuedForJTI  string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	RevokedAt     *time.Time
	ReplacedByJTI *string
}

// Usable reports whether the token may still be exchanged at the given instant.
// A token expiring exactly at that instant is no longer usable.
func (t RefreshToken) Usable(at time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(at)
}

// Revoke records the revocation and the jti of the access token that replaced
// it. A second call leaves the first revocation in place and returns false.
func (t *RefreshToken) Revoke(at time.Time, replacedByJTI string) bool {
	if t.RevokedAt != nil {
		return false
	}
	t.RevokedAt = &at
	if replacedByJTI != "" {
		t.ReplacedByJTI = &replacedByJTI
	}
	return true
}

// AccessTokenRecord is the audit trace of an issued access token.
type AccessTokenRecord struct {
	UserID    string
	Token     string
	JTI       string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// TokenPair is returned by login and refresh. RefreshToken holds the raw secret
// and is only ever available here.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
