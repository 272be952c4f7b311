package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/port"
)

// TokenTypeAccess marks access tokens in the typ claim.
const TokenTypeAccess = "access"

var (
	// ErrInvalidToken covers bad signatures, claims and formats.
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrTokenExpired indicates the exp claim has passed.
	ErrTokenExpired = errors.New("jwt: token expired")
)

// AccessTokenClaims is the JSON claim set of an access token.
type AccessTokenClaims struct {
	Email     string           `json:"email,omitempty"`
	Name      string           `json:"name,omitempty"`
	Type      string           `json:"typ"`
	CompanyID string           `json:"company_id,omitempty"`
	RoleIDs   jwt.ClaimStrings `json:"role_id,omitempty"`
	jwt.RegisteredClaims
}

// HMACSignerConfig configures the HS256 signer.
type HMACSignerConfig struct {
	Issuer    string
	Audiences []string
	Key       []byte
}

// HMACSigner signs and validates HS256 access tokens with a shared key.
type HMACSigner struct {
	issuer    string
	audiences []string
	key       []byte
	now       func() time.Time
}

// NewHMACSigner builds a signer. Issuer, at least one audience and a key are required.
func NewHMACSigner(cfg HMACSignerConfig) (*HMACSigner, error) {
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("jwt: issuer is required")
	}
	if len(cfg.Audiences) == 0 {
		return nil, errors.New("jwt: at least one audience is required")
	}
	if len(cfg.Key) == 0 {
		return nil, errors.New("jwt: signing key is required")
	}

	key := make([]byte, len(cfg.Key))
	copy(key, cfg.Key)
	audiences := make([]string, len(cfg.Audiences))
	copy(audiences, cfg.Audiences)

	return &HMACSigner{issuer: cfg.Issuer, audiences: audiences, key: key, now: time.Now}, nil
}

// WithClock sets the clock used during validation.
func (s *HMACSigner) WithClock(now func() time.Time) *HMACSigner {
	if now != nil {
		s.now = now
	}
	return s
}

// Sign produces a compact HS256 token for the claims.
func (s *HMACSigner) Sign(claims port.AccessClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		Email:     claims.Email,
		Name:      claims.Name,
		Type:      TokenTypeAccess,
		CompanyID: claims.CompanyID,
		RoleIDs:   jwt.ClaimStrings(claims.RoleIDs),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID,
			ID:        claims.JTI,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings(s.audiences),
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			NotBefore: jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Parse validates signature, issuer, audience, expiry with no leeway and the
// access typ marker, then returns the caller identity.
func (s *HMACSigner) Parse(raw string) (*domain.Identity, error) {
	claims := &AccessTokenClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Type != TokenTypeAccess {
		return nil, fmt.Errorf("%w: unexpected typ %q", ErrInvalidToken, claims.Type)
	}
	if !s.audienceAccepted(claims.Audience) {
		return nil, fmt.Errorf("%w: audience not accepted", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	identity := &domain.Identity{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		JTI:       claims.ID,
		CompanyID: claims.CompanyID,
		RoleIDs:   append([]string(nil), claims.RoleIDs...),
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}

	return identity, nil
}

func (s *HMACSigner) audienceAccepted(audiences jwt.ClaimStrings) bool {
	for _, aud := range audiences {
		for _, allowed := range s.audiences {
			if aud == allowed {
				return true
			}
		}
	}
	return false
}

var _ port.AccessTokenSigner = (*HMACSigner)(nil)
