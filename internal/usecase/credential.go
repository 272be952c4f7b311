package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/port"
	"github.com/Faik442/dotnetblueprints/internal/infra/logger"
	"github.com/Faik442/dotnetblueprints/internal/infra/security"
	"github.com/Faik442/dotnetblueprints/internal/repository"
)

// CredentialConfig holds token lifetimes.
type CredentialConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// CredentialService issues, rotates and validates credentials. Access tokens
// carry the caller's company and role ids as of issuance.
type CredentialService struct {
	store  port.Store
	signer port.AccessTokenSigner
	hasher port.PasswordHasher
	events port.EventPublisher
	cfg    CredentialConfig
	logger *zap.Logger
	now    func() time.Time

	decoyOnce sync.Once
	decoy     string
}

// NewCredentialService constructs a CredentialService.
func NewCredentialService(
	store port.Store,
	signer port.AccessTokenSigner,
	hasher port.PasswordHasher,
	events port.EventPublisher,
	cfg CredentialConfig,
	logger *zap.Logger,
) *CredentialService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialService{
		store:  store,
		signer: signer,
		hasher: hasher,
		events: events,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (s *CredentialService) WithClock(now func() time.Time) *CredentialService {
	if now != nil {
		s.now = now
	}
	return s
}

// Login verifies the password and issues a token pair. Unknown emails, deleted
// users and wrong passwords are indistinguishable to the caller.
func (s *CredentialService) Login(ctx context.Context, email, password string) (domain.TokenPair, error) {
	v := &ValidationError{}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		v.add("email", "email is required")
	}
	if password == "" {
		v.add("password", "password is required")
	}
	if err := v.orNil(); err != nil {
		return domain.TokenPair{}, err
	}

	user, err := s.store.Repositories().Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Unknown emails spend one verify, same as a wrong password.
			if decoy := s.decoyHash(); decoy != "" {
				_, _ = s.hasher.Verify(password, decoy)
			}
			return domain.TokenPair{}, ErrUnauthenticated
		}
		return domain.TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		logger.WithContext(ctx, s.logger).Warn("stored password hash unreadable",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return domain.TokenPair{}, ErrUnauthenticated
	}
	if !ok {
		return domain.TokenPair{}, ErrUnauthenticated
	}

	return s.issue(ctx, user)
}

func (s *CredentialService) decoyHash() string {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			s.logger.Warn("decoy password hash unavailable", zap.Error(err))
			return
		}
		s.decoy = hash
	})
	return s.decoy
}

// IssueAccess issues a token pair for a live user.
func (s *CredentialService) IssueAccess(ctx context.Context, userID string) (domain.TokenPair, error) {
	user, err := s.liveUser(ctx, s.store.Repositories(), userID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return s.issue(ctx, user)
}

func (s *CredentialService) issue(ctx context.Context, user *domain.User) (domain.TokenPair, error) {
	if err := ctx.Err(); err != nil {
		return domain.TokenPair{}, err
	}

	var pair domain.TokenPair
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		var err error
		pair, err = s.mint(ctx, repos, user, uuid.NewString())
		return err
	})
	if err != nil {
		return domain.TokenPair{}, err
	}

	logger.WithContext(ctx, s.logger).Info("credentials issued",
		zap.String("user_id", user.ID),
		zap.String("company_id", user.CompanyID),
	)
	return pair, nil
}

// Refresh exchanges a refresh secret for a new pair. The presented token is
// revoked in the same transaction that stores its successor, so a secret can
// be exchanged once.
func (s *CredentialService) Refresh(ctx context.Context, rawSecret string) (domain.TokenPair, error) {
	rawSecret = strings.TrimSpace(rawSecret)
	if rawSecret == "" {
		return domain.TokenPair{}, ErrUnauthenticated
	}

	now := s.now()
	repos := s.store.Repositories()

	current, err := repos.Tokens.GetRefreshTokenByHash(ctx, security.HashSecret(rawSecret))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.TokenPair{}, ErrUnauthenticated
		}
		return domain.TokenPair{}, fmt.Errorf("lookup refresh token: %w", err)
	}
	if !current.Usable(now) {
		return domain.TokenPair{}, ErrUnauthenticated
	}

	user, err := s.liveUser(ctx, repos, current.UserID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if err := ctx.Err(); err != nil {
		return domain.TokenPair{}, err
	}

	newJTI := uuid.NewString()
	var pair domain.TokenPair
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		if err := repos.Tokens.RevokeRefreshToken(ctx, current.ID, now, newJTI); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUnauthenticated
			}
			return fmt.Errorf("revoke refresh token: %w", err)
		}

		var err error
		pair, err = s.mint(ctx, repos, user, newJTI)
		return err
	})
	if err != nil {
		return domain.TokenPair{}, err
	}

	event := domain.RefreshTokenRotatedEvent{
		EventID:   uuid.NewString(),
		UserID:    user.ID,
		OldJTI:    current.IssuedForJTI,
		NewJTI:    newJTI,
		RotatedAt: now,
	}
	if s.events != nil {
		if err := s.events.PublishRefreshTokenRotated(ctx, event); err != nil {
			logger.WithContext(ctx, s.logger).Warn("publish refresh rotation failed", zap.Error(err))
		}
	}

	return pair, nil
}

// ValidateAccess parses an access token into the caller identity.
func (s *CredentialService) ValidateAccess(_ context.Context, raw string) (*domain.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	identity, err := s.signer.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return identity, nil
}

// mint reads the current role ids, signs the access token and stores the new
// refresh token and access record through repos.
func (s *CredentialService) mint(ctx context.Context, repos port.Repositories, user *domain.User, jti string) (domain.TokenPair, error) {
	now := s.now()

	roleIDs, err := repos.Roles.ListIDsForUser(ctx, user.ID, user.CompanyID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("list user roles: %w", err)
	}

	accessExpires := now.Add(s.cfg.AccessTTL)
	access, err := s.signer.Sign(port.AccessClaims{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.DisplayName,
		JTI:       jti,
		CompanyID: user.CompanyID,
		RoleIDs:   roleIDs,
		IssuedAt:  now,
		ExpiresAt: accessExpires,
	})
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	secret, err := security.GenerateRefreshSecret()
	if err != nil {
		return domain.TokenPair{}, err
	}
	refreshExpires := now.Add(s.cfg.RefreshTTL)

	if err := repos.Tokens.CreateRefreshToken(ctx, domain.RefreshToken{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		TokenHash:    security.HashSecret(secret),
		IssuedForJTI: jti,
		CreatedAt:    now,
		ExpiresAt:    refreshExpires,
	}); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	if err := repos.Tokens.CreateAccessTokenRecord(ctx, domain.AccessTokenRecord{
		UserID:    user.ID,
		Token:     access,
		JTI:       jti,
		CreatedAt: now,
		ExpiresAt: accessExpires,
	}); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store access token record: %w", err)
	}

	return domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     secret,
		RefreshExpiresAt: refreshExpires,
	}, nil
}

func (s *CredentialService) liveUser(ctx context.Context, repos port.Repositories, userID string) (*domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	user, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user.Deleted {
		return nil, ErrUnauthenticated
	}
	return user, nil
}
