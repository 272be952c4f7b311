package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/port"
	"github.com/Faik442/dotnetblueprints/internal/infra/logger"
	"github.com/Faik442/dotnetblueprints/internal/repository"
)

const minPasswordLength = 8

// MembershipService manages users and their roles inside a company. Role
// changes reach a user's token only on the next issuance or refresh.
type MembershipService struct {
	store  port.Store
	hasher port.PasswordHasher
	events port.EventPublisher
	retry  RetryPolicy
	logger *zap.Logger
	now    func() time.Time
}

// NewMembershipService constructs a MembershipService.
func NewMembershipService(store port.Store, hasher port.PasswordHasher, events port.EventPublisher, retry RetryPolicy, logger *zap.Logger) *MembershipService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MembershipService{
		store:  store,
		hasher: hasher,
		events: events,
		retry:  retry,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser adds a user to the company. Emails are unique platform wide.
func (s *MembershipService) CreateUser(ctx context.Context, companyID, email, name, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	v := &ValidationError{}
	if email == "" {
		v.add("email", "email is required")
	}
	if err := validateName("name", name); err != nil {
		var fieldErr *ValidationError
		if errors.As(err, &fieldErr) {
			for _, msg := range fieldErr.Fields["name"] {
				v.add("name", msg)
			}
		}
	}
	if len(password) < minPasswordLength {
		v.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := domain.User{
		ID:           uuid.NewString(),
		CompanyID:    companyID,
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		if _, err := repos.Companies.GetByID(ctx, companyID); err != nil {
			return mapLookup(err, "Company", companyID)
		}

		if _, err := repos.Users.GetByEmail(ctx, email); err == nil {
			return conflict("email %q is already registered", email)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("lookup user by email: %w", err)
		}

		if err := repos.Users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return conflict("email %q is already registered", email)
			}
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return &user, nil
}

// AssignRole links a company or global role to a company member. Assigning a
// held role again changes nothing.
func (s *MembershipService) AssignRole(ctx context.Context, actorID, companyID, userID, roleID string) error {
	now := s.now()
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		if err := s.checkMembership(ctx, repos, companyID, userID, roleID); err != nil {
			return err
		}
		if err := repos.Users.AssignRole(ctx, domain.UserRole{
			UserID:     userID,
			CompanyID:  companyID,
			RoleID:     roleID,
			AssignedAt: now,
		}); err != nil {
			return fmt.Errorf("assign role: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, domain.MembershipChangedEvent{
		EventID:   uuid.NewString(),
		CompanyID: companyID,
		UserID:    userID,
		RoleID:    roleID,
		Assigned:  true,
		ChangedBy: actorID,
		ChangedAt: now,
	})
	return nil
}

// RemoveRole unlinks a role from a company member. Removing a role the user
// does not hold changes nothing.
func (s *MembershipService) RemoveRole(ctx context.Context, actorID, companyID, userID, roleID string) error {
	now := s.now()
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		if err := s.checkMembership(ctx, repos, companyID, userID, roleID); err != nil {
			return err
		}
		if err := repos.Users.RemoveRole(ctx, userID, companyID, roleID); err != nil {
			return fmt.Errorf("remove role: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, domain.MembershipChangedEvent{
		EventID:   uuid.NewString(),
		CompanyID: companyID,
		UserID:    userID,
		RoleID:    roleID,
		Assigned:  false,
		ChangedBy: actorID,
		ChangedAt: now,
	})
	return nil
}

// UpdateProfile rewrites a company member's email and display name. An empty
// name keeps the current one.
func (s *MembershipService) UpdateProfile(ctx context.Context, companyID, userID, email, name string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" {
		return nil, InvalidField("email", "email is required")
	}
	if len([]rune(name)) > maxNameLength {
		return nil, InvalidField("name", fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}

	now := s.now()
	var user *domain.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		var err error
		user, err = s.member(ctx, repos, companyID, userID)
		if err != nil {
			return err
		}
		if name == "" {
			name = user.DisplayName
		}

		if other, err := repos.Users.GetByEmail(ctx, email); err == nil && other.ID != userID {
			return conflict("email %q is already registered", email)
		} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("lookup user by email: %w", err)
		}

		if err := repos.Users.UpdateProfile(ctx, userID, email, name, now); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return conflict("email %q is already registered", email)
			}
			return mapLookup(err, "User", userID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	user.Email, user.DisplayName, user.UpdatedAt = email, name, now
	user.PasswordHash = ""
	return user, nil
}

// RemoveUser soft-deletes a company member and drops every role they hold.
// Outstanding refresh tokens stop working because refresh requires a live user.
func (s *MembershipService) RemoveUser(ctx context.Context, actorID, companyID, userID string) error {
	now := s.now()
	var roleIDs []string
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		if _, err := s.member(ctx, repos, companyID, userID); err != nil {
			return err
		}

		var err error
		roleIDs, err = repos.Roles.ListIDsForUser(ctx, userID, companyID)
		if err != nil {
			return fmt.Errorf("list user roles: %w", err)
		}
		if err := repos.Users.ClearRoles(ctx, userID); err != nil {
			return fmt.Errorf("clear user roles: %w", err)
		}
		if err := repos.Users.SoftDelete(ctx, userID, now); err != nil {
			return mapLookup(err, "User", userID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.WithContext(ctx, s.logger).Info("user removed from company",
		zap.String("user_id", userID),
		zap.String("company_id", companyID),
		zap.Int("roles", len(roleIDs)),
	)
	for _, roleID := range roleIDs {
		s.publish(ctx, domain.MembershipChangedEvent{
			EventID:   uuid.NewString(),
			CompanyID: companyID,
			UserID:    userID,
			RoleID:    roleID,
			Assigned:  false,
			ChangedBy: actorID,
			ChangedAt: now,
		})
	}
	return nil
}

// EffectivePermissions returns the keys the caller's current memberships grant
// in the caller's company, read from the store rather than the token.
func (s *MembershipService) EffectivePermissions(ctx context.Context, identity *domain.Identity) ([]string, error) {
	if identity == nil || identity.UserID == "" {
		return nil, ErrUnauthenticated
	}
	repos := s.store.Repositories()

	user, err := retryRead(ctx, s.retry, func(ctx context.Context) (*domain.User, error) {
		return repos.Users.GetByID(ctx, identity.UserID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user.CompanyID != identity.CompanyID {
		return nil, ErrForbidden
	}

	roleIDs, err := retryRead(ctx, s.retry, func(ctx context.Context) ([]string, error) {
		return repos.Roles.ListIDsForUser(ctx, user.ID, user.CompanyID)
	})
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	if len(roleIDs) == 0 {
		return []string{}, nil
	}

	keys, err := retryRead(ctx, s.retry, func(ctx context.Context) ([]string, error) {
		return repos.Permissions.KeysForRoles(ctx, roleIDs)
	})
	if err != nil {
		return nil, fmt.Errorf("read permission keys: %w", err)
	}
	return domain.NormalizePermissionKeys(keys), nil
}

// member loads a live user of companyID. Users of other companies are
// reported as not found.
func (s *MembershipService) member(ctx context.Context, repos port.Repositories, companyID, userID string) (*domain.User, error) {
	user, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapLookup(err, "User", userID)
	}
	if user.CompanyID != companyID {
		return nil, NotFound("User", userID)
	}
	return user, nil
}

func (s *MembershipService) checkMembership(ctx context.Context, repos port.Repositories, companyID, userID, roleID string) error {
	if _, err := s.member(ctx, repos, companyID, userID); err != nil {
		return err
	}

	role, err := repos.Roles.GetByID(ctx, roleID)
	if err != nil {
		return mapLookup(err, "Role", roleID)
	}
	if !role.UsableIn(companyID) {
		return NotFound("Role", roleID)
	}
	return nil
}

func (s *MembershipService) publish(ctx context.Context, event domain.MembershipChangedEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishMembershipChanged(ctx, event); err != nil {
		logger.WithContext(ctx, s.logger).Warn("publish membership changed failed",
			zap.String("user_id", event.UserID),
			zap.String("role_id", event.RoleID),
			zap.Error(err),
		)
	}
}
