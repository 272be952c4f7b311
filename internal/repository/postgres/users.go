package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/port"
	"github.com/Faik442/dotnetblueprints/internal/repository"
)

var userColumns = []string{"id", "company_id", "email", "display_name", "password_hash", "deleted", "created_at", "updated_at"}

// UserRepository persists users and their company role memberships.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a user repository over any executor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{exec: exec, builder: newBuilder()}
}

// Create inserts a new user. Emails are stored lower-case.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert("iam.users").
		Columns(userColumns...).
		Values(user.ID, user.CompanyID, strings.ToLower(user.Email), user.DisplayName, user.PasswordHash, false, user.CreatedAt, user.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if repository.IsUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID loads a live user.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.get(ctx, squirrel.Eq{"id": id})
}

// GetByEmail loads a live user by email, ignoring case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.get(ctx, squirrel.Eq{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *UserRepository) get(ctx context.Context, pred squirrel.Sqlizer) (*domain.User, error) {
	stmt, args, err := r.builder.Select(userColumns...).
		From("iam.users").
		Where(pred).
		Where(squirrel.Eq{"deleted": false}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	var user domain.User
	row := r.exec.QueryRow(ctx, stmt, args...)
	if err := row.Scan(&user.ID, &user.CompanyID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.Deleted, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &user, nil
}

// AssignRole links a user to a role in a company. Existing links are kept.
func (r *UserRepository) AssignRole(ctx context.Context, membership domain.UserRole) error {
	stmt, args, err := r.builder.Insert("iam.user_roles").
		Columns("user_id", "company_id", "role_id", "assigned_at").
		Values(membership.UserID, membership.CompanyID, membership.RoleID, membership.AssignedAt).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build assign role sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	return nil
}

// RemoveRole deletes a membership link if present.
func (r *UserRepository) RemoveRole(ctx context.Context, userID, companyID, roleID string) error {
	stmt, args, err := r.builder.Delete("iam.user_roles").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Eq{"company_id": companyID}).
		Where(squirrel.Eq{"role_id": roleID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build remove role sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("remove role: %w", err)
	}

	return nil
}

// UpdateProfile rewrites the email and display name of a live user.
func (r *UserRepository) UpdateProfile(ctx context.Context, id, email, displayName string, at time.Time) error {
	stmt, args, err := r.builder.Update("iam.users").
		Set("email", strings.ToLower(email)).
		Set("display_name", displayName).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"deleted": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update user sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SoftDelete flags a live user as deleted.
func (r *UserRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	return softDelete(ctx, r.exec, r.builder, "iam.users", id, at)
}

// ClearRoles removes every membership of the user.
func (r *UserRepository) ClearRoles(ctx context.Context, userID string) error {
	stmt, args, err := r.builder.Delete("iam.user_roles").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear user roles sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("clear user roles: %w", err)
	}

	return nil
}

var _ port.UserRepository = (*UserRepository)(nil)
