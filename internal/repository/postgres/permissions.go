package postgres

import (
	"context"
	"database/sql"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/port"
	"github.com/Faik442/dotnetblueprints/internal/repository"
)

// PermissionRepository reads and seeds permission definitions.
type PermissionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPermissionRepository constructs a permission repository over any executor.
func NewPermissionRepository(exec pgExecutor) *PermissionRepository {
	return &PermissionRepository{exec: exec, builder: newBuilder()}
}

// EnsureCatalog inserts the definitions whose keys are not stored yet.
// Existing keys are left untouched.
func (r *PermissionRepository) EnsureCatalog(ctx context.Context, defs []domain.PermissionDefinition) (int, error) {
	if len(defs) == 0 {
		return 0, nil
	}

	builder := r.builder.Insert("iam.permissions").Columns("id", "key", "description", "deleted")
	for _, def := range defs {
		builder = builder.Values(uuid.NewString(), def.Key, def.Description, false)
	}

	stmt, args, err := builder.Suffix("ON CONFLICT (key) DO NOTHING").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build ensure catalog sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("ensure catalog: %w", err)
	}

	return int(res.RowsAffected()), nil
}

// List returns every live permission ordered by key.
func (r *PermissionRepository) List(ctx context.Context) ([]domain.Permission, error) {
	return r.list(ctx, r.builder.Select("id", "key", "description").
		From("iam.permissions").
		Where(squirrel.Eq{"deleted": false}).
		OrderBy("key"))
}

// ListByIDs returns the live permissions among ids.
func (r *PermissionRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	return r.list(ctx, r.builder.Select("id", "key", "description").
		From("iam.permissions").
		Where(squirrel.Eq{"id": ids}).
		Where(squirrel.Eq{"deleted": false}).
		OrderBy("key"))
}

func (r *PermissionRepository) list(ctx context.Context, query squirrel.SelectBuilder) ([]domain.Permission, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list permissions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()

	var permissions []domain.Permission
	for rows.Next() {
		var (
			permission  domain.Permission
			description sql.NullString
		)
		if err := rows.Scan(&permission.ID, &permission.Key, &description); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		if description.Valid {
			permission.Description = &description.String
		}
		permissions = append(permissions, permission)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}

	return permissions, nil
}

// KeysForRoles returns the distinct keys granted through the live roles.
func (r *PermissionRepository) KeysForRoles(ctx context.Context, roleIDs []string) ([]string, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}

	stmt, args, err := r.builder.Select("DISTINCT p.key").
		From("iam.role_permissions rp").
		Join("iam.permissions p ON p.id = rp.permission_id").
		Join("iam.roles r ON r.id = rp.role_id").
		Where(squirrel.Eq{"rp.role_id": roleIDs}).
		Where(squirrel.Eq{"p.deleted": false}).
		Where(squirrel.Eq{"r.deleted": false}).
		OrderBy("p.key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build keys for roles sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query keys for roles: %w", err)
	}

	return collectStrings(rows, "permission key")
}

// RoleIDsGranting returns the roles linked to the permission.
func (r *PermissionRepository) RoleIDsGranting(ctx context.Context, permissionID string) ([]string, error) {
	stmt, args, err := r.builder.Select("role_id").
		From("iam.role_permissions").
		Where(squirrel.Eq{"permission_id": permissionID}).
		OrderBy("role_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build roles granting sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query roles granting: %w", err)
	}

	return collectStrings(rows, "role id")
}

// Unlink removes the permission from every role.
func (r *PermissionRepository) Unlink(ctx context.Context, permissionID string) error {
	stmt, args, err := r.builder.Delete("iam.role_permissions").
		Where(squirrel.Eq{"permission_id": permissionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build unlink permission sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("unlink permission: %w", err)
	}

	return nil
}

// SoftDelete retires a live permission. Its key stays reserved in the catalog.
func (r *PermissionRepository) SoftDelete(ctx context.Context, permissionID string) error {
	stmt, args, err := r.builder.Update("iam.permissions").
		Set("deleted", true).
		Where(squirrel.Eq{"id": permissionID}).
		Where(squirrel.Eq{"deleted": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build retire permission sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("retire permission: %w", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.PermissionRepository = (*PermissionRepository)(nil)
