package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/port"
	"github.com/Faik442/dotnetblueprints/internal/repository"
)

// RoleRepository implements role persistence operations.
type RoleRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRoleRepository constructs a role repository over any executor.
func NewRoleRepository(exec pgExecutor) *RoleRepository {
	return &RoleRepository{exec: exec, builder: newBuilder()}
}

// Create inserts a new role.
func (r *RoleRepository) Create(ctx context.Context, role domain.Role) error {
	stmt, args, err := r.builder.Insert("iam.roles").
		Columns("id", "name", "company_id", "is_system", "deleted", "created_at", "updated_at").
		Values(role.ID, role.Name, role.CompanyID, role.IsSystem, false, role.CreatedAt, role.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert role sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if repository.IsUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert role: %w", err)
	}

	return nil
}

// GetByID retrieves a live role by its ID.
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	stmt, args, err := r.builder.Select("id", "name", "company_id", "is_system", "deleted", "created_at", "updated_at").
		From("iam.roles").
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"deleted": false}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select role by id sql: %w", err)
	}

	var (
		role      domain.Role
		companyID sql.NullString
	)

	row := r.exec.QueryRow(ctx, stmt, args...)
	if err := row.Scan(&role.ID, &role.Name, &companyID, &role.IsSystem, &role.Deleted, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan role by id: %w", err)
	}

	if companyID.Valid {
		role.CompanyID = &companyID.String
	}

	return &role, nil
}

// NameTaken reports whether a live role of the company uses name. An empty
// companyID checks global roles.
func (r *RoleRepository) NameTaken(ctx context.Context, companyID, name, excludeID string) (bool, error) {
	query := r.builder.Select("1").
		From("iam.roles").
		Where(squirrel.Expr("lower(name) = lower(?)", name)).
		Where(squirrel.Eq{"deleted": false})
	if companyID == "" {
		query = query.Where(squirrel.Eq{"company_id": nil})
	} else {
		query = query.Where(squirrel.Eq{"company_id": companyID})
	}
	if excludeID != "" {
		query = query.Where(squirrel.NotEq{"id": excludeID})
	}

	return exists(ctx, r.exec, query, "role name")
}

// Rename updates the name of a live role.
func (r *RoleRepository) Rename(ctx context.Context, id, name string, at time.Time) error {
	stmt, args, err := r.builder.Update("iam.roles").
		Set("name", name).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"deleted": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build rename role sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("rename role: %w", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SoftDelete flags a live role as deleted. Links are removed separately.
func (r *RoleRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	return softDelete(ctx, r.exec, r.builder, "iam.roles", id, at)
}

// ListIDs returns every live role id.
func (r *RoleRepository) ListIDs(ctx context.Context) ([]string, error) {
	stmt, args, err := r.builder.Select("id").
		From("iam.roles").
		Where(squirrel.Eq{"deleted": false}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list role ids sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query role ids: %w", err)
	}

	return collectStrings(rows, "role id")
}

// ListIDsForUser returns the roles userID holds inside companyID. Only roles
// owned by that company or global roles count.
func (r *RoleRepository) ListIDsForUser(ctx context.Context, userID, companyID string) ([]string, error) {
	stmt, args, err := r.builder.Select("DISTINCT r.id").
		From("iam.user_roles ur").
		Join("iam.roles r ON r.id = ur.role_id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		Where(squirrel.Eq{"ur.company_id": companyID}).
		Where(squirrel.Eq{"r.deleted": false}).
		Where(squirrel.Or{
			squirrel.Eq{"r.company_id": companyID},
			squirrel.Eq{"r.company_id": nil},
		}).
		OrderBy("r.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list user role ids sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query user role ids: %w", err)
	}

	return collectStrings(rows, "user role id")
}

// PermissionIDs returns the live permission ids linked to the role.
func (r *RoleRepository) PermissionIDs(ctx context.Context, roleID string) ([]string, error) {
	return r.rolePermissionColumn(ctx, roleID, "p.id")
}

// PermissionKeys returns the live permission keys linked to the role.
func (r *RoleRepository) PermissionKeys(ctx context.Context, roleID string) ([]string, error) {
	return r.rolePermissionColumn(ctx, roleID, "p.key")
}

func (r *RoleRepository) rolePermissionColumn(ctx context.Context, roleID, column string) ([]string, error) {
	stmt, args, err := r.builder.Select(column).
		From("iam.role_permissions rp").
		Join("iam.permissions p ON p.id = rp.permission_id").
		Where(squirrel.Eq{"rp.role_id": roleID}).
		Where(squirrel.Eq{"p.deleted": false}).
		OrderBy(column).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build role permissions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query role permissions: %w", err)
	}

	return collectStrings(rows, "role permission")
}

// AttachPermissions links permissions to the role, ignoring existing links.
func (r *RoleRepository) AttachPermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	if len(permissionIDs) == 0 {
		return nil
	}

	builder := r.builder.Insert("iam.role_permissions").Columns("role_id", "permission_id")
	for _, permissionID := range permissionIDs {
		builder = builder.Values(roleID, permissionID)
	}

	stmt, args, err := builder.Suffix("ON CONFLICT DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("build attach permissions sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("attach permissions: %w", err)
	}

	return nil
}

// DetachPermissions removes the given permission links from the role.
func (r *RoleRepository) DetachPermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	if len(permissionIDs) == 0 {
		return nil
	}

	stmt, args, err := r.builder.Delete("iam.role_permissions").
		Where(squirrel.Eq{"role_id": roleID}).
		Where(squirrel.Eq{"permission_id": permissionIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build detach permissions sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("detach permissions: %w", err)
	}

	return nil
}

// ClearPermissions removes every permission link of the role.
func (r *RoleRepository) ClearPermissions(ctx context.Context, roleID string) error {
	return r.deleteLinks(ctx, "iam.role_permissions", roleID)
}

// ClearMembers removes every membership referencing the role.
func (r *RoleRepository) ClearMembers(ctx context.Context, roleID string) error {
	return r.deleteLinks(ctx, "iam.user_roles", roleID)
}

func (r *RoleRepository) deleteLinks(ctx context.Context, table, roleID string) error {
	stmt, args, err := r.builder.Delete(table).
		Where(squirrel.Eq{"role_id": roleID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete %s sql: %w", table, err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}

	return nil
}

var _ port.RoleRepository = (*RoleRepository)(nil)
