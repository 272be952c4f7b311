package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/port"
	"github.com/Faik442/dotnetblueprints/internal/infra/logger"
	"github.com/Faik442/dotnetblueprints/internal/repository"
)

const maxNameLength = 128

// CacheRepairer refreshes a role's cached permission keys after a committed change.
type CacheRepairer interface {
	Repair(ctx context.Context, roleID string) error
}

// RoleService manages company roles and the permissions they grant.
type RoleService struct {
	store    port.Store
	repairer CacheRepairer
	events   port.EventPublisher
	retry    RetryPolicy
	logger   *zap.Logger
	now      func() time.Time
}

// NewRoleService constructs a RoleService.
func NewRoleService(store port.Store, repairer CacheRepairer, events port.EventPublisher, retry RetryPolicy, logger *zap.Logger) *RoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{
		store:    store,
		repairer: repairer,
		events:   events,
		retry:    retry,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateRole adds a role to the company with an initial permission set.
func (s *RoleService) CreateRole(ctx context.Context, actorID, companyID, name string, permissionIDs []string) (*domain.Role, error) {
	name = strings.TrimSpace(name)
	if err := validateName("name", name); err != nil {
		return nil, err
	}
	ids := normalizeIDs(permissionIDs)

	now := s.now()
	role := domain.Role{
		ID:        uuid.NewString(),
		Name:      name,
		CompanyID: &companyID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var keys []string
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		if _, err := repos.Companies.GetByID(ctx, companyID); err != nil {
			return mapLookup(err, "Company", companyID)
		}

		taken, err := repos.Roles.NameTaken(ctx, companyID, name, "")
		if err != nil {
			return fmt.Errorf("check role name: %w", err)
		}
		if taken {
			return conflict("role name %q is already used in the company", name)
		}

		perms, err := resolvePermissions(ctx, repos, ids)
		if err != nil {
			return err
		}

		if err := repos.Roles.Create(ctx, role); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return conflict("role name %q is already used in the company", name)
			}
			return fmt.Errorf("create role: %w", err)
		}
		if len(ids) > 0 {
			if err := repos.Roles.AttachPermissions(ctx, role.ID, ids); err != nil {
				return fmt.Errorf("attach permissions: %w", err)
			}
		}

		keys = permissionKeys(perms)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.afterPermissionChange(ctx, actorID, companyID, role.ID, keys, ids, nil); err != nil {
		return &role, err
	}
	return &role, nil
}

// RenameRole changes a company role's name. Renaming to the current name, in
// any casing, changes nothing.
func (s *RoleService) RenameRole(ctx context.Context, companyID, roleID, name string) (*domain.Role, error) {
	name = strings.TrimSpace(name)
	if err := validateName("name", name); err != nil {
		return nil, err
	}

	var role *domain.Role
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		var err error
		role, err = ownedRole(ctx, repos, companyID, roleID)
		if err != nil {
			return err
		}
		if role.HasName(name) {
			return nil
		}

		taken, err := repos.Roles.NameTaken(ctx, companyID, name, roleID)
		if err != nil {
			return fmt.Errorf("check role name: %w", err)
		}
		if taken {
			return conflict("role name %q is already used in the company", name)
		}

		now := s.now()
		if err := repos.Roles.Rename(ctx, roleID, name, now); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return conflict("role name %q is already used in the company", name)
			}
			return mapLookup(err, "Role", roleID)
		}
		role.Name = name
		role.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return role, nil
}

// AssignPermissions grants additional permissions. Already linked ids are skipped.
func (s *RoleService) AssignPermissions(ctx context.Context, actorID, companyID, roleID string, permissionIDs []string) error {
	ids := normalizeIDs(permissionIDs)
	if len(ids) == 0 {
		return InvalidField("permissionIds", "at least one permission id is required")
	}

	var (
		added []string
		keys  []string
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		if _, err := ownedRole(ctx, repos, companyID, roleID); err != nil {
			return err
		}
		if _, err := resolvePermissions(ctx, repos, ids); err != nil {
			return err
		}

		current, err := repos.Roles.PermissionIDs(ctx, roleID)
		if err != nil {
			return fmt.Errorf("read role permissions: %w", err)
		}
		added = difference(ids, current)
		if len(added) == 0 {
			return nil
		}

		if err := repos.Roles.AttachPermissions(ctx, roleID, added); err != nil {
			return fmt.Errorf("attach permissions: %w", err)
		}
		keys, err = repos.Roles.PermissionKeys(ctx, roleID)
		if err != nil {
			return fmt.Errorf("read role permissions: %w", err)
		}
		return nil
	})
	if err != nil || len(added) == 0 {
		return err
	}

	return s.afterPermissionChange(ctx, actorID, companyID, roleID, keys, added, nil)
}

// RemovePermissions revokes permissions from the role. An empty request changes nothing.
func (s *RoleService) RemovePermissions(ctx context.Context, actorID, companyID, roleID string, permissionIDs []string) error {
	ids := normalizeIDs(permissionIDs)
	if len(ids) == 0 {
		return nil
	}

	var (
		removed []string
		keys    []string
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		if _, err := ownedRole(ctx, repos, companyID, roleID); err != nil {
			return err
		}

		current, err := repos.Roles.PermissionIDs(ctx, roleID)
		if err != nil {
			return fmt.Errorf("read role permissions: %w", err)
		}
		removed = intersection(ids, current)
		if len(removed) == 0 {
			return InvalidField("permissionIds", "none of the permission ids are assigned to the role")
		}

		if err := repos.Roles.DetachPermissions(ctx, roleID, removed); err != nil {
			return fmt.Errorf("detach permissions: %w", err)
		}
		keys, err = repos.Roles.PermissionKeys(ctx, roleID)
		if err != nil {
			return fmt.Errorf("read role permissions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.afterPermissionChange(ctx, actorID, companyID, roleID, keys, nil, removed)
}

// ReplacePermissions makes the role grant exactly permissionIDs. Only the
// difference against the stored set is written, so repeating a request is free.
func (s *RoleService) ReplacePermissions(ctx context.Context, actorID, companyID, roleID string, permissionIDs []string, allowEmpty bool) error {
	ids := normalizeIDs(permissionIDs)
	if len(ids) == 0 && !allowEmpty {
		return InvalidField("permissionIds", "at least one permission id is required")
	}

	var (
		added, removed []string
		keys           []string
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		if _, err := ownedRole(ctx, repos, companyID, roleID); err != nil {
			return err
		}
		if _, err := resolvePermissions(ctx, repos, ids); err != nil {
			return err
		}

		current, err := repos.Roles.PermissionIDs(ctx, roleID)
		if err != nil {
			return fmt.Errorf("read role permissions: %w", err)
		}
		added = difference(ids, current)
		removed = difference(current, ids)
		if len(added) == 0 && len(removed) == 0 {
			return nil
		}

		if len(removed) > 0 {
			if err := repos.Roles.DetachPermissions(ctx, roleID, removed); err != nil {
				return fmt.Errorf("detach permissions: %w", err)
			}
		}
		if len(added) > 0 {
			if err := repos.Roles.AttachPermissions(ctx, roleID, added); err != nil {
				return fmt.Errorf("attach permissions: %w", err)
			}
		}
		keys, err = repos.Roles.PermissionKeys(ctx, roleID)
		if err != nil {
			return fmt.Errorf("read role permissions: %w", err)
		}
		return nil
	})
	if err != nil || (len(added) == 0 && len(removed) == 0) {
		return err
	}

	return s.afterPermissionChange(ctx, actorID, companyID, roleID, keys, added, removed)
}

// DeleteRole retires a company role and drops its permission and member links.
func (s *RoleService) DeleteRole(ctx context.Context, actorID, companyID, roleID string) error {
	now := s.now()
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		role, err := ownedRole(ctx, repos, companyID, roleID)
		if err != nil {
			return err
		}
		if role.IsSystem {
			return conflict("system role %q cannot be deleted", role.Name)
		}

		if err := repos.Roles.ClearPermissions(ctx, roleID); err != nil {
			return fmt.Errorf("clear role permissions: %w", err)
		}
		if err := repos.Roles.ClearMembers(ctx, roleID); err != nil {
			return fmt.Errorf("clear role members: %w", err)
		}
		if err := repos.Roles.SoftDelete(ctx, roleID, now); err != nil {
			return mapLookup(err, "Role", roleID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	repairErr := s.repairer.Repair(ctx, roleID)

	if s.events != nil {
		event := domain.RoleDeletedEvent{
			EventID:   uuid.NewString(),
			CompanyID: companyID,
			RoleID:    roleID,
			DeletedBy: actorID,
			DeletedAt: now,
		}
		if err := s.events.PublishRoleDeleted(ctx, event); err != nil {
			logger.WithContext(ctx, s.logger).Warn("publish role deleted failed", zap.String("role_id", roleID), zap.Error(err))
		}
	}

	return repairErr
}

// RolePermissions returns the keys granted by a role visible to the company.
func (s *RoleService) RolePermissions(ctx context.Context, companyID, roleID string) ([]string, error) {
	repos := s.store.Repositories()

	role, err := retryRead(ctx, s.retry, func(ctx context.Context) (*domain.Role, error) {
		return repos.Roles.GetByID(ctx, roleID)
	})
	if err != nil {
		return nil, mapLookup(err, "Role", roleID)
	}
	if !role.UsableIn(companyID) {
		return nil, NotFound("Role", roleID)
	}

	keys, err := retryRead(ctx, s.retry, func(ctx context.Context) ([]string, error) {
		return repos.Roles.PermissionKeys(ctx, roleID)
	})
	if err != nil {
		return nil, fmt.Errorf("read role permissions: %w", err)
	}
	return domain.NormalizePermissionKeys(keys), nil
}

// afterPermissionChange repairs the cache then announces the change. A repair
// failure is returned because the write has committed but enforcement may lag.
func (s *RoleService) afterPermissionChange(ctx context.Context, actorID, companyID, roleID string, keys, added, removed []string) error {
	repairErr := s.repairer.Repair(ctx, roleID)
	if repairErr != nil {
		logger.WithContext(ctx, s.logger).Error("role permission cache repair failed",
			zap.String("role_id", roleID),
			zap.Error(repairErr),
		)
	}

	if s.events != nil {
		event := domain.RolePermissionsChangedEvent{
			EventID:        uuid.NewString(),
			CompanyID:      companyID,
			RoleID:         roleID,
			PermissionKeys: domain.NormalizePermissionKeys(keys),
			Added:          added,
			Removed:        removed,
			ChangedBy:      actorID,
			ChangedAt:      s.now(),
		}
		if err := s.events.PublishRolePermissionsChanged(ctx, event); err != nil {
			logger.WithContext(ctx, s.logger).Warn("publish role permissions changed failed",
				zap.String("role_id", roleID),
				zap.Error(err),
			)
		}
	}

	return repairErr
}

// ownedRole loads a live role that belongs to companyID. Global roles and other
// companies' roles are reported as not found.
func ownedRole(ctx context.Context, repos port.Repositories, companyID, roleID string) (*domain.Role, error) {
	role, err := repos.Roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, mapLookup(err, "Role", roleID)
	}
	if !role.OwnedBy(companyID) {
		return nil, NotFound("Role", roleID)
	}
	return role, nil
}

// resolvePermissions loads the permissions for ids and fails listing any unknown id.
func resolvePermissions(ctx context.Context, repos port.Repositories, ids []string) ([]domain.Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	perms, err := repos.Permissions.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}

	found := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		found[p.ID] = struct{}{}
	}
	var unknown []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return nil, InvalidField("permissionIds", "unknown permission ids: "+strings.Join(unknown, ", "))
	}
	return perms, nil
}

func mapLookup(err error, entity, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return NotFound(entity, id)
	}
	return fmt.Errorf("load %s: %w", strings.ToLower(entity), err)
}

func validateName(field, name string) error {
	switch {
	case name == "":
		return InvalidField(field, field+" is required")
	case len([]rune(name)) > maxNameLength:
		return InvalidField(field, fmt.Sprintf("%s must be at most %d characters", field, maxNameLength))
	}
	return nil
}

func permissionKeys(perms []domain.Permission) []string {
	keys := make([]string, 0, len(perms))
	for _, p := range perms {
		keys = append(keys, p.Key)
	}
	sort.Strings(keys)
	return keys
}

// normalizeIDs trims, drops blanks and removes duplicates, keeping order.
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// difference returns the members of a missing from b, in a's order.
func difference(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := set[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

func intersection(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
