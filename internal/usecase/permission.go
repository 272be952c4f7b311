package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/port"
	"github.com/Faik442/dotnetblueprints/internal/infra/logger"
)

// PermissionService exposes the permission catalog.
type PermissionService struct {
	store    port.Store
	repairer CacheRepairer
	retry    RetryPolicy
	logger   *zap.Logger
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(store port.Store, repairer CacheRepairer, retry RetryPolicy, logger *zap.Logger) *PermissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionService{store: store, repairer: repairer, retry: retry, logger: logger}
}

// SyncCatalog inserts catalog keys missing from the store. Existing rows are
// left as they are.
func (s *PermissionService) SyncCatalog(ctx context.Context) (int, error) {
	var added int
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		var err error
		added, err = repos.Permissions.EnsureCatalog(ctx, domain.Catalog())
		if err != nil {
			return fmt.Errorf("ensure permission catalog: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("permission catalog synced", zap.Int("added", added))
	return added, nil
}

// List returns every live permission.
func (s *PermissionService) List(ctx context.Context) ([]domain.Permission, error) {
	perms, err := retryRead(ctx, s.retry, s.store.Repositories().Permissions.List)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return perms, nil
}

// Retire soft-deletes a permission and unlinks it from every role in one
// transaction, then repairs the cache entry of each role that granted it.
// The wildcard cannot be retired.
func (s *PermissionService) Retire(ctx context.Context, permissionID string) error {
	var affected []string
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		perms, err := repos.Permissions.ListByIDs(ctx, []string{permissionID})
		if err != nil {
			return fmt.Errorf("load permission: %w", err)
		}
		if len(perms) == 0 {
			return NotFound("Permission", permissionID)
		}
		if perms[0].Key == domain.WildcardPermission {
			return conflict("permission %q cannot be retired", perms[0].Key)
		}

		affected, err = repos.Permissions.RoleIDsGranting(ctx, permissionID)
		if err != nil {
			return fmt.Errorf("list roles granting permission: %w", err)
		}
		if err := repos.Permissions.SoftDelete(ctx, permissionID); err != nil {
			return mapLookup(err, "Permission", permissionID)
		}
		if err := repos.Permissions.Unlink(ctx, permissionID); err != nil {
			return fmt.Errorf("unlink permission: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log := logger.WithContext(ctx, s.logger)
	var repairErrs []error
	for _, roleID := range affected {
		if err := s.repairer.Repair(ctx, roleID); err != nil {
			log.Error("role permission cache repair failed", zap.String("role_id", roleID), zap.Error(err))
			repairErrs = append(repairErrs, err)
		}
	}

	log.Info("permission retired", zap.String("permission_id", permissionID), zap.Int("roles", len(affected)))
	return errors.Join(repairErrs...)
}
