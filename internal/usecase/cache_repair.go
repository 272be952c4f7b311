package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/port"
)

// PermissionCacheRepairer rewrites a role's cache entry from the store. It is
// the only writer of the role permission cache and runs after commit.
type PermissionCacheRepairer struct {
	roles    port.RoleRepository
	cache    port.RolePermissionCache
	retry    RetryPolicy
	observer AuthzObserver
	logger   *zap.Logger
}

// NewPermissionCacheRepairer constructs a repairer reading through roles.
func NewPermissionCacheRepairer(roles port.RoleRepository, cache port.RolePermissionCache, retry RetryPolicy, observer AuthzObserver, logger *zap.Logger) *PermissionCacheRepairer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionCacheRepairer{
		roles:    roles,
		cache:    cache,
		retry:    retry,
		observer: observerOrNop(observer),
		logger:   logger,
	}
}

// Repair recomputes the role's keys and stores them, or removes the entry when
// the role grants nothing. When either the recomputation or the write fails the
// entry is dropped so readers fall back to deny instead of a stale grant.
func (r *PermissionCacheRepairer) Repair(ctx context.Context, roleID string) error {
	keys, err := retryRead(ctx, r.retry, func(ctx context.Context) ([]string, error) {
		return r.roles.PermissionKeys(ctx, roleID)
	})
	if err != nil {
		return r.drop(ctx, roleID, fmt.Errorf("recompute role %s permissions: %w", roleID, err))
	}

	keys = domain.NormalizePermissionKeys(keys)
	if len(keys) == 0 {
		err = r.cache.Delete(ctx, roleID)
	} else {
		err = r.cache.Set(ctx, roleID, keys)
	}
	if err != nil {
		return r.drop(ctx, roleID, fmt.Errorf("write role %s cache entry: %w", roleID, err))
	}

	r.observer.ObserveRepair(true)
	r.logger.Debug("role permission cache repaired",
		zap.String("role_id", roleID),
		zap.Int("keys", len(keys)),
	)
	return nil
}

// drop removes the role's entry after a failed repair. The delete ignores
// cancellation of ctx: a cancelled request must not leave an over-grant behind.
func (r *PermissionCacheRepairer) drop(ctx context.Context, roleID string, cause error) error {
	r.observer.ObserveRepair(false)
	if err := r.cache.Delete(context.WithoutCancel(ctx), roleID); err != nil {
		r.logger.Error("role permission cache entry could not be dropped",
			zap.String("role_id", roleID),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return errors.Join(cause, fmt.Errorf("drop role %s cache entry: %w", roleID, err))
	}
	r.logger.Warn("role permission repair failed, cache entry dropped",
		zap.String("role_id", roleID),
		zap.Error(cause),
	)
	return cause
}

// RebuildAll repairs every live role and reports how many entries were written.
// It keeps going past individual failures and returns them joined.
func (r *PermissionCacheRepairer) RebuildAll(ctx context.Context) (int, error) {
	ids, err := retryRead(ctx, r.retry, r.roles.ListIDs)
	if err != nil {
		return 0, fmt.Errorf("list roles: %w", err)
	}

	var (
		repaired int
		errs     []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := r.Repair(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		repaired++
	}

	r.logger.Info("role permission cache rebuilt",
		zap.Int("roles", len(ids)),
		zap.Int("repaired", repaired),
	)
	return repaired, errors.Join(errs...)
}
