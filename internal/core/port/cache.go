package port

import "context"

// RolePermissionCache maps a role id to its resolved permission keys.
type RolePermissionCache interface {
	// Get returns ok=false when the role has no entry. An entry may hold zero keys.
	Get(ctx context.Context, roleID string) (keys []string, ok bool, err error)
	Set(ctx context.Context, roleID string, keys []string) error
	Delete(ctx context.Context, roleID string) error
}
