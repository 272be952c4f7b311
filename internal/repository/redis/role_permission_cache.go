package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	red "github.com/redis/go-redis/v9"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/port"
)

// DefaultPermissionsHashKey is the hash holding every role's permission keys.
const DefaultPermissionsHashKey = "Permissions"

// RolePermissionCache stores role permission keys as JSON arrays inside one
// Redis hash, one field per role id. Entries never expire.
type RolePermissionCache struct {
	client  *red.Client
	hashKey string
}

// NewRolePermissionCache constructs the cache. An empty hashKey selects DefaultPermissionsHashKey.
func NewRolePermissionCache(client *red.Client, hashKey string) *RolePermissionCache {
	if strings.TrimSpace(hashKey) == "" {
		hashKey = DefaultPermissionsHashKey
	}
	return &RolePermissionCache{client: client, hashKey: hashKey}
}

// Get returns the cached keys for the role. ok is false when the field is missing;
// an entry holding an empty array returns ok with no keys.
func (c *RolePermissionCache) Get(ctx context.Context, roleID string) ([]string, bool, error) {
	raw, err := c.client.HGet(ctx, c.hashKey, roleID).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis hget: %w", err)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, false, fmt.Errorf("decode role permissions: %w", err)
	}

	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			out = append(out, key)
		}
	}

	return out, true, nil
}

// Set overwrites the role's entry with the normalized keys.
func (c *RolePermissionCache) Set(ctx context.Context, roleID string, keys []string) error {
	payload, err := json.Marshal(domain.NormalizePermissionKeys(keys))
	if err != nil {
		return fmt.Errorf("encode role permissions: %w", err)
	}

	if err := c.client.HSet(ctx, c.hashKey, roleID, string(payload)).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}

	return nil
}

// Delete removes the role's entry.
func (c *RolePermissionCache) Delete(ctx context.Context, roleID string) error {
	if err := c.client.HDel(ctx, c.hashKey, roleID).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

var _ port.RolePermissionCache = (*RolePermissionCache)(nil)
