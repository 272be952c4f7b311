// Package policy holds the static mapping from operation identifiers to the
// permission keys a caller needs to invoke them.
package policy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
)

// Registry maps operation ids to required permission keys. Every key listed
// for an operation must be held by the caller.
type Registry struct {
	mu           sync.RWMutex
	requirements map[string][]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{requirements: make(map[string][]string)}
}

// Register declares the requirement for op. Registering the same op twice or
// naming a key outside the catalog panics. An op registered with no keys only
// needs an authenticated caller.
func (r *Registry) Register(op string, keys ...string) *Registry {
	if op == "" {
		panic("policy: empty operation id")
	}
	normalized := domain.NormalizePermissionKeys(keys)
	for _, key := range normalized {
		if !domain.IsKnownPermission(key) {
			panic(fmt.Sprintf("policy: operation %q requires unknown permission %q", op, key))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requirements[op]; exists {
		panic(fmt.Sprintf("policy: operation %q registered twice", op))
	}
	r.requirements[op] = normalized
	return r
}

// Requirement returns a copy of the keys required by op and whether op is registered.
func (r *Registry) Requirement(op string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys, ok := r.requirements[op]
	if !ok {
		return nil, false
	}
	out := make([]string, len(keys))
	copy(out, keys)
	return out, true
}

// Operations lists registered operation ids in sorted order.
func (r *Registry) Operations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ops := make([]string, 0, len(r.requirements))
	for op := range r.requirements {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}
