package usecase

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/infra/security"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string][]string
	getErrs map[string][]error
	setErr  error
	delErr  error
	writes  int
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]string{}, getErrs: map[string][]error{}}
}

func (c *memCache) Get(_ context.Context, roleID string) ([]string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if errs := c.getErrs[roleID]; len(errs) > 0 {
		c.getErrs[roleID] = errs[1:]
		return nil, false, errs[0]
	}
	keys, ok := c.entries[roleID]
	return append([]string(nil), keys...), ok, nil
}

func (c *memCache) Set(_ context.Context, roleID string, keys []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.writes++
	c.entries[roleID] = domain.NormalizePermissionKeys(keys)
	return nil
}

func (c *memCache) Delete(_ context.Context, roleID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.delErr != nil {
		return c.delErr
	}
	c.writes++
	delete(c.entries, roleID)
	return nil
}

func (c *memCache) entry(roleID string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys, ok := c.entries[roleID]
	return append([]string(nil), keys...), ok
}

func (c *memCache) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

type recordingEvents struct {
	mu          sync.Mutex
	permissions []domain.RolePermissionsChangedEvent
	deleted     []domain.RoleDeletedEvent
	memberships []domain.MembershipChangedEvent
	rotations   []domain.RefreshTokenRotatedEvent
	err         error
}

func (e *recordingEvents) PublishRolePermissionsChanged(_ context.Context, event domain.RolePermissionsChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.permissions = append(e.permissions, event)
	return e.err
}

func (e *recordingEvents) PublishRoleDeleted(_ context.Context, event domain.RoleDeletedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleted = append(e.deleted, event)
	return e.err
}

func (e *recordingEvents) PublishMembershipChanged(_ context.Context, event domain.MembershipChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.memberships = append(e.memberships, event)
	return e.err
}

func (e *recordingEvents) PublishRefreshTokenRotated(_ context.Context, event domain.RefreshTokenRotatedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rotations = append(e.rotations, event)
	return e.err
}

type recordingObserver struct {
	mu        sync.Mutex
	decisions map[string]int
	lookups   map[string]int
	repairs   map[bool]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{decisions: map[string]int{}, lookups: map[string]int{}, repairs: map[bool]int{}}
}

func (o *recordingObserver) ObserveDecision(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decisions[result]++
}

func (o *recordingObserver) ObserveCacheLookup(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lookups[outcome]++
}

func (o *recordingObserver) ObserveRepair(ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.repairs[ok]++
}

var fastRetry = RetryPolicy{Attempts: 3, Backoff: time.Millisecond}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memStore
	cache    *memCache
	events   *recordingEvents
	observer *recordingObserver
	signer   *security.HMACSigner
	hasher   *security.Argon2Hasher

	mu  sync.Mutex
	now time.Time

	repairer    *PermissionCacheRepairer
	authorizer  *Authorizer
	credentials *CredentialService
	roles       *RoleService
	companies   *CompanyService
	memberships *MembershipService
	permissions *PermissionService

	permIDs map[string]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    newMemStore(),
		cache:    newMemCache(),
		events:   &recordingEvents{},
		observer: newRecordingObserver(),
		now:      time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	signer, err := security.NewHMACSigner(security.HMACSignerConfig{
		Issuer:    "authz-core",
		Audiences: []string{"back-office"},
		Key:       []byte("0123456789abcdef0123456789abcdef"),
	})
	if err != nil {
		t.Fatalf("NewHMACSigner: %v", err)
	}
	f.signer = signer.WithClock(f.clock)

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewArgon2Hasher: %v", err)
	}
	f.hasher = hasher

	log := zaptest.NewLogger(t)
	f.repairer = NewPermissionCacheRepairer(f.store.Repositories().Roles, f.cache, fastRetry, f.observer, log)
	f.authorizer = NewAuthorizer(f.cache, fastRetry, f.observer, log)
	f.credentials = NewCredentialService(f.store, f.signer, f.hasher, f.events, CredentialConfig{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, log).WithClock(f.clock)
	f.roles = NewRoleService(f.store, f.repairer, f.events, fastRetry, log)
	f.roles.now = f.clock
	f.companies = NewCompanyService(f.store, log)
	f.companies.now = f.clock
	f.memberships = NewMembershipService(f.store, f.hasher, f.events, fastRetry, log)
	f.memberships.now = f.clock
	f.permissions = NewPermissionService(f.store, f.repairer, fastRetry, log)

	if _, err := f.permissions.SyncCatalog(f.ctx); err != nil {
		t.Fatalf("SyncCatalog: %v", err)
	}
	perms, err := f.permissions.List(f.ctx)
	if err != nil {
		t.Fatalf("List permissions: %v", err)
	}
	f.permIDs = make(map[string]string, len(perms))
	for _, p := range perms {
		f.permIDs[p.Key] = p.ID
	}

	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) ids(keys ...string) []string {
	f.t.Helper()
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		id, ok := f.permIDs[key]
		if !ok {
			f.t.Fatalf("unknown permission key %q", key)
		}
		out = append(out, id)
	}
	return out
}

func (f *fixture) company(name string) string {
	f.t.Helper()
	c, err := f.companies.Create(f.ctx, name)
	if err != nil {
		f.t.Fatalf("create company %q: %v", name, err)
	}
	return c.ID
}

func (f *fixture) role(companyID, name string, keys ...string) string {
	f.t.Helper()
	role, err := f.roles.CreateRole(f.ctx, "admin", companyID, name, f.ids(keys...))
	if err != nil {
		f.t.Fatalf("create role %q: %v", name, err)
	}
	return role.ID
}

// globalRole inserts a tenant-less role directly, the way seed data would.
func (f *fixture) globalRole(name string, keys ...string) string {
	f.t.Helper()
	id := "global-" + name
	permIDs := f.ids(keys...)
	f.store.mutate(func(st *memState) {
		st.roles[id] = domain.Role{ID: id, Name: name, IsSystem: true}
		links := map[string]struct{}{}
		for _, pid := range permIDs {
			links[pid] = struct{}{}
		}
		st.rolePerms[id] = links
	})
	if err := f.repairer.Repair(f.ctx, id); err != nil {
		f.t.Fatalf("repair global role: %v", err)
	}
	return id
}

func (f *fixture) user(companyID, email, password string) string {
	f.t.Helper()
	u, err := f.memberships.CreateUser(f.ctx, companyID, email, "User "+email, password)
	if err != nil {
		f.t.Fatalf("create user %q: %v", email, err)
	}
	return u.ID
}

func (f *fixture) assign(companyID, userID, roleID string) {
	f.t.Helper()
	if err := f.memberships.AssignRole(f.ctx, "admin", companyID, userID, roleID); err != nil {
		f.t.Fatalf("assign role: %v", err)
	}
}

func (f *fixture) identity(token string) *domain.Identity {
	f.t.Helper()
	identity, err := f.credentials.ValidateAccess(f.ctx, token)
	if err != nil {
		f.t.Fatalf("ValidateAccess: %v", err)
	}
	return identity
}

// projection returns the role's keys as the store sees them.
func (f *fixture) projection(roleID string) []string {
	f.t.Helper()
	keys, err := f.store.Repositories().Roles.PermissionKeys(f.ctx, roleID)
	if err != nil {
		f.t.Fatalf("PermissionKeys: %v", err)
	}
	return keys
}

func sortedCopy(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
