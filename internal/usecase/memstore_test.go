package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/port"
	"github.com/Faik442/dotnetblueprints/internal/repository"
)

type membershipKey struct {
	userID, companyID, roleID string
}

type memState struct {
	companies   map[string]domain.Company
	roles       map[string]domain.Role
	permissions map[string]domain.Permission
	retired     map[string]domain.Permission
	rolePerms   map[string]map[string]struct{}
	users       map[string]domain.User
	memberships map[membershipKey]domain.UserRole
	refresh     map[string]domain.RefreshToken
	access      []domain.AccessTokenRecord
}

func newMemState() *memState {
	return &memState{
		companies:   map[string]domain.Company{},
		roles:       map[string]domain.Role{},
		permissions: map[string]domain.Permission{},
		retired:     map[string]domain.Permission{},
		rolePerms:   map[string]map[string]struct{}{},
		users:       map[string]domain.User{},
		memberships: map[membershipKey]domain.UserRole{},
		refresh:     map[string]domain.RefreshToken{},
	}
}

func (s *memState) clone() *memState {
	out := newMemState()
	for k, v := range s.companies {
		out.companies[k] = v
	}
	for k, v := range s.roles {
		out.roles[k] = v
	}
	for k, v := range s.permissions {
		out.permissions[k] = v
	}
	for k, v := range s.retired {
		out.retired[k] = v
	}
	for k, links := range s.rolePerms {
		cp := make(map[string]struct{}, len(links))
		for id := range links {
			cp[id] = struct{}{}
		}
		out.rolePerms[k] = cp
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.memberships {
		out.memberships[k] = v
	}
	for k, v := range s.refresh {
		out.refresh[k] = v
	}
	out.access = append(out.access, s.access...)
	return out
}

// memStore is an in-memory port.Store. Transactions run on a private copy that
// replaces the shared state only on success.
type memStore struct {
	mu      sync.Mutex
	txMu    sync.Mutex
	state   *memState
	writes  int
	commits int
	failOn  map[string]error
}

func newMemStore() *memStore {
	return &memStore{state: newMemState(), failOn: map[string]error{}}
}

func (s *memStore) Repositories() port.Repositories {
	return bindMem(memView{store: s})
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.state.clone()
	s.mu.Unlock()

	writes := 0
	if err := fn(ctx, bindMem(memView{store: s, tx: snapshot, writes: &writes})); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = snapshot
	s.writes += writes
	s.commits++
	s.mu.Unlock()
	return nil
}

func (s *memStore) fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[op] = err
}

func (s *memStore) clearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn = map[string]error{}
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *memStore) snapshot() *memState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *memStore) mutate(fn func(st *memState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

type memView struct {
	store  *memStore
	tx     *memState
	writes *int
}

func (v memView) injected(op string) error {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return v.store.failOn[op]
}

func (v memView) read(op string, fn func(st *memState) error) error {
	if err := v.injected(op); err != nil {
		return err
	}
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.state)
}

func (v memView) write(op string, fn func(st *memState) error) error {
	if err := v.injected(op); err != nil {
		return err
	}
	if v.tx != nil {
		*v.writes++
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	v.store.writes++
	return fn(v.store.state)
}

func bindMem(v memView) port.Repositories {
	return port.Repositories{
		Companies:   memCompanies{v},
		Roles:       memRoles{v},
		Permissions: memPermissions{v},
		Users:       memUsers{v},
		Tokens:      memTokens{v},
	}
}

type memCompanies struct{ v memView }

func (r memCompanies) Create(_ context.Context, c domain.Company) error {
	return r.v.write("Companies.Create", func(st *memState) error {
		for _, existing := range st.companies {
			if !existing.Deleted && existing.HasName(c.Name) {
				return repository.ErrConflict
			}
		}
		st.companies[c.ID] = c
		return nil
	})
}

func (r memCompanies) GetByID(_ context.Context, id string) (*domain.Company, error) {
	var out *domain.Company
	err := r.v.read("Companies.GetByID", func(st *memState) error {
		c, ok := st.companies[id]
		if !ok || c.Deleted {
			return repository.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r memCompanies) NameTaken(_ context.Context, name, excludeID string) (bool, error) {
	var taken bool
	err := r.v.read("Companies.NameTaken", func(st *memState) error {
		for id, c := range st.companies {
			if id != excludeID && !c.Deleted && c.HasName(name) {
				taken = true
			}
		}
		return nil
	})
	return taken, err
}

func (r memCompanies) Rename(_ context.Context, id, name string, at time.Time) error {
	return r.v.write("Companies.Rename", func(st *memState) error {
		c, ok := st.companies[id]
		if !ok || c.Deleted {
			return repository.ErrNotFound
		}
		c.Name, c.UpdatedAt = name, at
		st.companies[id] = c
		return nil
	})
}

func (r memCompanies) SoftDelete(_ context.Context, id string, at time.Time) error {
	return r.v.write("Companies.SoftDelete", func(st *memState) error {
		c, ok := st.companies[id]
		if !ok || c.Deleted {
			return repository.ErrNotFound
		}
		c.Deleted, c.UpdatedAt = true, at
		st.companies[id] = c
		return nil
	})
}

func (r memCompanies) List(_ context.Context, filter port.CompanyFilter) ([]domain.Company, error) {
	var out []domain.Company
	err := r.v.read("Companies.List", func(st *memState) error {
		needle := strings.ToLower(strings.TrimSpace(filter.Name))
		for _, c := range st.companies {
			if !c.Deleted && strings.Contains(strings.ToLower(c.Name), needle) {
				out = append(out, c)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
			if a != b {
				return a < b
			}
			return out[i].ID < out[j].ID
		})
		if filter.Offset >= len(out) {
			out = nil
			return nil
		}
		out = out[filter.Offset:]
		if filter.Limit > 0 && filter.Limit < len(out) {
			out = out[:filter.Limit]
		}
		return nil
	})
	return out, err
}

type memRoles struct{ v memView }

func (r memRoles) Create(_ context.Context, role domain.Role) error {
	return r.v.write("Roles.Create", func(st *memState) error {
		for _, existing := range st.roles {
			if existing.Deleted || !existing.HasName(role.Name) {
				continue
			}
			if (existing.CompanyID == nil && role.CompanyID == nil) ||
				(existing.CompanyID != nil && role.CompanyID != nil && *existing.CompanyID == *role.CompanyID) {
				return repository.ErrConflict
			}
		}
		st.roles[role.ID] = role
		return nil
	})
}

func (r memRoles) GetByID(_ context.Context, id string) (*domain.Role, error) {
	var out *domain.Role
	err := r.v.read("Roles.GetByID", func(st *memState) error {
		role, ok := st.roles[id]
		if !ok || role.Deleted {
			return repository.ErrNotFound
		}
		out = &role
		return nil
	})
	return out, err
}

func (r memRoles) NameTaken(_ context.Context, companyID, name, excludeID string) (bool, error) {
	var taken bool
	err := r.v.read("Roles.NameTaken", func(st *memState) error {
		for id, role := range st.roles {
			if id != excludeID && !role.Deleted && role.OwnedBy(companyID) && role.HasName(name) {
				taken = true
			}
		}
		return nil
	})
	return taken, err
}

func (r memRoles) Rename(_ context.Context, id, name string, at time.Time) error {
	return r.v.write("Roles.Rename", func(st *memState) error {
		role, ok := st.roles[id]
		if !ok || role.Deleted {
			return repository.ErrNotFound
		}
		role.Name, role.UpdatedAt = name, at
		st.roles[id] = role
		return nil
	})
}

func (r memRoles) SoftDelete(_ context.Context, id string, at time.Time) error {
	return r.v.write("Roles.SoftDelete", func(st *memState) error {
		role, ok := st.roles[id]
		if !ok || role.Deleted {
			return repository.ErrNotFound
		}
		role.Deleted, role.UpdatedAt = true, at
		st.roles[id] = role
		return nil
	})
}

func (r memRoles) ListIDs(_ context.Context) ([]string, error) {
	var ids []string
	err := r.v.read("Roles.ListIDs", func(st *memState) error {
		for id, role := range st.roles {
			if !role.Deleted {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		return nil
	})
	return ids, err
}

func (r memRoles) ListIDsForUser(_ context.Context, userID, companyID string) ([]string, error) {
	ids := []string{}
	err := r.v.read("Roles.ListIDsForUser", func(st *memState) error {
		seen := map[string]struct{}{}
		for key := range st.memberships {
			if key.userID != userID || key.companyID != companyID {
				continue
			}
			role, ok := st.roles[key.roleID]
			if !ok || role.Deleted || !role.UsableIn(companyID) {
				continue
			}
			if _, dup := seen[role.ID]; !dup {
				seen[role.ID] = struct{}{}
				ids = append(ids, role.ID)
			}
		}
		sort.Strings(ids)
		return nil
	})
	return ids, err
}

func (r memRoles) PermissionIDs(_ context.Context, roleID string) ([]string, error) {
	ids := []string{}
	err := r.v.read("Roles.PermissionIDs", func(st *memState) error {
		for id := range st.rolePerms[roleID] {
			if _, ok := st.permissions[id]; ok {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		return nil
	})
	return ids, err
}

func (r memRoles) PermissionKeys(_ context.Context, roleID string) ([]string, error) {
	keys := []string{}
	err := r.v.read("Roles.PermissionKeys", func(st *memState) error {
		for id := range st.rolePerms[roleID] {
			if p, ok := st.permissions[id]; ok {
				keys = append(keys, p.Key)
			}
		}
		sort.Strings(keys)
		return nil
	})
	return keys, err
}

func (r memRoles) AttachPermissions(_ context.Context, roleID string, permissionIDs []string) error {
	return r.v.write("Roles.AttachPermissions", func(st *memState) error {
		links := st.rolePerms[roleID]
		if links == nil {
			links = map[string]struct{}{}
			st.rolePerms[roleID] = links
		}
		for _, id := range permissionIDs {
			links[id] = struct{}{}
		}
		return nil
	})
}

func (r memRoles) DetachPermissions(_ context.Context, roleID string, permissionIDs []string) error {
	return r.v.write("Roles.DetachPermissions", func(st *memState) error {
		for _, id := range permissionIDs {
			delete(st.rolePerms[roleID], id)
		}
		return nil
	})
}

func (r memRoles) ClearPermissions(_ context.Context, roleID string) error {
	return r.v.write("Roles.ClearPermissions", func(st *memState) error {
		delete(st.rolePerms, roleID)
		return nil
	})
}

func (r memRoles) ClearMembers(_ context.Context, roleID string) error {
	return r.v.write("Roles.ClearMembers", func(st *memState) error {
		for key := range st.memberships {
			if key.roleID == roleID {
				delete(st.memberships, key)
			}
		}
		return nil
	})
}

type memPermissions struct{ v memView }

func (r memPermissions) EnsureCatalog(_ context.Context, defs []domain.PermissionDefinition) (int, error) {
	added := 0
	err := r.v.write("Permissions.EnsureCatalog", func(st *memState) error {
		known := map[string]struct{}{}
		for _, p := range st.permissions {
			known[strings.ToLower(p.Key)] = struct{}{}
		}
		for _, p := range st.retired {
			known[strings.ToLower(p.Key)] = struct{}{}
		}
		for _, def := range defs {
			if _, ok := known[strings.ToLower(def.Key)]; ok {
				continue
			}
			desc := def.Description
			id := uuid.NewString()
			st.permissions[id] = domain.Permission{ID: id, Key: def.Key, Description: &desc}
			known[strings.ToLower(def.Key)] = struct{}{}
			added++
		}
		return nil
	})
	return added, err
}

func (r memPermissions) List(_ context.Context) ([]domain.Permission, error) {
	var out []domain.Permission
	err := r.v.read("Permissions.List", func(st *memState) error {
		for _, p := range st.permissions {
			out = append(out, p)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
		return nil
	})
	return out, err
}

func (r memPermissions) ListByIDs(_ context.Context, ids []string) ([]domain.Permission, error) {
	var out []domain.Permission
	err := r.v.read("Permissions.ListByIDs", func(st *memState) error {
		for _, id := range ids {
			if p, ok := st.permissions[id]; ok {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

func (r memPermissions) KeysForRoles(_ context.Context, roleIDs []string) ([]string, error) {
	keys := []string{}
	err := r.v.read("Permissions.KeysForRoles", func(st *memState) error {
		seen := map[string]struct{}{}
		for _, roleID := range roleIDs {
			role, ok := st.roles[roleID]
			if !ok || role.Deleted {
				continue
			}
			for id := range st.rolePerms[roleID] {
				p, ok := st.permissions[id]
				if !ok {
					continue
				}
				if _, dup := seen[p.Key]; !dup {
					seen[p.Key] = struct{}{}
					keys = append(keys, p.Key)
				}
			}
		}
		sort.Strings(keys)
		return nil
	})
	return keys, err
}

func (r memPermissions) RoleIDsGranting(_ context.Context, permissionID string) ([]string, error) {
	ids := []string{}
	err := r.v.read("Permissions.RoleIDsGranting", func(st *memState) error {
		for roleID, links := range st.rolePerms {
			if _, ok := links[permissionID]; ok {
				ids = append(ids, roleID)
			}
		}
		sort.Strings(ids)
		return nil
	})
	return ids, err
}

func (r memPermissions) Unlink(_ context.Context, permissionID string) error {
	return r.v.write("Permissions.Unlink", func(st *memState) error {
		for _, links := range st.rolePerms {
			delete(links, permissionID)
		}
		return nil
	})
}

func (r memPermissions) SoftDelete(_ context.Context, permissionID string) error {
	return r.v.write("Permissions.SoftDelete", func(st *memState) error {
		p, ok := st.permissions[permissionID]
		if !ok {
			return repository.ErrNotFound
		}
		delete(st.permissions, permissionID)
		st.retired[permissionID] = p
		return nil
	})
}

type memUsers struct{ v memView }

func (r memUsers) Create(_ context.Context, user domain.User) error {
	return r.v.write("Users.Create", func(st *memState) error {
		for _, existing := range st.users {
			if !existing.Deleted && strings.EqualFold(existing.Email, user.Email) {
				return repository.ErrConflict
			}
		}
		user.Email = strings.ToLower(user.Email)
		st.users[user.ID] = user
		return nil
	})
}

func (r memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := r.v.read("Users.GetByID", func(st *memState) error {
		u, ok := st.users[id]
		if !ok || u.Deleted {
			return repository.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := r.v.read("Users.GetByEmail", func(st *memState) error {
		for _, u := range st.users {
			if !u.Deleted && strings.EqualFold(u.Email, email) {
				u := u
				out = &u
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r memUsers) AssignRole(_ context.Context, m domain.UserRole) error {
	return r.v.write("Users.AssignRole", func(st *memState) error {
		key := membershipKey{m.UserID, m.CompanyID, m.RoleID}
		if _, ok := st.memberships[key]; !ok {
			st.memberships[key] = m
		}
		return nil
	})
}

func (r memUsers) RemoveRole(_ context.Context, userID, companyID, roleID string) error {
	return r.v.write("Users.RemoveRole", func(st *memState) error {
		delete(st.memberships, membershipKey{userID, companyID, roleID})
		return nil
	})
}

func (r memUsers) UpdateProfile(_ context.Context, id, email, displayName string, at time.Time) error {
	return r.v.write("Users.UpdateProfile", func(st *memState) error {
		u, ok := st.users[id]
		if !ok || u.Deleted {
			return repository.ErrNotFound
		}
		for otherID, other := range st.users {
			if otherID != id && !other.Deleted && strings.EqualFold(other.Email, email) {
				return repository.ErrConflict
			}
		}
		u.Email, u.DisplayName, u.UpdatedAt = strings.ToLower(email), displayName, at
		st.users[id] = u
		return nil
	})
}

func (r memUsers) SoftDelete(_ context.Context, id string, at time.Time) error {
	return r.v.write("Users.SoftDelete", func(st *memState) error {
		u, ok := st.users[id]
		if !ok || u.Deleted {
			return repository.ErrNotFound
		}
		u.Deleted, u.UpdatedAt = true, at
		st.users[id] = u
		return nil
	})
}

func (r memUsers) ClearRoles(_ context.Context, userID string) error {
	return r.v.write("Users.ClearRoles", func(st *memState) error {
		for key := range st.memberships {
			if key.userID == userID {
				delete(st.memberships, key)
			}
		}
		return nil
	})
}

type memTokens struct{ v memView }

func (r memTokens) CreateRefreshToken(_ context.Context, token domain.RefreshToken) error {
	return r.v.write("Tokens.CreateRefreshToken", func(st *memState) error {
		for _, existing := range st.refresh {
			if existing.TokenHash == token.TokenHash {
				return repository.ErrConflict
			}
		}
		st.refresh[token.ID] = token
		return nil
	})
}

func (r memTokens) GetRefreshTokenByHash(_ context.Context, hash string) (*domain.RefreshToken, error) {
	var out *domain.RefreshToken
	err := r.v.read("Tokens.GetRefreshTokenByHash", func(st *memState) error {
		for _, t := range st.refresh {
			if t.TokenHash == hash {
				t := t
				out = &t
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r memTokens) RevokeRefreshToken(_ context.Context, id string, at time.Time, replacedByJTI string) error {
	return r.v.write("Tokens.RevokeRefreshToken", func(st *memState) error {
		t, ok := st.refresh[id]
		if !ok || !t.Revoke(at, replacedByJTI) {
			return repository.ErrNotFound
		}
		st.refresh[id] = t
		return nil
	})
}

func (r memTokens) CreateAccessTokenRecord(_ context.Context, record domain.AccessTokenRecord) error {
	return r.v.write("Tokens.CreateAccessTokenRecord", func(st *memState) error {
		st.access = append(st.access, record)
		return nil
	})
}

var _ port.Store = (*memStore)(nil)
