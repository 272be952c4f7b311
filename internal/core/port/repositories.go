package port

import (
	"context"
	"time"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
)

// CompanyRepository persists tenants.
type CompanyRepository interface {
	Create(ctx context.Context, company domain.Company) error
	GetByID(ctx context.Context, id string) (*domain.Company, error)
	NameTaken(ctx context.Context, name, excludeID string) (bool, error)
	Rename(ctx context.Context, id, name string, at time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	// List returns live companies ordered by name. A non-empty filter.Name
	// matches as a case-insensitive substring.
	List(ctx context.Context, filter CompanyFilter) ([]domain.Company, error)
}

// CompanyFilter pages through companies.
type CompanyFilter struct {
	Name   string
	Limit  int
	Offset int
}

// RoleRepository handles roles and their permission links.
type RoleRepository interface {
	Create(ctx context.Context, role domain.Role) error
	GetByID(ctx context.Context, id string) (*domain.Role, error)
	// NameTaken reports whether a live role of companyID already uses name, ignoring case.
	NameTaken(ctx context.Context, companyID, name, excludeID string) (bool, error)
	Rename(ctx context.Context, id, name string, at time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	// ListIDs returns every live role id.
	ListIDs(ctx context.Context) ([]string, error)
	// ListIDsForUser returns the live roles linking userID inside companyID,
	// including global roles. The result is distinct and sorted.
	ListIDsForUser(ctx context.Context, userID, companyID string) ([]string, error)
	PermissionIDs(ctx context.Context, roleID string) ([]string, error)
	PermissionKeys(ctx context.Context, roleID string) ([]string, error)
	AttachPermissions(ctx context.Context, roleID string, permissionIDs []string) error
	DetachPermissions(ctx context.Context, roleID string, permissionIDs []string) error
	ClearPermissions(ctx context.Context, roleID string) error
	ClearMembers(ctx context.Context, roleID string) error
}

// PermissionRepository reads the permission catalog.
type PermissionRepository interface {
	// EnsureCatalog inserts definitions whose keys are missing and reports how many were added.
	EnsureCatalog(ctx context.Context, defs []domain.PermissionDefinition) (int, error)
	List(ctx context.Context) ([]domain.Permission, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.Permission, error)
	// KeysForRoles returns the distinct keys granted by the live roles.
	KeysForRoles(ctx context.Context, roleIDs []string) ([]string, error)
	// RoleIDsGranting returns the roles linked to the permission, sorted.
	RoleIDsGranting(ctx context.Context, permissionID string) ([]string, error)
	// Unlink removes every role link of the permission.
	Unlink(ctx context.Context, permissionID string) error
	// SoftDelete retires a live permission.
	SoftDelete(ctx context.Context, permissionID string) error
}

// UserRepository persists users and their role memberships.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	AssignRole(ctx context.Context, membership domain.UserRole) error
	RemoveRole(ctx context.Context, userID, companyID, roleID string) error
	// UpdateProfile rewrites email and display name of a live user.
	UpdateProfile(ctx context.Context, id, email, displayName string, at time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	// ClearRoles removes every membership of the user.
	ClearRoles(ctx context.Context, userID string) error
}

// TokenRepository manages refresh tokens and access token traces.
type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, token domain.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	// RevokeRefreshToken revokes a still-active token. It returns repository.ErrNotFound
	// when the token was already revoked, so only one concurrent rotation succeeds.
	RevokeRefreshToken(ctx context.Context, id string, at time.Time, replacedByJTI string) error
	CreateAccessTokenRecord(ctx context.Context, record domain.AccessTokenRecord) error
}

// Repositories groups the store interfaces bound to one executor.
type Repositories struct {
	Companies   CompanyRepository
	Roles       RoleRepository
	Permissions PermissionRepository
	Users       UserRepository
	Tokens      TokenRepository
}

// Transactor runs fn inside one store transaction. The transaction commits only
// when fn returns nil and the context is still live.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Store exposes repositories bound to the pool for reads outside a transaction
// together with the transactor used for writes.
type Store interface {
	Transactor
	Repositories() Repositories
}
