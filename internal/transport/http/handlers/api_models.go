package handlers

import (
	"time"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
)

// TokenRequest is the password grant payload.
type TokenRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest exchanges a refresh secret for a new pair.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// TokenResponse carries an issued credential pair.
type TokenResponse struct {
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
	TokenType             string    `json:"tokenType"`
}

func newTokenResponse(pair domain.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:           pair.AccessToken,
		AccessTokenExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:          pair.RefreshToken,
		RefreshTokenExpiresAt: pair.RefreshExpiresAt,
		TokenType:             "Bearer",
	}
}

// NameRequest is shared by the create and rename endpoints.
type NameRequest struct {
	Name string `json:"name"`
}

// CompanyResponse describes a company.
type CompanyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newCompanyResponse(c *domain.Company) CompanyResponse {
	return CompanyResponse{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

// CompanyListQuery pages through companies.
type CompanyListQuery struct {
	Name     string `form:"name"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"pageSize" binding:"omitempty,min=1,max=100"`
}

// CompanyListResponse is one page of companies.
type CompanyListResponse struct {
	Items    []CompanyResponse `json:"items"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

// RoleCreateRequest creates a company role with an optional initial permission set.
type RoleCreateRequest struct {
	Name          string   `json:"name"`
	PermissionIDs []string `json:"permissionIds"`
}

// PermissionIDsRequest names permissions by id.
type PermissionIDsRequest struct {
	PermissionIDs []string `json:"permissionIds"`
	// AllowEmpty confirms that an empty replacement should strip the role.
	AllowEmpty bool `json:"allowEmpty"`
}

// RoleResponse describes a role.
type RoleResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CompanyID *string   `json:"companyId"`
	IsSystem  bool      `json:"isSystem"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newRoleResponse(r *domain.Role) RoleResponse {
	return RoleResponse{
		ID:        r.ID,
		Name:      r.Name,
		CompanyID: r.CompanyID,
		IsSystem:  r.IsSystem,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// PermissionKeysResponse lists permission keys.
type PermissionKeysResponse struct {
	Permissions []string `json:"permissions"`
}

// PermissionResponse describes a catalog entry.
type PermissionResponse struct {
	ID          string  `json:"id"`
	Key         string  `json:"key"`
	Description *string `json:"description,omitempty"`
}

// UserCreateRequest adds a user to the caller's company.
type UserCreateRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// UserUpdateRequest rewrites a user's profile. A blank name keeps the current one.
type UserUpdateRequest struct {
	Email string `json:"email" binding:"required,email,max=256"`
	Name  string `json:"name"`
}

// UserResponse describes a user without credentials.
type UserResponse struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"companyId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserResponse(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, CompanyID: u.CompanyID, Email: u.Email, Name: u.DisplayName, CreatedAt: u.CreatedAt}
}

// AssignRoleRequest links a role to a user.
type AssignRoleRequest struct {
	RoleID string `json:"roleId" binding:"required"`
}

// MePermissionsResponse reports the caller's effective permissions.
type MePermissionsResponse struct {
	UserID      string   `json:"userId"`
	CompanyID   string   `json:"companyId"`
	RoleIDs     []string `json:"roleIds"`
	Permissions []string `json:"permissions"`
}

// OffersResponse is the sample protected resource.
type OffersResponse struct {
	CompanyID string  `json:"companyId"`
	Offers    []Offer `json:"offers"`
}

// Offer is a placeholder sales offer.
type Offer struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

// ReadinessResponse reports each dependency check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
