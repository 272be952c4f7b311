package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	appLogger "github.com/Faik442/dotnetblueprints/internal/infra/logger"
	"github.com/Faik442/dotnetblueprints/internal/usecase"
)

// MembershipManager manages company users and their roles.
type MembershipManager interface {
	CreateUser(ctx context.Context, companyID, email, name, password string) (*domain.User, error)
	AssignRole(ctx context.Context, actorID, companyID, userID, roleID string) error
	RemoveRole(ctx context.Context, actorID, companyID, userID, roleID string) error
	UpdateProfile(ctx context.Context, companyID, userID, email, name string) (*domain.User, error)
	RemoveUser(ctx context.Context, actorID, companyID, userID string) error
	EffectivePermissions(ctx context.Context, identity *domain.Identity) ([]string, error)
}

// UserHandler serves /users and /me.
type UserHandler struct {
	memberships MembershipManager
	logger      *zap.Logger
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(memberships MembershipManager, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{memberships: memberships, logger: logger}
}

// Create handles POST /users.
func (h *UserHandler) Create(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req UserCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid user payload: a valid email is required")
		return
	}

	user, err := h.memberships.CreateUser(c.Request.Context(), identity.CompanyID, req.Email, req.Name, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	appLogger.WithContext(c.Request.Context(), h.logger).Info("user created",
		zap.String("user_id", user.ID),
		zap.String("email", appLogger.MaskEmail(user.Email)),
		zap.String("created_by", identity.UserID),
	)
	c.JSON(http.StatusCreated, newUserResponse(user))
}

// Update handles PUT /users/:userId.
func (h *UserHandler) Update(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	userID, ok := pathID(c, h.logger, "userId", "User")
	if !ok {
		return
	}

	var req UserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid user payload: a valid email is required")
		return
	}

	user, err := h.memberships.UpdateProfile(c.Request.Context(), identity.CompanyID, userID, req.Email, req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

// Delete handles DELETE /users/:userId.
func (h *UserHandler) Delete(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	userID, ok := pathID(c, h.logger, "userId", "User")
	if !ok {
		return
	}

	if err := h.memberships.RemoveUser(c.Request.Context(), identity.UserID, identity.CompanyID, userID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	appLogger.WithContext(c.Request.Context(), h.logger).Info("user removed",
		zap.String("user_id", userID),
		zap.String("removed_by", identity.UserID),
	)
	c.Status(http.StatusNoContent)
}

// AssignRole handles POST /users/:userId/roles.
func (h *UserHandler) AssignRole(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	userID, ok := pathID(c, h.logger, "userId", "User")
	if !ok {
		return
	}

	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "roleId is required")
		return
	}
	if !isUUID(req.RoleID) {
		respondError(c, h.logger, usecase.NotFound("Role", req.RoleID))
		return
	}

	if err := h.memberships.AssignRole(c.Request.Context(), identity.UserID, identity.CompanyID, userID, req.RoleID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveRole handles DELETE /users/:userId/roles/:roleId.
func (h *UserHandler) RemoveRole(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	userID, ok := pathID(c, h.logger, "userId", "User")
	if !ok {
		return
	}
	roleID, ok := pathID(c, h.logger, "roleId", "Role")
	if !ok {
		return
	}

	if err := h.memberships.RemoveRole(c.Request.Context(), identity.UserID, identity.CompanyID, userID, roleID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MePermissions handles GET /me/permissions. Keys come from the store, so the
// answer can differ from what the current token's roles imply.
func (h *UserHandler) MePermissions(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	keys, err := h.memberships.EffectivePermissions(c.Request.Context(), identity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	roleIDs := identity.RoleIDs
	if roleIDs == nil {
		roleIDs = []string{}
	}
	c.JSON(http.StatusOK, MePermissionsResponse{
		UserID:      identity.UserID,
		CompanyID:   identity.CompanyID,
		RoleIDs:     roleIDs,
		Permissions: keys,
	})
}
