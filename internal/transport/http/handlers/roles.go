package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
)

// RoleManager runs role commands inside the caller's company.
type RoleManager interface {
	CreateRole(ctx context.Context, actorID, companyID, name string, permissionIDs []string) (*domain.Role, error)
	RenameRole(ctx context.Context, companyID, roleID, name string) (*domain.Role, error)
	DeleteRole(ctx context.Context, actorID, companyID, roleID string) error
	AssignPermissions(ctx context.Context, actorID, companyID, roleID string, permissionIDs []string) error
	RemovePermissions(ctx context.Context, actorID, companyID, roleID string, permissionIDs []string) error
	ReplacePermissions(ctx context.Context, actorID, companyID, roleID string, permissionIDs []string, allowEmpty bool) error
	RolePermissions(ctx context.Context, companyID, roleID string) ([]string, error)
}

// RoleHandler serves /roles.
type RoleHandler struct {
	roles  RoleManager
	logger *zap.Logger
}

// NewRoleHandler constructs RoleHandler.
func NewRoleHandler(roles RoleManager, logger *zap.Logger) *RoleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleHandler{roles: roles, logger: logger}
}

// Create handles POST /roles.
func (h *RoleHandler) Create(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req RoleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid role payload")
		return
	}
	if err := checkPermissionIDs(req.PermissionIDs); err != nil {
		respondError(c, h.logger, err)
		return
	}

	role, err := h.roles.CreateRole(c.Request.Context(), identity.UserID, identity.CompanyID, req.Name, req.PermissionIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, newRoleResponse(role))
}

// Rename handles PUT /roles/:roleId.
func (h *RoleHandler) Rename(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	roleID, ok := pathID(c, h.logger, "roleId", "Role")
	if !ok {
		return
	}

	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid role payload")
		return
	}

	role, err := h.roles.RenameRole(c.Request.Context(), identity.CompanyID, roleID, req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newRoleResponse(role))
}

// Delete handles DELETE /roles/:roleId.
func (h *RoleHandler) Delete(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	roleID, ok := pathID(c, h.logger, "roleId", "Role")
	if !ok {
		return
	}

	if err := h.roles.DeleteRole(c.Request.Context(), identity.UserID, identity.CompanyID, roleID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Permissions handles GET /roles/:roleId/permissions.
func (h *RoleHandler) Permissions(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	roleID, ok := pathID(c, h.logger, "roleId", "Role")
	if !ok {
		return
	}

	keys, err := h.roles.RolePermissions(c.Request.Context(), identity.CompanyID, roleID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, PermissionKeysResponse{Permissions: keys})
}

// AssignPermissions handles POST /roles/:roleId/permissions.
func (h *RoleHandler) AssignPermissions(c *gin.Context) {
	h.changePermissions(c, func(ctx context.Context, actorID, companyID, roleID string, req PermissionIDsRequest) error {
		return h.roles.AssignPermissions(ctx, actorID, companyID, roleID, req.PermissionIDs)
	})
}

// RemovePermissions handles DELETE /roles/:roleId/permissions.
func (h *RoleHandler) RemovePermissions(c *gin.Context) {
	h.changePermissions(c, func(ctx context.Context, actorID, companyID, roleID string, req PermissionIDsRequest) error {
		return h.roles.RemovePermissions(ctx, actorID, companyID, roleID, req.PermissionIDs)
	})
}

// ReplacePermissions handles PUT /roles/:roleId/permissions.
func (h *RoleHandler) ReplacePermissions(c *gin.Context) {
	h.changePermissions(c, func(ctx context.Context, actorID, companyID, roleID string, req PermissionIDsRequest) error {
		return h.roles.ReplacePermissions(ctx, actorID, companyID, roleID, req.PermissionIDs, req.AllowEmpty)
	})
}

type permissionChange func(ctx context.Context, actorID, companyID, roleID string, req PermissionIDsRequest) error

// changePermissions binds the payload, runs change and answers with the role's
// resulting keys.
func (h *RoleHandler) changePermissions(c *gin.Context, change permissionChange) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	roleID, ok := pathID(c, h.logger, "roleId", "Role")
	if !ok {
		return
	}

	var req PermissionIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid permission payload")
		return
	}
	if err := checkPermissionIDs(req.PermissionIDs); err != nil {
		respondError(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	if err := change(ctx, identity.UserID, identity.CompanyID, roleID, req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	keys, err := h.roles.RolePermissions(ctx, identity.CompanyID, roleID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, PermissionKeysResponse{Permissions: keys})
}
