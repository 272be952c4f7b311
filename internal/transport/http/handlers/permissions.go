package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
)

// PermissionCatalog reads and retires catalog entries.
type PermissionCatalog interface {
	List(ctx context.Context) ([]domain.Permission, error)
	Retire(ctx context.Context, permissionID string) error
}

// PermissionHandler serves /permissions and the sample /offers resource.
type PermissionHandler struct {
	permissions PermissionCatalog
	logger      *zap.Logger
}

// NewPermissionHandler constructs PermissionHandler.
func NewPermissionHandler(permissions PermissionCatalog, logger *zap.Logger) *PermissionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionHandler{permissions: permissions, logger: logger}
}

// List handles GET /permissions.
func (h *PermissionHandler) List(c *gin.Context) {
	perms, err := h.permissions.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	out := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, PermissionResponse{ID: p.ID, Key: p.Key, Description: p.Description})
	}
	c.JSON(http.StatusOK, out)
}

// Retire handles DELETE /permissions/:permissionId. Roles granting the
// permission lose it.
func (h *PermissionHandler) Retire(c *gin.Context) {
	permissionID, ok := pathID(c, h.logger, "permissionId", "Permission")
	if !ok {
		return
	}

	if err := h.permissions.Retire(c.Request.Context(), permissionID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Offers handles GET /offers. It only proves that enforcement ran.
func Offers(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, OffersResponse{CompanyID: identity.CompanyID, Offers: []Offer{}})
}
