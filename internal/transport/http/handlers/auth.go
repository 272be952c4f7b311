package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	appLogger "github.com/Faik442/dotnetblueprints/internal/infra/logger"
)

// CredentialIssuer issues and rotates credential pairs.
type CredentialIssuer interface {
	Login(ctx context.Context, email, password string) (domain.TokenPair, error)
	Refresh(ctx context.Context, rawSecret string) (domain.TokenPair, error)
}

// AuthHandler exposes the token endpoints.
type AuthHandler struct {
	credentials CredentialIssuer
	logger      *zap.Logger
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(credentials CredentialIssuer, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{credentials: credentials, logger: logger}
}

// RegisterRoutes binds the token routes. tokenMiddlewares run ahead of /token
// and refreshMiddlewares ahead of /refreshToken.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, tokenMiddlewares, refreshMiddlewares []gin.HandlerFunc) {
	r.POST("/token", append(append([]gin.HandlerFunc{}, tokenMiddlewares...), h.token)...)
	r.POST("/refreshToken", append(append([]gin.HandlerFunc{}, refreshMiddlewares...), h.refreshToken)...)
}

func (h *AuthHandler) token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "email and password are required")
		return
	}

	pair, err := h.credentials.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		appLogger.WithContext(c.Request.Context(), h.logger).Info("token request rejected",
			zap.String("email", appLogger.MaskEmail(req.Email)),
			zap.Error(err),
		)
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, newTokenResponse(pair))
}

func (h *AuthHandler) refreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "refreshToken is required")
		return
	}

	pair, err := h.credentials.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, newTokenResponse(pair))
}
