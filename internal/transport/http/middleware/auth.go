package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/policy"
	appLogger "github.com/Faik442/dotnetblueprints/internal/infra/logger"
	"github.com/Faik442/dotnetblueprints/internal/usecase"
)

// AccessValidator turns a bearer token into the caller identity.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, raw string) (*domain.Identity, error)
}

// PermissionAuthorizer decides whether identity holds every required key.
type PermissionAuthorizer interface {
	Authorize(ctx context.Context, identity *domain.Identity, required []string) error
}

// RequireAuth validates the Authorization header and stores the caller identity.
func RequireAuth(validator AccessValidator, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		identity, err := validator.ValidateAccess(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, usecase.ErrUnauthenticated) {
				appLogger.WithContext(c.Request.Context(), log).Error("access token validation failed", zap.Error(err))
				AbortWithError(c, http.StatusInternalServerError, "Internal server error")
				return
			}
			AbortWithError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// RequirePermission enforces the registered requirement of op. It panics when op
// is not registered so a missing declaration fails at startup.
func RequirePermission(authorizer PermissionAuthorizer, registry *policy.Registry, op string, log *zap.Logger) gin.HandlerFunc {
	required, ok := registry.Requirement(op)
	if !ok {
		panic(fmt.Sprintf("middleware: operation %q has no registered requirement", op))
	}
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		identity, _ := GetIdentity(c)

		err := authorizer.Authorize(c.Request.Context(), identity, required)
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, usecase.ErrUnauthenticated):
			AbortWithError(c, http.StatusUnauthorized, "Unauthorized")
		case errors.Is(err, usecase.ErrForbidden):
			AbortWithError(c, http.StatusForbidden, "Forbidden")
		default:
			appLogger.WithContext(c.Request.Context(), log).Error("authorization failed",
				zap.String("operation", op),
				zap.Error(err),
			)
			AbortWithError(c, http.StatusInternalServerError, "Internal server error")
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
