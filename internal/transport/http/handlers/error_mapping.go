package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	appLogger "github.com/Faik442/dotnetblueprints/internal/infra/logger"
	"github.com/Faik442/dotnetblueprints/internal/transport/http/middleware"
	"github.com/Faik442/dotnetblueprints/internal/usecase"
)

const internalErrorMessage = "Internal server error"

// ErrorCase maps a sentinel error to an HTTP status code. An empty Message
// exposes the error text with the sentinel prefix removed.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// DefaultErrorCases covers the usecase error taxonomy.
var DefaultErrorCases = []ErrorCase{
	{Err: usecase.ErrUnauthenticated, Status: http.StatusUnauthorized, Message: "Unauthorized"},
	{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "Forbidden"},
	{Err: usecase.ErrNotFound, Status: http.StatusNotFound},
	{Err: usecase.ErrValidation, Status: http.StatusBadRequest},
	{Err: usecase.ErrConflict, Status: http.StatusConflict},
}

// RespondWithMappedError writes the envelope for the first matching case.
// Unmatched errors are logged and reported as 500.
func RespondWithMappedError(c *gin.Context, log *zap.Logger, err error, cases []ErrorCase) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil || !errors.Is(err, cs.Err) {
			continue
		}
		message := cs.Message
		if message == "" {
			message = publicMessage(err, cs.Err)
		}
		c.JSON(cs.Status, middleware.NewErrorResponse(c, cs.Status, message))
		return
	}

	if log != nil {
		appLogger.WithContext(c.Request.Context(), log).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, middleware.NewErrorResponse(c, http.StatusInternalServerError, internalErrorMessage))
}

// publicMessage strips the leading "sentinel: " from wrapped messages.
func publicMessage(err, sentinel error) string {
	msg := err.Error()
	if trimmed, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return trimmed
	}
	return msg
}

func respondError(c *gin.Context, log *zap.Logger, err error) {
	RespondWithMappedError(c, log, err, DefaultErrorCases)
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, middleware.NewErrorResponse(c, http.StatusBadRequest, message))
}

// requireIdentity returns the caller stored by the auth middleware or writes 401.
func requireIdentity(c *gin.Context) (*domain.Identity, bool) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.NewErrorResponse(c, http.StatusUnauthorized, "Unauthorized"))
		return nil, false
	}
	return identity, true
}
