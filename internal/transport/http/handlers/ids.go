package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/usecase"
)

// pathID returns the uuid path parameter. A value that is not a uuid cannot
// name a stored row, so it is answered as not found before reaching the store.
func pathID(c *gin.Context, log *zap.Logger, param, entity string) (string, bool) {
	raw := c.Param(param)
	if !isUUID(raw) {
		respondError(c, log, usecase.NotFound(entity, raw))
		return "", false
	}
	return raw, true
}

// checkPermissionIDs rejects body ids that cannot match any catalog entry.
func checkPermissionIDs(ids []string) error {
	var malformed []string
	for _, id := range ids {
		if !isUUID(id) {
			malformed = append(malformed, id)
		}
	}
	if len(malformed) > 0 {
		return usecase.InvalidField("permissionIds", "unknown permission ids: "+strings.Join(malformed, ", "))
	}
	return nil
}

func isUUID(raw string) bool {
	_, err := uuid.Parse(raw)
	return err == nil
}
