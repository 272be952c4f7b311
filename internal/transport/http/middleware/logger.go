package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appLogger "github.com/Faik442/dotnetblueprints/internal/infra/logger"
)

// Logger writes one access log line per request. Health and metrics endpoints are only
// logged when they fail. Client IPs are masked.
func Logger(log *zap.Logger, quietPaths ...string) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	quiet := make(map[string]struct{}, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if _, ok := quiet[c.Request.URL.Path]; ok && status < http.StatusInternalServerError {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		fields := make([]zap.Field, 0, 10)
		fields = append(fields,
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", appLogger.MaskIP(c.ClientIP())),
		)
		if identity, ok := GetIdentity(c); ok {
			fields = append(fields, zap.String("user_id", identity.UserID), zap.String("company_id", identity.CompanyID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if ce := log.Check(accessLevel(status), "http request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func accessLevel(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
