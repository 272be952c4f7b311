package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}, ",")
	corsHeaders = strings.Join([]string{"Authorization", "Content-Type", RequestIDHeader}, ",")
	corsExposed = strings.Join([]string{RequestIDHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"}, ",")
)

type corsPolicy struct {
	any     bool
	origins map[string]struct{}
}

func (p corsPolicy) allowed(origin string) (string, bool) {
	if p.any {
		return "*", true
	}
	if _, ok := p.origins[origin]; ok {
		return origin, true
	}
	return "", false
}

// CORS answers preflight requests for the configured origins. "*" admits any
// origin; an empty list installs a pass-through.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	if len(allowedOrigins) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	policy := corsPolicy{origins: make(map[string]struct{}, len(allowedOrigins))}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			policy.any = true
			continue
		}
		policy.origins[origin] = struct{}{}
	}

	return func(c *gin.Context) {
		value, ok := policy.allowed(c.GetHeader("Origin"))
		if ok {
			c.Header("Access-Control-Allow-Origin", value)
			if value != "*" {
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Expose-Headers", corsExposed)
		}

		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}
		if ok {
			c.Header("Access-Control-Allow-Methods", corsMethods)
			c.Header("Access-Control-Allow-Headers", corsHeaders)
			c.Header("Access-Control-Max-Age", "86400")
		}
		c.AbortWithStatus(http.StatusNoContent)
	}
}
