package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/core/port"
	appLogger "github.com/Faik442/dotnetblueprints/internal/infra/logger"
)

// IdentifierFunc extracts the identifier used to scope rate limits.
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a sliding-window limit for a particular identifier.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter enforces sliding-window limits kept in a port.RateLimitStore. Store
// failures let the request through.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

type windowState struct {
	rule       RateLimitRule
	identifier string
	allowed    bool
	remaining  int
	reset      time.Time
	retryAfter time.Duration
}

// NewRateLimiter builds a limiter over store.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock replaces the limiter clock.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier scopes a rule to the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// RateLimit returns a middleware enforcing every valid rule. The tightest
// passing window is reported in the X-RateLimit headers.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if len(active) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var tightest *windowState

		for _, rule := range active {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			state, err := rl.evaluate(c.Request.Context(), rule, identifier, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.String("identifier", appLogger.MaskIP(identifier)),
					zap.Error(err),
				)
				continue
			}

			if !state.allowed {
				writeRateLimitHeaders(c, state)
				rl.reject(c, state)
				return
			}
			if tightest == nil || state.remaining < tightest.remaining ||
				(state.remaining == tightest.remaining && state.reset.Before(tightest.reset)) {
				s := state
				tightest = &s
			}
		}

		if tightest != nil {
			writeRateLimitHeaders(c, *tightest)
		}
		c.Next()
	}
}

func (rl *RateLimiter) evaluate(ctx context.Context, rule RateLimitRule, identifier string, now time.Time) (windowState, error) {
	key := rule.Name + ":" + identifier

	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return windowState{}, err
	}
	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return windowState{}, err
	}
	oldest, hasAttempts, err := rl.store.OldestAttempt(ctx, key, rule.Window, now)
	if err != nil {
		return windowState{}, err
	}

	state := windowState{rule: rule, identifier: identifier, reset: now.Add(rule.Window)}
	if hasAttempts {
		state.reset = oldest.Add(rule.Window)
	}
	state.retryAfter = max(state.reset.Sub(now), 0)

	if count >= rule.Limit {
		return state, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return windowState{}, err
	}
	state.allowed = true
	state.remaining = max(rule.Limit-count-1, 0)
	return state, nil
}

func (rl *RateLimiter) reject(c *gin.Context, state windowState) {
	seconds := retryAfterSeconds(state.retryAfter)

	rl.logger.Info("rate limit exceeded",
		zap.String("request_id", GetRequestID(c)),
		zap.String("rule", state.rule.Name),
		zap.String("client_ip", appLogger.MaskIP(state.identifier)),
		zap.Int("retry_after_seconds", seconds),
	)

	AbortWithError(c, http.StatusTooManyRequests, fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds))
}

func writeRateLimitHeaders(c *gin.Context, state windowState) {
	h := c.Writer.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(state.rule.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(state.remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(state.reset.Unix(), 10))
	if !state.allowed {
		h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(state.retryAfter)))
	}
}

func retryAfterSeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 0)
}
