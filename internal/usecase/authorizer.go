package usecase

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/port"
	"github.com/Faik442/dotnetblueprints/internal/infra/telemetry"
)

const tracerName = "github.com/Faik442/dotnetblueprints/internal/usecase"

// Authorizer decides whether an identity holds every required permission key.
// Role membership comes from the token; the keys behind each role come from
// the cache at decision time.
type Authorizer struct {
	cache    port.RolePermissionCache
	retry    RetryPolicy
	observer AuthzObserver
	logger   *zap.Logger
}

// NewAuthorizer constructs an Authorizer reading role keys from cache.
func NewAuthorizer(cache port.RolePermissionCache, retry RetryPolicy, observer AuthzObserver, logger *zap.Logger) *Authorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authorizer{cache: cache, retry: retry, observer: observerOrNop(observer), logger: logger}
}

// Authorize returns nil when identity may proceed, ErrUnauthenticated when
// there is no caller and ErrForbidden when any required key is missing.
func (a *Authorizer) Authorize(ctx context.Context, identity *domain.Identity, required []string) error {
	required = domain.NormalizePermissionKeys(required)
	if len(required) == 0 {
		return nil
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "authz.Authorize")
	defer span.End()

	result, err := a.decide(ctx, identity, required)
	span.SetAttributes(
		attribute.String("authz.result", result),
		attribute.StringSlice("authz.required", required),
	)
	a.observer.ObserveDecision(result)
	return err
}

func (a *Authorizer) decide(ctx context.Context, identity *domain.Identity, required []string) (string, error) {
	if identity == nil || identity.UserID == "" {
		return telemetry.DecisionUnauthenticated, ErrUnauthenticated
	}
	if identity.CompanyID == "" || len(identity.RoleIDs) == 0 {
		return telemetry.DecisionDeny, ErrForbidden
	}

	granted, err := a.grantedKeys(ctx, identity.RoleIDs)
	if err != nil {
		return telemetry.DecisionDeny, err
	}

	if _, ok := granted[domain.WildcardPermission]; ok {
		return telemetry.DecisionAllow, nil
	}
	for _, key := range required {
		if _, ok := granted[strings.ToLower(key)]; !ok {
			a.logger.Debug("permission denied",
				zap.String("user_id", identity.UserID),
				zap.String("company_id", identity.CompanyID),
				zap.String("missing", key),
			)
			return telemetry.DecisionDeny, ErrForbidden
		}
	}
	return telemetry.DecisionAllow, nil
}

type cacheEntry struct {
	keys []string
	ok   bool
}

// grantedKeys unions the cached sets of every role, lower-cased. A missing or
// unreadable entry contributes nothing.
func (a *Authorizer) grantedKeys(ctx context.Context, roleIDs []string) (map[string]struct{}, error) {
	sets := make([][]string, len(roleIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, roleID := range roleIDs {
		g.Go(func() error {
			entry, err := retryRead(gctx, a.retry, func(ctx context.Context) (cacheEntry, error) {
				keys, ok, err := a.cache.Get(ctx, roleID)
				return cacheEntry{keys: keys, ok: ok}, err
			})
			switch {
			case err != nil:
				a.observer.ObserveCacheLookup(telemetry.CacheError)
				a.logger.Warn("role permission cache read failed",
					zap.String("role_id", roleID),
					zap.Error(err),
				)
			case !entry.ok:
				a.observer.ObserveCacheLookup(telemetry.CacheMiss)
			default:
				a.observer.ObserveCacheLookup(telemetry.CacheHit)
				sets[i] = entry.keys
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	granted := make(map[string]struct{})
	for _, keys := range sets {
		for _, key := range keys {
			granted[strings.ToLower(strings.TrimSpace(key))] = struct{}{}
		}
	}
	return granted, nil
}
