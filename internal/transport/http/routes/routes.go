package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/core/policy"
	"github.com/Faik442/dotnetblueprints/internal/infra/config"
	"github.com/Faik442/dotnetblueprints/internal/transport/http/handlers"
	"github.com/Faik442/dotnetblueprints/internal/transport/http/middleware"
)

// Credentials issues pairs and validates access tokens.
type Credentials interface {
	handlers.CredentialIssuer
	middleware.AccessValidator
}

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Credentials Credentials
	Authorizer  middleware.PermissionAuthorizer
	Companies   handlers.CompanyManager
	Roles       handlers.RoleManager
	Memberships handlers.MembershipManager
	Permissions handlers.PermissionCatalog
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Registry    *policy.Registry
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	registry := deps.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}

	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", middleware.GetRequestID(c)),
		)
		middleware.AbortWithError(c, http.StatusInternalServerError, "Internal server error")
	}))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log, "/healthz", "/readyz", "/metrics"))
	r.Use(deps.Metrics.Handler())
	if deps.Config != nil {
		r.Use(middleware.CORS(deps.Config.App.CORSOrigins))
	}

	r.NoRoute(func(c *gin.Context) {
		middleware.AbortWithError(c, http.StatusNotFound, "Route not found")
	})

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("postgres", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	health := handlers.NewHealthHandler(healthOptions...)
	r.GET("/healthz", health.Status)
	r.GET("/readyz", health.Readiness)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	} else {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	svc := deps.Services
	if svc.Credentials == nil {
		return r
	}

	auth := handlers.NewAuthHandler(svc.Credentials, log)
	auth.RegisterRoutes(r.Group("/auth"),
		rateLimit(deps, "auth_token_ip", tokenLimit(deps.Config)),
		rateLimit(deps, "auth_refresh_ip", refreshLimit(deps.Config)),
	)

	if svc.Authorizer == nil {
		return r
	}

	api := r.Group("/api/v1")
	api.Use(middleware.RequireAuth(svc.Credentials, log))

	// guard binds an operation's registered requirement ahead of its handler
	guard := func(op string, h gin.HandlerFunc) []gin.HandlerFunc {
		return []gin.HandlerFunc{middleware.RequirePermission(svc.Authorizer, registry, op, log), h}
	}

	if svc.Companies != nil {
		companies := handlers.NewCompanyHandler(svc.Companies, log)
		api.POST("/companies", guard(OpCompanyCreate, companies.Create)...)
		api.GET("/companies", guard(OpCompanyList, companies.List)...)
		api.GET("/companies/:companyId", guard(OpCompanyRead, companies.Get)...)
		api.PUT("/companies/:companyId", guard(OpCompanyRename, companies.Rename)...)
		api.DELETE("/companies/:companyId", guard(OpCompanyDelete, companies.Delete)...)
	}

	if svc.Roles != nil {
		roles := handlers.NewRoleHandler(svc.Roles, log)
		api.POST("/roles", guard(OpRoleCreate, roles.Create)...)
		api.PUT("/roles/:roleId", guard(OpRoleRename, roles.Rename)...)
		api.DELETE("/roles/:roleId", guard(OpRoleDelete, roles.Delete)...)
		api.GET("/roles/:roleId/permissions", guard(OpRolePermissionsRead, roles.Permissions)...)
		api.POST("/roles/:roleId/permissions", guard(OpRolePermissionsAssign, roles.AssignPermissions)...)
		api.DELETE("/roles/:roleId/permissions", guard(OpRolePermissionsRemove, roles.RemovePermissions)...)
		api.PUT("/roles/:roleId/permissions", guard(OpRolePermissionsReplace, roles.ReplacePermissions)...)
	}

	if svc.Memberships != nil {
		users := handlers.NewUserHandler(svc.Memberships, log)
		api.POST("/users", guard(OpUserCreate, users.Create)...)
		api.PUT("/users/:userId", guard(OpUserUpdate, users.Update)...)
		api.DELETE("/users/:userId", guard(OpUserDelete, users.Delete)...)
		api.POST("/users/:userId/roles", guard(OpUserRolesAssign, users.AssignRole)...)
		api.DELETE("/users/:userId/roles/:roleId", guard(OpUserRolesRemove, users.RemoveRole)...)
		api.GET("/me/permissions", guard(OpMePermissions, users.MePermissions)...)
	}

	if svc.Permissions != nil {
		permissions := handlers.NewPermissionHandler(svc.Permissions, log)
		api.GET("/permissions", guard(OpPermissionList, permissions.List)...)
		api.DELETE("/permissions/:permissionId", guard(OpPermissionRetire, permissions.Retire)...)
	}

	api.GET("/offers", guard(OpOffersReadCompany, handlers.Offers)...)

	return r
}

type limit struct {
	attempts int
	window   time.Duration
}

func tokenLimit(cfg *config.AppConfig) limit {
	if cfg == nil {
		return limit{}
	}
	return limit{attempts: cfg.RateLimit.TokenMaxAttempts, window: cfg.RateLimit.WindowDuration}
}

func refreshLimit(cfg *config.AppConfig) limit {
	if cfg == nil {
		return limit{}
	}
	return limit{attempts: cfg.RateLimit.RefreshMaxAttempts, window: cfg.RateLimit.WindowDuration}
}

func rateLimit(deps Dependencies, name string, l limit) []gin.HandlerFunc {
	if deps.RateLimiter == nil || l.attempts <= 0 {
		return nil
	}
	window := l.window
	if window <= 0 {
		window = time.Minute
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:       name,
		Limit:      l.attempts,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})}
}
