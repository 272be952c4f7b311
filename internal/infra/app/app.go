package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/Faik442/dotnetblueprints/internal/core/port"
	"github.com/Faik442/dotnetblueprints/internal/infra/config"
	"github.com/Faik442/dotnetblueprints/internal/infra/database"
	kafkainfra "github.com/Faik442/dotnetblueprints/internal/infra/kafka"
	"github.com/Faik442/dotnetblueprints/internal/infra/logger"
	redisinfra "github.com/Faik442/dotnetblueprints/internal/infra/redis"
	"github.com/Faik442/dotnetblueprints/internal/infra/security"
	"github.com/Faik442/dotnetblueprints/internal/infra/telemetry"
	postgresrepo "github.com/Faik442/dotnetblueprints/internal/repository/postgres"
	redisrepo "github.com/Faik442/dotnetblueprints/internal/repository/redis"
	transportgrpc "github.com/Faik442/dotnetblueprints/internal/transport/grpc"
	grpcinterceptors "github.com/Faik442/dotnetblueprints/internal/transport/grpc/interceptors"
	"github.com/Faik442/dotnetblueprints/internal/transport/http/middleware"
	"github.com/Faik442/dotnetblueprints/internal/transport/http/routes"
	"github.com/Faik442/dotnetblueprints/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application owns the process-wide resources and both servers.
type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	tracer     *telemetry.TracerProvider
	grpcServer *transportgrpc.Server
	grpcAddr   string
}

// New connects the backing stores, syncs the permission catalog and builds
// the HTTP and gRPC servers.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	if err := a.init(ctx); err != nil {
		a.close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *Application) init(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	if cfg.Telemetry.TracingEnabled {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App.Env, log)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		a.tracer = tp
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool

	redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("init redis: %w", err)
	}
	a.redis = redisClient

	signer, err := security.NewHMACSigner(security.HMACSignerConfig{
		Issuer:    cfg.JWT.Issuer,
		Audiences: cfg.JWT.Audiences,
		Key:       []byte(cfg.JWT.SigningKey),
	})
	if err != nil {
		return fmt.Errorf("init signer: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return fmt.Errorf("init password hasher: %w", err)
	}

	authzMetrics, err := telemetry.NewAuthzMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("init authz metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}
	grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{})
	if err != nil {
		return fmt.Errorf("init grpc metrics: %w", err)
	}

	events := a.eventPublisher()

	retry := usecase.RetryPolicy{Attempts: cfg.Authz.ReadRetryAttempts, Backoff: cfg.Authz.ReadRetryBackoff}
	store := postgresrepo.NewStore(pool)
	cache := redisrepo.NewRolePermissionCache(redisClient.Client, cfg.Cache.HashKey)

	repairer := usecase.NewPermissionCacheRepairer(store.Repositories().Roles, cache, retry, authzMetrics, log)
	authorizer := usecase.NewAuthorizer(cache, retry, authzMetrics, log)
	credentials := usecase.NewCredentialService(store, signer, hasher, events, usecase.CredentialConfig{
		AccessTTL:  cfg.JWT.AccessTokenTTL(),
		RefreshTTL: cfg.JWT.RefreshTokenTTL(),
	}, log)
	permissions := usecase.NewPermissionService(store, repairer, retry, log)
	companies := usecase.NewCompanyService(store, log)
	roles := usecase.NewRoleService(store, repairer, events, retry, log)
	memberships := usecase.NewMembershipService(store, hasher, events, retry, log)

	synced, err := permissions.SyncCatalog(ctx)
	if err != nil {
		return fmt.Errorf("sync permission catalog: %w", err)
	}
	log.Info("permission catalog synced", zap.Int("inserted", synced))

	if cfg.App.WarmCache {
		rebuilt, err := repairer.RebuildAll(ctx)
		if err != nil {
			// Entries are filled on the next mutation; reads fail closed meanwhile.
			log.Warn("failed to warm permission cache", zap.Int("rebuilt", rebuilt), zap.Error(err))
		} else {
			log.Info("permission cache warmed", zap.Int("roles", rebuilt))
		}
	}

	window := cfg.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client, redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       window * 2,
	})

	registry := routes.DefaultRegistry()

	a.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(rateLimitStore, log),
		Metrics:     httpMetrics,
		Registry:    registry,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Credentials: credentials,
			Authorizer:  authorizer,
			Companies:   companies,
			Roles:       roles,
			Memberships: memberships,
			Permissions: permissions,
		},
	})

	if cfg.GRPC.Enabled {
		grpcSrv, err := transportgrpc.NewServer(transportgrpc.ServerDependencies{
			Validator:  credentials,
			Authorizer: authorizer,
			Registry:   registry,
			Methods: map[string]string{
				transportgrpc.CheckPermissionsMethod:     routes.OpMePermissions,
				transportgrpc.EffectivePermissionsMethod: routes.OpMePermissions,
				transportgrpc.ListPermissionsMethod:      routes.OpPermissionList,
			},
			Authorization:    transportgrpc.NewAuthorizationServer(authorizer, memberships, permissions, log),
			Metrics:          grpcMetrics,
			EnableReflection: cfg.App.Env != "production",
			Logger:           log,
		})
		if err != nil {
			return fmt.Errorf("init grpc server: %w", err)
		}
		a.grpcServer = grpcSrv
		a.grpcAddr = net.JoinHostPort(cfg.GRPC.Host, fmt.Sprint(cfg.GRPC.Port))
	}

	return nil
}

func (a *Application) eventPublisher() port.EventPublisher {
	cfg, log := a.cfg, a.logger
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka disabled, using stub publisher")
		return kafkainfra.NewStubPublisher(log)
	}

	producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
	if err != nil {
		log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(log)
	}
	a.producer = producer
	log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, cfg.App, log)
}

// Run serves HTTP and gRPC until ctx is cancelled or a server fails, then
// shuts both down and releases the backing stores.
func (a *Application) Run(ctx context.Context) error {
	defer a.close(context.Background())

	srv := &http.Server{
		Addr:              net.JoinHostPort(a.cfg.App.Host, fmt.Sprint(a.cfg.App.Port)),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var grpcListener net.Listener
	if a.grpcServer != nil {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		grpcListener = lis
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting HTTP server", zap.String("env", a.cfg.App.Env), zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run http server: %w", err)
		}
		return nil
	})

	if grpcListener != nil {
		g.Go(func() error {
			a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))
			if err := a.grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("run grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down servers")

		if a.grpcServer != nil {
			a.grpcServer.Shutdown()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func (a *Application) close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("failed to close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("failed to shutdown tracer provider", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
