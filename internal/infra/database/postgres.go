package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/infra/config"
)

// SearchPath puts the authorization schema ahead of public.
const SearchPath = "iam,public"

const connectBudget = 30 * time.Second

// DSN renders the connection string for the settings.
func DSN(cfg config.PostgresSettings) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": []string{cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

// PoolConfig parses the DSN and applies the non-zero pool limits.
func PoolConfig(cfg config.PostgresSettings) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	setIfPositive(&pc.MaxConns, cfg.MaxConns)
	setIfPositive(&pc.MinConns, cfg.MinConns)
	setIfPositive(&pc.MaxConnLifetime, cfg.MaxConnLifetime)
	setIfPositive(&pc.MaxConnIdleTime, cfg.MaxConnIdleTime)
	setIfPositive(&pc.HealthCheckPeriod, cfg.HealthCheckPeriod)

	if pc.ConnConfig.RuntimeParams == nil {
		pc.ConnConfig.RuntimeParams = map[string]string{}
	}
	pc.ConnConfig.RuntimeParams["search_path"] = SearchPath
	return pc, nil
}

func setIfPositive[T int32 | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

// NewPostgresPool connects and pings, retrying with exponential backoff while
// the database is still starting.
func NewPostgresPool(ctx context.Context, cfg config.PostgresSettings, log *zap.Logger) (*pgxpool.Pool, error) {
	pc, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = connectBudget
	ping := func() error { return pool.Ping(ctx) }
	notify := func(err error, wait time.Duration) {
		log.Warn("postgres not ready", zap.Error(err), zap.Duration("retry_in", wait))
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(policy, ctx), notify); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log.Info("postgres connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.Int32("max_conns", pc.MaxConns),
	)
	return pool, nil
}
