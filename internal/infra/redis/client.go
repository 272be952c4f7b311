package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/infra/config"
)

const connectTimeout = 5 * time.Second

// Client is the pool shared by the role permission cache and the rate limiter.
type Client struct {
	*redis.Client
	addr   string
	logger *zap.Logger
}

// Options derives pool options from settings. Lookups on the authorization
// path are small, so the pool stays narrow and timeouts short.
func Options(cfg config.RedisSettings) *redis.Options {
	opts := &redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:        10,
		MinIdleConns:    2,
		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,

		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,

		DialTimeout:  connectTimeout,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// NewClient opens the pool and refuses to return until Redis answers a ping.
func NewClient(ctx context.Context, cfg config.RedisSettings, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := Options(cfg)
	c := &Client{Client: redis.NewClient(opts), addr: opts.Addr, logger: logger}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := c.HealthCheck(pingCtx); err != nil {
		_ = c.Client.Close()
		return nil, err
	}

	logger.Info("redis connected",
		zap.String("addr", c.addr),
		zap.Int("db", cfg.DB),
		zap.Bool("tls", cfg.TLSEnabled),
	)
	return c, nil
}

// HealthCheck pings the server; /readyz calls it.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", c.addr, err)
	}
	return nil
}

// Close releases the pool.
func (c *Client) Close() error {
	if err := c.Client.Close(); err != nil {
		return fmt.Errorf("close redis %s: %w", c.addr, err)
	}
	c.logger.Info("redis closed", zap.String("addr", c.addr))
	return nil
}
