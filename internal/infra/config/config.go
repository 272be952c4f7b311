package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// minSigningKeyBytes is the HS256 key floor (256 bits).
const minSigningKeyBytes = 32

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Cache     CacheSettings     `mapstructure:"cache"`
	Authz     AuthzSettings     `mapstructure:"authz"`
	GRPC      GRPCSettings      `mapstructure:"grpc"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// WarmCache rebuilds every role's cache entry at startup.
	WarmCache   bool     `mapstructure:"warm_cache"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type GRPCSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	RateLimitPrefix string `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the change event producer
type KafkaSettings struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// JWTSettings configures access token signing and token lifetimes.
type JWTSettings struct {
	Issuer             string   `mapstructure:"issuer"`
	Audiences          []string `mapstructure:"audiences"`
	SigningKey         string   `mapstructure:"signing_key"`
	AccessTokenMinutes int      `mapstructure:"access_token_minutes"`
	RefreshTokenDays   int      `mapstructure:"refresh_token_days"`
}

// AccessTokenTTL is the configured access token lifetime.
func (s JWTSettings) AccessTokenTTL() time.Duration {
	return time.Duration(s.AccessTokenMinutes) * time.Minute
}

// RefreshTokenTTL is the configured refresh token lifetime.
func (s JWTSettings) RefreshTokenTTL() time.Duration {
	return time.Duration(s.RefreshTokenDays) * 24 * time.Hour
}

// CacheSettings configures the role permission cache.
type CacheSettings struct {
	HashKey string `mapstructure:"hash_key"`
}

// AuthzSettings tunes retries of permission reads.
type AuthzSettings struct {
	ReadRetryAttempts int           `mapstructure:"read_retry_attempts"`
	ReadRetryBackoff  time.Duration `mapstructure:"read_retry_backoff"`
}

type TelemetrySettings struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// RateLimitSettings configures the sliding windows on the credential endpoints
type RateLimitSettings struct {
	WindowDuration     time.Duration `mapstructure:"window_duration"`
	TokenMaxAttempts   int           `mapstructure:"token_max_attempts"`
	RefreshMaxAttempts int           `mapstructure:"refresh_max_attempts"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

var envKeys = []string{
	"app.name",
	"app.env",
	"app.host",
	"app.port",
	"app.warm_cache",
	"app.cors_origins",
	"grpc.enabled",
	"grpc.host",
	"grpc.port",
	"postgres.host",
	"postgres.port",
	"postgres.user",
	"postgres.password",
	"postgres.database",
	"postgres.ssl_mode",
	"postgres.max_conns",
	"postgres.min_conns",
	"postgres.max_conn_lifetime",
	"postgres.max_conn_idle_time",
	"postgres.health_check_period",
	"redis.host",
	"redis.port",
	"redis.db",
	"redis.password",
	"redis.tls_enabled",
	"redis.rate_limit_prefix",
	"kafka.enabled",
	"kafka.brokers",
	"kafka.topic_prefix",
	"jwt.issuer",
	"jwt.audiences",
	"jwt.signing_key",
	"jwt.access_token_minutes",
	"jwt.refresh_token_days",
	"cache.hash_key",
	"authz.read_retry_attempts",
	"authz.read_retry_backoff",
	"telemetry.tracing_enabled",
	"telemetry.otlp_endpoint",
	"telemetry.service_name",
	"telemetry.sampling_rate",
	"rate_limit.window_duration",
	"rate_limit.token_max_attempts",
	"rate_limit.refresh_max_attempts",
	"argon2.memory",
	"argon2.iterations",
	"argon2.parallelism",
	"argon2.salt_length",
	"argon2.key_length",
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("IAM")

	setDefaults(v)

	if err := bindEnvs(v, envKeys); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.JWT.Audiences = splitList(cfg.JWT.Audiences)
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.App.CORSOrigins = splitList(cfg.App.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the service cannot run safely with.
func (c *AppConfig) Validate() error {
	var errs []error

	if strings.TrimSpace(c.JWT.Issuer) == "" {
		errs = append(errs, errors.New("jwt.issuer is required"))
	}
	if len(c.JWT.Audiences) == 0 {
		errs = append(errs, errors.New("jwt.audiences must list at least one audience"))
	}
	if len(c.JWT.SigningKey) < minSigningKeyBytes {
		errs = append(errs, fmt.Errorf("jwt.signing_key must be at least %d bytes", minSigningKeyBytes))
	}
	if c.JWT.AccessTokenMinutes <= 0 {
		errs = append(errs, errors.New("jwt.access_token_minutes must be positive"))
	}
	if c.JWT.RefreshTokenDays <= 0 {
		errs = append(errs, errors.New("jwt.refresh_token_days must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "authz-core")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.warm_cache", true)
	v.SetDefault("app.cors_origins", []string{})

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "iam")
	v.SetDefault("postgres.password", "iam_password")
	v.SetDefault("postgres.database", "iam")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.rate_limit_prefix", "iam:rate_limit")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "iam")

	v.SetDefault("jwt.issuer", "authz-core")
	v.SetDefault("jwt.audiences", []string{"back-office"})
	v.SetDefault("jwt.signing_key", "")
	v.SetDefault("jwt.access_token_minutes", 15)
	v.SetDefault("jwt.refresh_token_days", 7)

	v.SetDefault("cache.hash_key", "Permissions")

	v.SetDefault("authz.read_retry_attempts", 3)
	v.SetDefault("authz.read_retry_backoff", "50ms")

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "authz-core")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.token_max_attempts", 5)
	v.SetDefault("rate_limit.refresh_max_attempts", 10)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "IAM_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// splitList expands comma separated env values into trimmed entries.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
