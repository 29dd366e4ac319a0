package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all configuration for bounty-board
type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Database DatabaseConfig `env:",prefix=DB_"`
	Redis    RedisConfig    `env:",prefix=REDIS_"`
	Auth     AuthConfig     `env:",prefix=AUTH_"`
	Bounty   BountyConfig   `env:",prefix=BOUNTY_"`
	Watcher  WatcherConfig  `env:",prefix=WATCHER_"`
	Rate     RateConfig     `env:",prefix=RATE_"`
	App      AppConfig      `env:",prefix=APP_"`
	Metrics  MetricsConfig  `env:",prefix=METRICS_"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `env:"HOST,default=0.0.0.0"`
	Port           int           `env:"PORT,default=8080"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT,default=15s"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS,default=*"`
}

// DatabaseConfig holds storage configuration
type DatabaseConfig struct {
	Driver        string        `env:"DRIVER,default=postgres"`
	DSN           string        `env:"DSN"`
	MaxConns      int32         `env:"MAX_CONNS,default=25"`
	MinConns      int32         `env:"MIN_CONNS,default=5"`
	MaxLifetime   time.Duration `env:"MAX_LIFETIME,default=30m"`
	MigrationsDir string        `env:"MIGRATIONS_DIR,default=./migrations"`
}

// RedisConfig holds the admin allow-list cache configuration
type RedisConfig struct {
	Address  string        `env:"ADDRESS"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB,default=0"`
	AdminTTL time.Duration `env:"ADMIN_TTL,default=5m"`
}

// AuthConfig holds identity configuration
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER,default=bounty-board"`

	// InsecureWalletHeader trusts X-Wallet-Address without a token. Local use only.
	InsecureWalletHeader bool `env:"INSECURE_WALLET_HEADER,default=false"`
}

// BountyConfig holds domain policy settings
type BountyConfig struct {
	DeadlineLocation string `env:"DEADLINE_LOCATION,default=UTC"`
	StrictLabels     bool   `env:"STRICT_LABELS,default=false"`
}

// WatcherConfig holds deadline watcher configuration
type WatcherConfig struct {
	Interval time.Duration `env:"INTERVAL,default=1m"`
}

// RateConfig holds submission write rate limits
type RateConfig struct {
	SubmissionsPerMinute int `env:"SUBMISSIONS_PER_MINUTE,default=30"`
	Burst                int `env:"BURST,default=10"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment string `env:"ENVIRONMENT,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	SeedDir     string `env:"SEED_DIR,default=./seed"`
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Enabled bool `env:"ENABLED,default=true"`
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith loads configuration from an arbitrary lookuper
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}

	if c.Auth.JWTSecret == "" && !c.Auth.InsecureWalletHeader {
		return fmt.Errorf("AUTH_JWT_SECRET is required unless AUTH_INSECURE_WALLET_HEADER is set")
	}

	if _, err := c.Bounty.Location(); err != nil {
		return err
	}

	if c.Rate.SubmissionsPerMinute < 0 || c.Rate.Burst < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}

	return nil
}

// Addr returns the server listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Location resolves the calendar bare-date deadlines are expressed in
func (c *BountyConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.DeadlineLocation)
	if err != nil {
		return nil, fmt.Errorf("invalid deadline location %q: %w", c.DeadlineLocation, err)
	}
	return loc, nil
}

// CacheEnabled reports whether the Redis admin cache is configured
func (c *RedisConfig) CacheEnabled() bool {
	return c.Address != ""
}

// SlogLevel maps LogLevel onto slog levels, defaulting to info
func (c *AppConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsDevelopment returns true if running in development environment
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}
