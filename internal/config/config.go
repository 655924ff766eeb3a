package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// DevJWTSecret is the signing secret used when AUTH_JWT_SECRET is unset.
// It is only suitable for local development.
const DevJWTSecret = "casino-ledger-dev-secret"

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	Ledger    LedgerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
	CORSOrigins     string `envconfig:"CORS_ORIGINS" default:"*"`
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
// In production, set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host       string `envconfig:"DB_HOST" default:"localhost"`
	Port       int    `envconfig:"DB_PORT" default:"5432"`
	User       string `envconfig:"DB_USER" default:"postgres"`
	Password   string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name       string `envconfig:"DB_NAME" default:"casino_db"`
	SSLMode    string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns   int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns   int    `envconfig:"DB_MIN_CONNS" default:"5"`
	MaxRetries int    `envconfig:"DB_MAX_RETRIES" default:"5"`
	Migrate    bool   `envconfig:"DB_MIGRATE" default:"true"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// RedisConfig controls the optional Redis backend for cross-instance
// account locks and bet rate limiting.
type RedisConfig struct {
	Enabled  bool          `envconfig:"REDIS_ENABLED" default:"false"`
	Addr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	LockTTL  time.Duration `envconfig:"REDIS_LOCK_TTL" default:"10s"`
}

// LedgerConfig tunes balance mutations.
type LedgerConfig struct {
	StartingBalance decimal.Decimal `envconfig:"LEDGER_STARTING_BALANCE" default:"10000"`
	StorageTimeout  time.Duration   `envconfig:"LEDGER_STORAGE_TIMEOUT" default:"5s"`
	MaxRetries      int             `envconfig:"LEDGER_MAX_RETRIES" default:"3"`
	SeedCoupons     bool            `envconfig:"LEDGER_SEED_COUPONS" default:"true"`
}

// AuthConfig holds JWT verification settings.
type AuthConfig struct {
	JWTSecret string `envconfig:"AUTH_JWT_SECRET" default:"casino-ledger-dev-secret"`
	JWTIssuer string `envconfig:"AUTH_JWT_ISSUER"`
}

// UsesDevSecret reports whether the built-in development secret is active.
func (c AuthConfig) UsesDevSecret() bool {
	return c.JWTSecret == DevJWTSecret
}

// RateLimitConfig limits how many game outcomes an account may submit per window.
type RateLimitConfig struct {
	Bets   int           `envconfig:"RATE_LIMIT_BETS" default:"30"`
	Window time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// Load reads an optional .env file and parses environment variables into
// the Config struct. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if !cfg.Ledger.StartingBalance.IsPositive() {
		return nil, fmt.Errorf("LEDGER_STARTING_BALANCE must be positive, got %s", cfg.Ledger.StartingBalance)
	}
	if cfg.Ledger.MaxRetries < 0 {
		return nil, fmt.Errorf("LEDGER_MAX_RETRIES must not be negative, got %d", cfg.Ledger.MaxRetries)
	}
	return &cfg, nil
}
