package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds all configuration for the adinsights service and seeding tool.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Scheduler SchedulerConfig
	Seed      SeedConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
	// QueryTimeout bounds a single fetch request, including connection acquisition.
	QueryTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
	// AppName is reported to the server as application_name.
	AppName string
	// ReadOnly opens every session with default_transaction_read_only.
	ReadOnly bool
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled    bool
	Addr       string
	Password   string
	DB         int
	ClientName string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// SchedulerConfig configures background jobs. Specs use robfig/cron syntax,
// including descriptors such as "@every 6h".
type SchedulerConfig struct {
	Enabled   bool
	Heartbeat string
	PoolStats string
}

// SeedConfig configures the synthetic warehouse loader.
type SeedConfig struct {
	FactRows  int
	StartDate string
	Days      int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("ADINSIGHTS_HTTP_ADDR", ":8000"),
			Env:             getEnv("ADINSIGHTS_ENV", "development"),
			ShutdownTimeout: getDurationEnv("ADINSIGHTS_SHUTDOWN_TIMEOUT", 30*time.Second),
			QueryTimeout:    getDurationEnv("ADINSIGHTS_QUERY_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("ADINSIGHTS_DB_HOST", "localhost"),
			Port:     getIntEnv("ADINSIGHTS_DB_PORT", 5432),
			User:     getEnv("ADINSIGHTS_DB_USER", "adinsights"),
			Password: getEnv("ADINSIGHTS_DB_PASSWORD", "adinsights_secret"),
			DBName:   getEnv("ADINSIGHTS_DB_NAME", "adinsights"),
			SSLMode:  getEnv("ADINSIGHTS_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("ADINSIGHTS_DB_MAX_CONNS", 10),
			MinConns: getIntEnv("ADINSIGHTS_DB_MIN_CONNS", 2),
			AppName:  getEnv("ADINSIGHTS_DB_APP_NAME", "adinsights"),
		},
		Redis: RedisConfig{
			Enabled:    getBoolEnv("ADINSIGHTS_REDIS_ENABLED", false),
			Addr:       getEnv("ADINSIGHTS_REDIS_ADDR", "localhost:6379"),
			Password:   getEnv("ADINSIGHTS_REDIS_PASSWORD", ""),
			DB:         getIntEnv("ADINSIGHTS_REDIS_DB", 0),
			ClientName: getEnv("ADINSIGHTS_REDIS_CLIENT_NAME", "adinsights-scheduler"),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("ADINSIGHTS_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("ADINSIGHTS_RATE_LIMIT_RPS", 50),
			Burst:   getIntEnv("ADINSIGHTS_RATE_LIMIT_BURST", 20),
		},
		Log: LogConfig{
			Level:  getEnv("ADINSIGHTS_LOG_LEVEL", "info"),
			Format: getEnv("ADINSIGHTS_LOG_FORMAT", ""),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("ADINSIGHTS_METRICS_ENABLED", true),
			Path:    getEnv("ADINSIGHTS_METRICS_PATH", "/metrics"),
		},
		Scheduler: SchedulerConfig{
			Enabled:   getBoolEnv("ADINSIGHTS_SCHEDULER_ENABLED", true),
			Heartbeat: getEnv("ADINSIGHTS_SCHEDULER_HEARTBEAT", "@every 6h"),
			PoolStats: getEnv("ADINSIGHTS_SCHEDULER_POOL_STATS", "@every 30s"),
		},
		Seed: SeedConfig{
			FactRows:  getIntEnv("ADINSIGHTS_SEED_FACT_ROWS", 1000),
			StartDate: getEnv("ADINSIGHTS_SEED_START_DATE", "2023-01-01"),
			Days:      getIntEnv("ADINSIGHTS_SEED_DAYS", 31),
		},
	}

	// Development defaults to human-readable logs.
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
		if cfg.IsDevelopment() {
			cfg.Log.Format = "console"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("ADINSIGHTS_DB_MAX_CONNS must be at least 1, got %d", c.Database.MaxConns)
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("ADINSIGHTS_DB_MIN_CONNS must be between 0 and %d, got %d",
			c.Database.MaxConns, c.Database.MinConns)
	}
	if c.Server.QueryTimeout <= 0 {
		return fmt.Errorf("ADINSIGHTS_QUERY_TIMEOUT must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("rate limit requires positive ADINSIGHTS_RATE_LIMIT_RPS and ADINSIGHTS_RATE_LIMIT_BURST")
	}
	if c.Scheduler.Enabled {
		for name, spec := range map[string]string{
			"ADINSIGHTS_SCHEDULER_HEARTBEAT":  c.Scheduler.Heartbeat,
			"ADINSIGHTS_SCHEDULER_POOL_STATS": c.Scheduler.PoolStats,
		} {
			if _, err := cron.ParseStandard(spec); err != nil {
				return fmt.Errorf("invalid %s %q: %w", name, spec, err)
			}
		}
	}
	if c.Seed.FactRows < 0 || c.Seed.Days < 1 {
		return fmt.Errorf("seed requires ADINSIGHTS_SEED_FACT_ROWS >= 0 and ADINSIGHTS_SEED_DAYS >= 1")
	}
	if _, err := time.Parse("2006-01-02", c.Seed.StartDate); err != nil {
		return fmt.Errorf("invalid ADINSIGHTS_SEED_START_DATE %q: %w", c.Seed.StartDate, err)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
