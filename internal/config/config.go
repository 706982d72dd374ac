package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "clipshelf-development-secret-do-not-use"

type Config struct {
	// Application
	AppName string
	AppEnv  string
	Port    string

	// Database (driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret           string
	JWTExpiry           time.Duration
	JWTRefreshExpiry    time.Duration
	KeyEncryptionSecret string
	SnowflakeNode       int64

	// Clips
	MaxContentBytes int

	// Access log recorder (0 workers = synchronous writes)
	AccessLogWorkers int
	AccessLogQueue   int

	// Reaper (0 interval = disabled)
	ReaperInterval time.Duration
	ReaperGrace    time.Duration
	ClipRetention  time.Duration
	UserRetention  time.Duration
	ReaperBatch    int

	// Observability (optional)
	SentryDSN string

	// Archive storage for reaped clips (optional, S3-compatible)
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string // Optional: MinIO, R2, DO Spaces, etc.
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "clipshelf"),
		AppEnv:  envString("APP_ENV", "development"),
		Port:    envString("SERVER_PORT", envString("PORT", "3000")),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DATABASE_URL", envString("DB_CONNECTION", "./data/clipshelf.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite&_txlock=immediate")),

		// Security
		JWTSecret:           envString("JWT_SECRET", ""),
		JWTExpiry:           envSeconds("JWT_EXPIRES_IN", time.Hour),                // 1 hour
		JWTRefreshExpiry:    envSeconds("JWT_REFRESH_EXPIRES_IN", 30*24*time.Hour), // 30 days
		KeyEncryptionSecret: envString("KEY_ENCRYPTION_SECRET", ""),
		SnowflakeNode:       int64(envInt("SNOWFLAKE_NODE", 1)),

		// Clips
		MaxContentBytes: envInt("MAX_CONTENT_BYTES", 1<<20),

		// Access log recorder
		AccessLogWorkers: envInt("ACCESS_LOG_WORKERS", 4),
		AccessLogQueue:   envInt("ACCESS_LOG_QUEUE", 1024),

		// Reaper
		ReaperInterval: envDuration("REAPER_INTERVAL", 10*time.Minute),
		ReaperGrace:    envDuration("REAPER_GRACE", 24*time.Hour),
		ClipRetention:  envDuration("CLIP_RETENTION", 30*24*time.Hour),
		UserRetention:  envDuration("USER_RETENTION", 30*24*time.Hour),
		ReaperBatch:    envInt("REAPER_BATCH", 500),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Archive storage
		S3Region:    envString("S3_REGION", "us-east-1"),
		S3Bucket:    envString("S3_BUCKET", ""),
		S3AccessKey: envString("S3_ACCESS_KEY", ""),
		S3SecretKey: envString("S3_SECRET_KEY", ""),
		S3Endpoint:  envString("S3_ENDPOINT", ""),
	}

	if cfg.JWTSecret == "" && cfg.IsDevelopment() {
		slog.Warn("JWT_SECRET not set, using development secret")
		cfg.JWTSecret = devJWTSecret
	}
	if cfg.KeyEncryptionSecret == "" {
		cfg.KeyEncryptionSecret = cfg.JWTSecret
	}

	err = cfg.Validate()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	return cfg
}

// Validate checks cross-field constraints. Production additionally requires
// real secrets.
func (c *Config) Validate() error {
	var errs []error

	if c.AppEnv != "development" && c.AppEnv != "production" {
		errs = append(errs, fmt.Errorf("APP_ENV must be 'development' or 'production', got %q", c.AppEnv))
	}
	if c.DBDriver != "sqlite" && c.DBDriver != "pgx" {
		errs = append(errs, fmt.Errorf("DB_DRIVER must be 'sqlite' or 'pgx', got %q", c.DBDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWTExpiry <= 0 || c.JWTRefreshExpiry <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRES_IN and JWT_REFRESH_EXPIRES_IN must be positive"))
	}
	if c.JWTExpiry >= c.JWTRefreshExpiry {
		errs = append(errs, errors.New("JWT_EXPIRES_IN must be shorter than JWT_REFRESH_EXPIRES_IN"))
	}
	if c.SnowflakeNode < 0 || c.SnowflakeNode > 1023 {
		errs = append(errs, fmt.Errorf("SNOWFLAKE_NODE must be between 0 and 1023, got %d", c.SnowflakeNode))
	}
	if c.MaxContentBytes <= 0 {
		errs = append(errs, errors.New("MAX_CONTENT_BYTES must be positive"))
	}
	if c.AccessLogWorkers < 0 || c.AccessLogQueue < 0 {
		errs = append(errs, errors.New("ACCESS_LOG_WORKERS and ACCESS_LOG_QUEUE must not be negative"))
	}

	if c.IsProduction() {
		if c.JWTSecret == devJWTSecret || len(c.JWTSecret) < 32 {
			errs = append(errs, errors.New("production deployment requires a JWT_SECRET of at least 32 characters"))
		}
	}

	return errors.Join(errs...)
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envSeconds reads an integer number of seconds (JWT_EXPIRES_IN=3600).
func envSeconds(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		slog.Warn("config invalid seconds, using default", "key", key, "value", v, "default", def)
		return def
	}
	return time.Duration(n) * time.Second
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// ArchiveEnabled reports whether reaped clips are archived to object storage.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

// Sanitized returns a copy of the config with secrets and credentials removed.
// Safe to log at startup.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName:          c.AppName,
		AppEnv:           c.AppEnv,
		Port:             c.Port,
		DBDriver:         c.DBDriver,
		JWTExpiry:        c.JWTExpiry,
		JWTRefreshExpiry: c.JWTRefreshExpiry,
		SnowflakeNode:    c.SnowflakeNode,
		MaxContentBytes:  c.MaxContentBytes,
		AccessLogWorkers: c.AccessLogWorkers,
		AccessLogQueue:   c.AccessLogQueue,
		ReaperInterval:   c.ReaperInterval,
		ReaperGrace:      c.ReaperGrace,
		ClipRetention:    c.ClipRetention,
		UserRetention:    c.UserRetention,
		ReaperBatch:      c.ReaperBatch,
		S3Region:         c.S3Region,
		S3Bucket:         c.S3Bucket,
		S3Endpoint:       c.S3Endpoint,
	}
}
