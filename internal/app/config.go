package app

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/thetaxjournal/accountsvedartha/internal/payroll"
	"github.com/thetaxjournal/accountsvedartha/internal/platform/cache"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// PGDSN selects the Postgres document store. Empty runs the API on the in-memory
	// store; the worker refuses to start without it.
	PGDSN      string `envconfig:"PG_DSN"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"10"`
	// RedisAddr backs the payroll run lock and the job queue. Empty falls back to
	// an in-process lock and disables queued runs.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	JWTSecret      string `envconfig:"JWT_SECRET" required:"true"`
	SealSigningKey string `envconfig:"SEAL_SIGNING_KEY"`

	// IdempotencyTTL bounds how long a billing Idempotency-Key is remembered.
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	// WorkerMetricsAddr serves /metrics from cmd/worker. Empty disables it.
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`

	AttendanceMissingPolicy string        `envconfig:"ATTENDANCE_MISSING_POLICY" default:"full_pay"`
	PayrollLockTTL          time.Duration `envconfig:"PAYROLL_LOCK_TTL" default:"2m"`

	RecoveryMaxUploadBytes int64 `envconfig:"RECOVERY_MAX_UPLOAD_BYTES" default:"10485760"`
	RecoveryPDFDPI         int   `envconfig:"RECOVERY_PDF_DPI" default:"200"`
	RecoveryRateLimit      int   `envconfig:"RECOVERY_RATE_LIMIT" default:"20"`

	// MissingPolicy is derived from AttendanceMissingPolicy during LoadConfig.
	MissingPolicy payroll.MissingPolicy `ignored:"true"`
}

// LoadConfig reads configuration from environment variables, after merging an
// optional .env file from the working directory.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finish() error {
	if c.JWTSecret == "" {
		return &shared.ConfigurationError{Setting: "JWT_SECRET", Message: "must be provided"}
	}
	policy, err := payroll.ParseMissingPolicy(c.AttendanceMissingPolicy)
	if err != nil {
		return err
	}
	c.MissingPolicy = policy
	if c.RecoveryMaxUploadBytes <= 0 {
		return &shared.ConfigurationError{Setting: "RECOVERY_MAX_UPLOAD_BYTES", Message: "must be positive"}
	}
	if c.RecoveryPDFDPI <= 0 {
		return &shared.ConfigurationError{Setting: "RECOVERY_PDF_DPI", Message: "must be positive"}
	}
	return nil
}

// RequireWorkerBackends rejects configurations the payroll worker cannot run on:
// it needs the queue, and runs against the in-memory store would never reach
// the API's data.
func (c *Config) RequireWorkerBackends() error {
	if c.RedisAddr == "" {
		return &shared.ConfigurationError{Setting: "REDIS_ADDR", Message: "required by the worker"}
	}
	if c.PGDSN == "" {
		return &shared.ConfigurationError{Setting: "PG_DSN", Message: "required by the worker"}
	}
	return nil
}

// Redis returns the connection options for REDIS_ADDR.
func (c *Config) Redis() cache.Options {
	return cache.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
