package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thetaxjournal/accountsvedartha/internal/payroll"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ATTENDANCE_MISSING_POLICY", "Reject")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, payroll.MissingReject, cfg.MissingPolicy)
	require.Equal(t, 2*time.Minute, cfg.PayrollLockTTL)
	require.Equal(t, int64(10<<20), cfg.RecoveryMaxUploadBytes)
	require.Equal(t, 200, cfg.RecoveryPDFDPI)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ATTENDANCE_MISSING_POLICY", "half_pay")
	_, err := LoadConfig()
	require.ErrorIs(t, err, shared.ErrConfiguration)

	t.Setenv("ATTENDANCE_MISSING_POLICY", "")
	t.Setenv("RECOVERY_PDF_DPI", "0")
	_, err = LoadConfig()
	var cerr *shared.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "RECOVERY_PDF_DPI", cerr.Setting)
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestRequireWorkerBackends(t *testing.T) {
	cfg := &Config{RedisAddr: "localhost:6379"}
	var cerr *shared.ConfigurationError
	require.ErrorAs(t, cfg.RequireWorkerBackends(), &cerr)
	require.Equal(t, "PG_DSN", cerr.Setting)

	cfg = &Config{PGDSN: "postgres://localhost/vedartha"}
	require.ErrorAs(t, cfg.RequireWorkerBackends(), &cerr)
	require.Equal(t, "REDIS_ADDR", cerr.Setting)

	cfg.RedisAddr = "localhost:6379"
	require.NoError(t, cfg.RequireWorkerBackends())
}
