package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paidqa/internal/money"
	"paidqa/internal/service"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "PORT", "LISTEN_ADDRESS", "DATABASE_PATH", "TELEGRAM_BOT_TOKEN", "ADMIN_TELEGRAM_ID",
		"WEB_APP_URL", "SETTLEMENT_WINDOW", "SETTLEMENT_WINDOW_MINUTES", "SETTLEMENT_INTERVAL",
		"PARTIAL_REFUND_BPS", "WELCOME_BONUS", "OPERATOR_JWT_SECRET", "OPERATOR_JWT_ISSUER",
		"RATE_LIMIT_PER_MINUTE", "RATE_LIMIT_BURST", "EVENT_QUEUE_CAPACITY", "LOG_LEVEL", "LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddress)
	require.Equal(t, 24*time.Hour, cfg.SettlementWindow)
	require.Equal(t, 10*time.Minute, cfg.SettlementInterval)
	require.Equal(t, uint32(5000), cfg.PartialRefundBps)
	require.Equal(t, money.Amount(10000), cfg.WelcomeBonus)

	// Defaults come from the escrow itself so the two cannot disagree.
	require.Equal(t, service.DefaultSettlementWindow, cfg.SettlementWindow)
	require.Equal(t, service.DefaultSettlementInterval, cfg.SettlementInterval)
	require.Equal(t, uint32(service.DefaultPartialRefundBps), cfg.PartialRefundBps)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "paidqa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_address: ":9000"
database_path: "/tmp/qa.db"
settlement_window: "2h"
partial_refund_bps: 2500
welcome_bonus: "50.00"
admin_telegram_id: 777
`), 0o600))

	t.Setenv("SETTLEMENT_INTERVAL", "30s")
	t.Setenv("PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9100", cfg.ListenAddress, "env overrides file")
	require.Equal(t, "/tmp/qa.db", cfg.DatabasePath)
	require.Equal(t, 2*time.Hour, cfg.SettlementWindow)
	require.Equal(t, 30*time.Second, cfg.SettlementInterval)
	require.Equal(t, uint32(2500), cfg.PartialRefundBps)
	require.Equal(t, money.Amount(5000), cfg.WelcomeBonus)
	require.Equal(t, int64(777), cfg.AdminTelegramID)
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "paidqa.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
env = "production"
settlement_window = "48h"
partial_refund_bps = 0
operator_jwt_secret = "s3cret"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "production", cfg.Env)
	require.Equal(t, 48*time.Hour, cfg.SettlementWindow)
	require.Equal(t, uint32(0), cfg.PartialRefundBps)
	require.Equal(t, "s3cret", cfg.OperatorJWTSecret)
}

func TestSettlementWindowMinutes(t *testing.T) {
	clearEnv(t)
	t.Setenv("SETTLEMENT_WINDOW_MINUTES", "5")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, cfg.SettlementWindow)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad duration", "SETTLEMENT_WINDOW", "soon"},
		{"non-positive window", "SETTLEMENT_WINDOW", "0s"},
		{"bps above 100 percent", "PARTIAL_REFUND_BPS", "10001"},
		{"bad bonus", "WELCOME_BONUS", "1.001"},
		{"bad admin id", "ADMIN_TELEGRAM_ID", "admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := Load("")
			require.Error(t, err)
		})
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "paidqa.ini")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o600))

	_, err := Load(path)
	require.ErrorContains(t, err, "unsupported config format")
}
