package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
server:
  port: 50051
storage:
  type: memory
identity:
  jwt_secret: "0123456789abcdef0123456789abcdef"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.True(t, decimal.RequireFromString("0.15").Equal(cfg.CommissionRate()))
	assert.True(t, decimal.NewFromInt(500).Equal(cfg.MinimumWithdrawal()))
	assert.Equal(t, "Rs", cfg.Ledger.Currency)
	assert.Equal(t, 50, cfg.Ledger.HistoryLimit)
	assert.Equal(t, []string{"whatsapp"}, cfg.Notification.Channels)
	assert.Equal(t, 5, cfg.Notification.MaxAttempts)
	assert.Equal(t, "jwt", cfg.Identity.Provider)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 24, cfg.Scheduler.PendingReminderAfterHours)
	assert.Equal(t, ":50051", cfg.GetServerAddress())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COMMISSION_RATE", "0.2")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("0.2").Equal(cfg.CommissionRate()))
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "wallet_events", cfg.Redis.EventsChannel)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"postgres without host", func(c *Config) { c.Storage.Type = "postgres" }, "database host is required"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "mongo" }, "unknown storage type"},
		{"commission out of range", func(c *Config) { c.Ledger.CommissionRate = "1.5" }, "commission rate must be in"},
		{"commission not a number", func(c *Config) { c.Ledger.CommissionRate = "abc" }, "invalid commission rate"},
		{"email without sendgrid", func(c *Config) { c.Notification.Channels = []string{"email"} }, "sendgrid api key is required"},
		{"short secret", func(c *Config) { c.Identity.JWTSecret = "short" }, "at least 32 characters"},
		{"firebase identity without project", func(c *Config) { c.Identity.Provider = "firebase" }, "firebase project id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{
				Server:   ServerConfig{Port: 50051},
				Storage:  StorageConfig{Type: "memory"},
				Identity: IdentityConfig{JWTSecret: "0123456789abcdef0123456789abcdef"},
			}
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetSecurityLevel(t *testing.T) {
	assert.Equal(t, SecurityUser, GetSecurityLevel("/drivekr.wallet.v1.LedgerService/GetBalance"))
	assert.Equal(t, SecurityService, GetSecurityLevel("/drivekr.wallet.v1.LedgerService/SettleRide"))
	assert.Equal(t, SecurityAdmin, GetSecurityLevel("/drivekr.wallet.v1.AdminService/ApproveTransaction"))
	assert.Equal(t, SecurityPublic, GetSecurityLevel("/grpc.health.v1.Health/Check"))
	assert.Equal(t, SecurityPublic, GetSecurityLevel("/grpc.reflection.v1.ServerReflection/ServerReflectionInfo"))
	assert.Equal(t, SecurityAdmin, GetSecurityLevel("/drivekr.wallet.v1.Unknown/Method"))
}
