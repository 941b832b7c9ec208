package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapGetenv(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultSeedsFromEnv(t *testing.T) {
	cfg := Default(mapGetenv(map[string]string{
		"SOURCE_DRIVER": "sqlite",
		"SOURCE_DSN":    "file:legacy.db",
		"TARGET_DSN":    "postgres://localhost/catalog",
		"TENANT_ID":     "7",
		"LIMIT":         "500",
	}))
	assert.Equal(t, "sqlite", cfg.SourceDriver)
	assert.Equal(t, "file:legacy.db", cfg.SourceDSN)
	assert.Equal(t, "postgres", cfg.TargetDriver) // hard default
	assert.Equal(t, int64(7), cfg.TenantID)
	assert.Equal(t, 500, cfg.Limit)
	assert.Equal(t, 0, cfg.Offset)
	assert.Equal(t, "basename", cfg.Strategy)
}

func TestDefaultIgnoresMalformedInts(t *testing.T) {
	cfg := Default(mapGetenv(map[string]string{"TENANT_ID": "seven"}))
	assert.Equal(t, int64(1), cfg.TenantID)
}

func TestTerminalTokens(t *testing.T) {
	cfg := &Config{Terminals: " made to measure , custom ,,"}
	assert.Equal(t, []string{"made to measure", "custom"}, cfg.TerminalTokens())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SourceDriver: "mysql", SourceDSN: "user:pw@/legacy",
			TargetDriver: "postgres", TargetDSN: "postgres://localhost/catalog",
			TenantID: 1, Strategy: "basename",
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad source driver", func(c *Config) { c.SourceDriver = "oracle" }, "unsupported source driver"},
		{"bad target driver", func(c *Config) { c.TargetDriver = "mysql" }, "unsupported target driver"},
		{"missing source dsn", func(c *Config) { c.SourceDSN = "" }, "source DSN is required"},
		{"missing target dsn", func(c *Config) { c.TargetDSN = "" }, "target DSN is required"},
		{"bad strategy", func(c *Config) { c.Strategy = "fuzzy" }, "unknown grouping strategy"},
		{"bad tenant", func(c *Config) { c.TenantID = 0 }, "tenant ID must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
