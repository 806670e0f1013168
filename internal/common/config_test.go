package common

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 100_000_000.0, cfg.Scanner.CapitalizationFloor)
	assert.Equal(t, 5.0, cfg.Scanner.MovementFloor)
	assert.Equal(t, 20, cfg.Scanner.TopN)
	assert.Equal(t, -10.0, cfg.Alerts.TotalDropPct)
	assert.Equal(t, -3.0, cfg.Alerts.DailyDropPct)
	assert.Equal(t, 3.0, cfg.Alerts.DailyGainPct)
	assert.Equal(t, 3.7, cfg.FX.Fallback["USDILS"])
	assert.Equal(t, "ILS", cfg.FX.ReportingCurrency)
	assert.False(t, cfg.Email.Enabled(), "email must be disabled by default")
	assert.Empty(t, cfg.Clients.Gemini.APIKey, "narrative must be disabled by default")
	assert.NoError(t, cfg.Validate())
}

func TestConfig_PortEnvOverride(t *testing.T) {
	t.Setenv("DIGEST_PORT", "9090")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d after env override, want %d", cfg.Server.Port, 9090)
	}
}

func TestConfig_ThresholdEnvOverrides(t *testing.T) {
	t.Setenv("DIGEST_CAPITALIZATION_FLOOR", "2e9")
	t.Setenv("DIGEST_MOVEMENT_FLOOR", "7.5")
	t.Setenv("DIGEST_ALERT_TOTAL_DROP_PCT", "-20")
	t.Setenv("DIGEST_ALERT_DAILY_GAIN_PCT", "not-a-number")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, 2e9, cfg.Scanner.CapitalizationFloor)
	assert.Equal(t, 7.5, cfg.Scanner.MovementFloor)
	assert.Equal(t, -20.0, cfg.Alerts.TotalDropPct)
	assert.Equal(t, 3.0, cfg.Alerts.DailyGainPct, "unparsable value keeps the default")
}

func TestConfig_ArchiveEnvOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.False(t, cfg.Archive.Enabled(), "archive must be disabled by default")

	t.Setenv("DIGEST_ARCHIVE_BACKEND", "SurrealDB")
	t.Setenv("SURREALDB_ADDRESS", "ws://db:8000/rpc")
	t.Setenv("SURREALDB_PASSWORD", "secret")
	applyEnvOverrides(cfg)

	assert.True(t, cfg.Archive.Enabled())
	assert.Equal(t, "surrealdb", cfg.Archive.Backend)
	assert.Equal(t, "ws://db:8000/rpc", cfg.Archive.Address)
	assert.Equal(t, "secret", cfg.Archive.Password)
	assert.Equal(t, "root", cfg.Archive.Username)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_EmailEnvOverrides(t *testing.T) {
	t.Setenv("SENDER_EMAIL", "me@example.com")
	t.Setenv("SENDER_PASSWORD", "app-password")
	t.Setenv("RECIPIENT_EMAIL", "a@example.com, b@example.com,")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, "me@example.com", cfg.Email.Sender)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Email.Recipients)
	assert.True(t, cfg.Email.Enabled())
}

func TestConfig_EODHDKeyEnvOverride(t *testing.T) {
	t.Setenv("EODHD_API_KEY", "from-env")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Clients.EODHD.APIKey != "from-env" {
		t.Errorf("EODHD.APIKey = %q, want %q", cfg.Clients.EODHD.APIKey, "from-env")
	}
}

func TestLoadConfig_FileLayering(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	local := filepath.Join(dir, "local.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[provider]
name = "eodhd"

[scanner]
top_n = 10
movement_floor = 4.0
`), 0o644))
	require.NoError(t, os.WriteFile(local, []byte(`
[scanner]
top_n = 5

[fx]
reporting_currency = "USD"
`), 0o644))

	cfg, err := LoadConfig(base, local, filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "eodhd", cfg.Provider.Name)
	assert.Equal(t, 5, cfg.Scanner.TopN, "later file wins")
	assert.Equal(t, 4.0, cfg.Scanner.MovementFloor)
	assert.Equal(t, "USD", cfg.FX.ReportingCurrency)
	assert.Equal(t, 20, NewDefaultConfig().Scanner.TopN)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[scanner\ntop_n = "), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Provider.Name = "bloomberg" }},
		{"empty reporting currency", func(c *Config) { c.FX.ReportingCurrency = " " }},
		{"zero top n", func(c *Config) { c.Scanner.TopN = 0 }},
		{"negative movement floor", func(c *Config) { c.Scanner.MovementFloor = -1 }},
		{"zero batch size", func(c *Config) { c.Scanner.BatchSize = 0 }},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"unknown archive", func(c *Config) { c.Archive.Backend = "postgres" }},
		{"archive without database", func(c *Config) {
			c.Archive.Backend = "surrealdb"
			c.Archive.Database = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_Warnings(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Provider.Name = "eodhd"

	warnings := cfg.Warnings()
	assert.Len(t, warnings, 4)

	cfg.Clients.EODHD.APIKey = "k"
	cfg.Clients.Gemini.APIKey = "g"
	cfg.Email.Sender = "me@example.com"
	cfg.Email.Recipients = []string{"you@example.com"}
	assert.Empty(t, cfg.Warnings())
}

func TestConfig_Durations(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, 5*time.Minute, cfg.Cache.GetTTL())
	assert.Equal(t, 30*time.Second, cfg.Clients.EODHD.GetTimeout())

	cfg.Cache.TTL = "garbage"
	assert.Equal(t, 5*time.Minute, cfg.Cache.GetTTL())
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DIGEST_GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	key, err := ResolveAPIKey("gemini_api_key", "config-key")
	require.NoError(t, err)
	assert.Equal(t, "google-key", key)

	t.Setenv("GOOGLE_API_KEY", "")
	key, err = ResolveAPIKey("gemini_api_key", "config-key")
	require.NoError(t, err)
	assert.Equal(t, "config-key", key)

	_, err = ResolveAPIKey("gemini_api_key", "")
	assert.Error(t, err)
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOutput("warn", &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Str("ticker", "AAPL").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"ticker":"AAPL"`)
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, NewDefaultConfig(), NewSilentLogger())

	assert.Contains(t, buf.String(), "Daily Portfolio Digest")
	assert.Contains(t, buf.String(), "0 30 16 * * MON-FRI")
}
