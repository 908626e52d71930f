package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CONFIG_PATH", path)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yml"))
	for _, k := range []string{"HTTP_ADDR", "NAV_SOURCE", "DATABASE_URL", "MFAPI_BASE_URL", "CORS_ORIGINS",
		"INCREMENTAL_CRON", "TZ", "SYNC_STALE_AFTER"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, NavSourceUpstream, cfg.NavSource)
	assert.Equal(t, "latest", cfg.Simulation.Valuation)
	assert.Equal(t, "day", cfg.Rolling.Step)
	assert.Equal(t, 12*time.Hour, cfg.CatalogTTL())
	assert.Equal(t, 50, cfg.Ranking.MaxFunds)
	assert.Equal(t, "0 2 * * *", cfg.Sync.Cron)
	assert.Equal(t, time.UTC, cfg.SyncLocation())
	assert.Equal(t, 15*time.Minute, cfg.SyncStaleAfter())
	assert.Equal(t, 2*time.Second, cfg.SyncPollEvery())
}

func TestSyncEnvOverrides(t *testing.T) {
	writeConfig(t, `
sync:
  cron: "30 1 * * *"
  poll_every: 5s
`)
	t.Setenv("TZ", "Asia/Kolkata")
	t.Setenv("SYNC_STALE_AFTER", "1h")
	t.Setenv("INCREMENTAL_CRON", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "30 1 * * *", cfg.Sync.Cron)
	assert.Equal(t, "Asia/Kolkata", cfg.SyncLocation().String())
	assert.Equal(t, time.Hour, cfg.SyncStaleAfter())
	assert.Equal(t, 5*time.Second, cfg.SyncPollEvery())
}

func TestLoadYAMLAndEnvOverrides(t *testing.T) {
	writeConfig(t, `
http_addr: ":9000"
nav_source: postgres
database_url: postgres://file
simulation:
  valuation: end_date
rolling:
  step: month
rate_limiter:
  windows:
    - type: second
      duration: 1s
      limit: 3
`)
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://mf.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "postgres://env", cfg.DatabaseURL)
	assert.Equal(t, []string{"http://localhost:3000", "https://mf.example.com"}, cfg.CORSOrigins)

	rl, err := cfg.RateLimiterConfig()
	require.NoError(t, err)
	require.Len(t, rl.Windows, 1)
	assert.Equal(t, time.Second, rl.Windows[0].Duration)
	assert.EqualValues(t, 3, rl.Windows[0].Limit)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := Config{}
	base.applyDefaults()

	cases := map[string]func(c *Config){
		"postgres without url": func(c *Config) { c.NavSource = NavSourcePostgres },
		"unknown source":       func(c *Config) { c.NavSource = "s3" },
		"bad valuation":        func(c *Config) { c.Simulation.Valuation = "midpoint" },
		"bad step":             func(c *Config) { c.Rolling.Step = "week" },
		"bad ttl":              func(c *Config) { c.Catalog.TTL = "soon" },
		"bad window": func(c *Config) {
			c.RateLimiter.Windows = []RateLimiterWindowYAML{{Type: "second", Duration: "x", Limit: 1}}
		},
	}
	for name, mutate := range cases {
		c := base
		mutate(&c)
		assert.Error(t, c.Validate(), name)
	}
	assert.Error(t, base.RequireDatabase())
}
