package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // sync.timezone must resolve in scratch images

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"mf-returns-service/internal/ratelimiter"
)

const (
	NavSourceUpstream = "upstream"
	NavSourcePostgres = "postgres"
)

type Config struct {
	HTTPAddr       string          `yaml:"http_addr"`
	DatabaseURL    string          `yaml:"database_url"`
	MFAPIBaseURL   string          `yaml:"mfapi_base_url"`
	NavSource      string          `yaml:"nav_source"`
	CORSOrigins    []string        `yaml:"cors_origins"`
	Catalog        CatalogYAML     `yaml:"catalog"`
	Ranking        RankingYAML     `yaml:"ranking"`
	Simulation     SimulationYAML  `yaml:"simulation"`
	Rolling        RollingYAML     `yaml:"rolling"`
	TrackedSchemes []string        `yaml:"tracked_schemes"`
	Sync           SyncYAML        `yaml:"sync"`
	RateLimiter    RateLimiterYAML `yaml:"rate_limiter"`
}

// SyncYAML drives the cron and worker processes.
type SyncYAML struct {
	Cron       string `yaml:"cron"`
	Timezone   string `yaml:"timezone"`
	StaleAfter string `yaml:"stale_after"`
	PollEvery  string `yaml:"poll_every"`
}

type CatalogYAML struct {
	TTL  string `yaml:"ttl"`
	Size int    `yaml:"size"`
}

type RankingYAML struct {
	MaxFunds    int `yaml:"max_funds"`
	Concurrency int `yaml:"concurrency"`
}

type SimulationYAML struct {
	Valuation string `yaml:"valuation"`
}

type RollingYAML struct {
	Step string `yaml:"step"`
}

type RateLimiterYAML struct {
	Windows []RateLimiterWindowYAML `yaml:"windows"`
}

type RateLimiterWindowYAML struct {
	Type     string `yaml:"type"`
	Duration string `yaml:"duration"`
	Limit    int32  `yaml:"limit"`
}

func Load() (Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yml"
	}

	var cfg Config
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	// Env overrides (preferred for containerized deployment).
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("MFAPI_BASE_URL"); v != "" {
		cfg.MFAPIBaseURL = v
	}
	if v := os.Getenv("NAV_SOURCE"); v != "" {
		cfg.NavSource = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("INCREMENTAL_CRON"); v != "" {
		cfg.Sync.Cron = v
	}
	if v := os.Getenv("TZ"); v != "" {
		cfg.Sync.Timezone = v
	}
	if v := os.Getenv("SYNC_STALE_AFTER"); v != "" {
		cfg.Sync.StaleAfter = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.MFAPIBaseURL == "" {
		c.MFAPIBaseURL = "https://api.mfapi.in"
	}
	c.NavSource = strings.ToLower(strings.TrimSpace(c.NavSource))
	if c.NavSource == "" {
		c.NavSource = NavSourceUpstream
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.Catalog.TTL == "" {
		c.Catalog.TTL = "12h"
	}
	if c.Catalog.Size == 0 {
		c.Catalog.Size = 256
	}
	if c.Ranking.MaxFunds == 0 {
		c.Ranking.MaxFunds = 50
	}
	if c.Ranking.Concurrency == 0 {
		c.Ranking.Concurrency = 4
	}
	if c.Simulation.Valuation == "" {
		c.Simulation.Valuation = "latest"
	}
	if c.Rolling.Step == "" {
		c.Rolling.Step = "day"
	}
	if c.Sync.Cron == "" {
		c.Sync.Cron = "0 2 * * *"
	}
	if c.Sync.Timezone == "" {
		c.Sync.Timezone = "UTC"
	}
	if c.Sync.StaleAfter == "" {
		c.Sync.StaleAfter = "15m"
	}
	if c.Sync.PollEvery == "" {
		c.Sync.PollEvery = "2s"
	}
}

func (c Config) Validate() error {
	switch c.NavSource {
	case NavSourceUpstream:
	case NavSourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url/DATABASE_URL is required when nav_source=postgres")
		}
	default:
		return fmt.Errorf("nav_source must be one of upstream|postgres, got %q", c.NavSource)
	}
	if d, err := time.ParseDuration(c.Catalog.TTL); err != nil || d <= 0 {
		return fmt.Errorf("catalog.ttl must be a valid duration (e.g. 12h)")
	}
	if c.Catalog.Size < 0 {
		return fmt.Errorf("catalog.size must be > 0")
	}
	if c.Ranking.MaxFunds < 0 || c.Ranking.Concurrency < 0 {
		return fmt.Errorf("ranking.max_funds and ranking.concurrency must be > 0")
	}
	switch c.Simulation.Valuation {
	case "latest", "end_date":
	default:
		return fmt.Errorf("simulation.valuation must be one of latest|end_date")
	}
	switch c.Rolling.Step {
	case "day", "month":
	default:
		return fmt.Errorf("rolling.step must be one of day|month")
	}
	if _, err := cron.ParseStandard(c.Sync.Cron); err != nil {
		return fmt.Errorf("sync.cron: %w", err)
	}
	if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
		return fmt.Errorf("sync.timezone: %w", err)
	}
	for name, v := range map[string]string{"sync.stale_after": c.Sync.StaleAfter, "sync.poll_every": c.Sync.PollEvery} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("%s must be a valid duration", name)
		}
	}
	for _, w := range c.RateLimiter.Windows {
		if w.Type == "" {
			return fmt.Errorf("rate_limiter.windows[].type is required")
		}
		if w.Limit <= 0 {
			return fmt.Errorf("rate_limiter.windows[%s].limit must be > 0", w.Type)
		}
		d, err := time.ParseDuration(w.Duration)
		if err != nil || d <= 0 {
			return fmt.Errorf(
				"rate_limiter.windows[%s].duration must be valid duration (e.g. 1s, 1m, 1h)",
				w.Type,
			)
		}
	}
	return nil
}

// RequireDatabase is used by the processes that only make sense with the
// Postgres NAV store (worker, cron).
func (c Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url/DATABASE_URL is required")
	}
	return nil
}

func (c Config) CatalogTTL() time.Duration {
	return durationOr(c.Catalog.TTL, 12*time.Hour)
}

// SyncLocation is the zone the cron schedule is read in.
func (c Config) SyncLocation() *time.Location {
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) SyncStaleAfter() time.Duration {
	return durationOr(c.Sync.StaleAfter, 15*time.Minute)
}

func (c Config) SyncPollEvery() time.Duration {
	return durationOr(c.Sync.PollEvery, 2*time.Second)
}

func durationOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// RateLimiterConfig converts the YAML windows, falling back to the limiter's
// defaults when none are configured.
func (c Config) RateLimiterConfig() (ratelimiter.Config, error) {
	if len(c.RateLimiter.Windows) == 0 {
		return ratelimiter.DefaultConfig(), nil
	}
	out := ratelimiter.Config{Now: time.Now}
	for _, w := range c.RateLimiter.Windows {
		d, err := time.ParseDuration(w.Duration)
		if err != nil {
			return ratelimiter.Config{}, fmt.Errorf("rate_limiter.windows[%s].duration: %w", w.Type, err)
		}
		out.Windows = append(out.Windows, ratelimiter.WindowConfig{
			Type:     ratelimiter.WindowType(w.Type),
			Duration: d,
			Limit:    w.Limit,
		})
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
