package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/pricewize-lab/pricewize/internal/scrape"
)

// Config represents the top-level application config plus resolved source
// platform definitions.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Scrape    ScrapeConfig    `koanf:"scrape"`
	Aggregate AggregateConfig `koanf:"aggregate"`
	Retention RetentionConfig `koanf:"retention"`

	// Sources is populated by Load after parsing platform definition files.
	Sources []scrape.PlatformDef `koanf:"-"`
}

type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type ScrapeConfig struct {
	ConfigDir         string `koanf:"config_dir"`
	RequireSources    bool   `koanf:"require_sources"`
	TriggerToken      string `koanf:"trigger_token"`
	DefaultQuery      string `koanf:"default_query"`
	PerAdapterTimeout string `koanf:"per_adapter_timeout"`
	GlobalTimeout     string `koanf:"global_timeout"`
}

type AggregateConfig struct {
	CacheTTL           string `koanf:"cache_ttl"`
	TrendingMultiplier int    `koanf:"trending_multiplier"`
}

type RetentionConfig struct {
	Enabled          bool   `koanf:"enabled"`
	SweepInterval    string `koanf:"sweep_interval"`
	RunRetention     string `koanf:"run_retention"`
	ListingRetention string `koanf:"listing_retention"`
}

func (c ScrapeConfig) PerAdapterTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.PerAdapterTimeout)
	return d
}

func (c ScrapeConfig) GlobalTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.GlobalTimeout)
	return d
}

func (c AggregateConfig) CacheTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.CacheTTL)
	return d
}

func (c RetentionConfig) SweepIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.SweepInterval)
	return d
}

func (c RetentionConfig) RunRetentionDuration() time.Duration {
	d, _ := time.ParseDuration(c.RunRetention)
	return d
}

func (c RetentionConfig) ListingRetentionDuration() time.Duration {
	d, _ := time.ParseDuration(c.ListingRetention)
	return d
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}
	if c.Database.Type != "" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}

	if strings.TrimSpace(c.Scrape.ConfigDir) == "" {
		return fmt.Errorf("scrape.config_dir is required")
	}
	for key, raw := range map[string]string{
		"scrape.per_adapter_timeout": c.Scrape.PerAdapterTimeout,
		"scrape.global_timeout":      c.Scrape.GlobalTimeout,
		"aggregate.cache_ttl":        c.Aggregate.CacheTTL,
		"retention.sweep_interval":   c.Retention.SweepInterval,
		"retention.run_retention":    c.Retention.RunRetention,
	} {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", key)
		}
	}
	// Negative listing retention disables listing expiry.
	if _, err := time.ParseDuration(c.Retention.ListingRetention); err != nil {
		return fmt.Errorf("invalid retention.listing_retention %q: %w", c.Retention.ListingRetention, err)
	}

	if c.Scrape.GlobalTimeoutDuration() < c.Scrape.PerAdapterTimeoutDuration() {
		return fmt.Errorf("scrape.global_timeout must be >= scrape.per_adapter_timeout")
	}

	if c.Aggregate.TrendingMultiplier <= 0 {
		return fmt.Errorf("aggregate.trending_multiplier must be > 0")
	}

	return nil
}

// Load parses config from file + env, validates it, then loads and validates
// source platform definitions.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                   8080,
		"server.host":                   "0.0.0.0",
		"server.mode":                   "release",
		"database.type":                 "postgres",
		"database.dsn":                  "",
		"database.max_open_conns":       25,
		"database.max_idle_conns":       25,
		"database.auto_migrate":         true,
		"scrape.config_dir":             "./config/sources",
		"scrape.require_sources":        true,
		"scrape.trigger_token":          "",
		"scrape.default_query":          "iphone",
		"scrape.per_adapter_timeout":    "30s",
		"scrape.global_timeout":         "90s",
		"aggregate.cache_ttl":           "60s",
		"aggregate.trending_multiplier": 10,
		"retention.enabled":             true,
		"retention.sweep_interval":      "1h",
		"retention.run_retention":       "720h",
		"retention.listing_retention":   "336h",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("PRICEWIZE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "PRICEWIZE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sources, err := scrape.LoadPlatformDefs(cfg.Scrape.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load source definitions: %w", err)
	}
	if cfg.Scrape.RequireSources && len(sources) == 0 {
		return nil, fmt.Errorf("no source definitions found in %q", cfg.Scrape.ConfigDir)
	}
	cfg.Sources = sources

	return &cfg, nil
}
