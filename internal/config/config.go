// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/torquemods/modhub/internal/catalog"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig    `mapstructure:"server"`
	Logging LoggingConfig   `mapstructure:"logging"`
	DB      DBConfig        `mapstructure:"db"`
	Scrape  ScrapeConfig    `mapstructure:"scrape"`
	PubSub  PubSubConfig    `mapstructure:"pubsub"`
	Stores  []catalog.Store `mapstructure:"stores"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DBConfig selects and configures the mod store backend.
type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

// ScrapeConfig governs the fetch pipeline and scheduling.
type ScrapeConfig struct {
	PageLimit           int    `mapstructure:"page_limit"`
	MaxPages            int    `mapstructure:"max_pages"`
	PageDelayMs         int    `mapstructure:"page_delay_ms"`
	StoreConcurrency    int    `mapstructure:"store_concurrency"`
	MaxRetries          int    `mapstructure:"max_retries"`
	RetryBaseDelayMs    int    `mapstructure:"retry_base_delay_ms"`
	RefreshIntervalSecs int    `mapstructure:"refresh_interval_secs"`
	RequestTimeoutSecs  int    `mapstructure:"request_timeout_secs"`
	UserAgent           string `mapstructure:"user_agent"`
}

// PubSubConfig holds metadata for run summary notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MODHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.Stores) == 0 {
		cfg.Stores = DefaultStores()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("db.driver", "memory")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("scrape.page_limit", 250)
	v.SetDefault("scrape.max_pages", 40)
	v.SetDefault("scrape.page_delay_ms", 500)
	v.SetDefault("scrape.store_concurrency", 3)
	v.SetDefault("scrape.max_retries", 6)
	v.SetDefault("scrape.retry_base_delay_ms", 1000)
	v.SetDefault("scrape.refresh_interval_secs", 900)
	v.SetDefault("scrape.request_timeout_secs", 20)
	v.SetDefault("scrape.user_agent", "modhub-scraper/0.2")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.DB.Driver {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when db.driver is postgres")
		}
	default:
		return fmt.Errorf("db.driver must be memory or postgres, got %q", c.DB.Driver)
	}
	if c.Scrape.PageLimit <= 0 || c.Scrape.PageLimit > 250 {
		return fmt.Errorf("scrape.page_limit must be in 1..250")
	}
	if c.Scrape.MaxPages <= 0 {
		return fmt.Errorf("scrape.max_pages must be > 0")
	}
	if c.Scrape.StoreConcurrency <= 0 {
		return fmt.Errorf("scrape.store_concurrency must be > 0")
	}
	if c.Scrape.MaxRetries < 0 {
		return fmt.Errorf("scrape.max_retries must be >= 0")
	}
	if c.Scrape.RefreshIntervalSecs <= 0 {
		return fmt.Errorf("scrape.refresh_interval_secs must be > 0")
	}
	if len(c.Stores) == 0 {
		return fmt.Errorf("at least one store must be configured")
	}
	seen := make(map[string]struct{}, len(c.Stores))
	for _, store := range c.Stores {
		if store.ID == "" {
			return fmt.Errorf("store id must not be empty")
		}
		if _, dup := seen[store.ID]; dup {
			return fmt.Errorf("duplicate store id %q", store.ID)
		}
		seen[store.ID] = struct{}{}
		u, err := url.Parse(store.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("store %q has invalid base_url %q", store.ID, store.BaseURL)
		}
	}
	return nil
}

// PageDelay is the per-store pause between page fetches.
func (c Config) PageDelay() time.Duration {
	return time.Duration(c.Scrape.PageDelayMs) * time.Millisecond
}

// RetryBaseDelay is the initial backoff step for rate-limited retries.
func (c Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Scrape.RetryBaseDelayMs) * time.Millisecond
}

// RefreshInterval is the periodic full-scrape cadence.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.Scrape.RefreshIntervalSecs) * time.Second
}

// RequestTimeout bounds a single page fetch.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Scrape.RequestTimeoutSecs) * time.Second
}

// DefaultStores is the built-in store registry used when no stores are
// configured.
func DefaultStores() []catalog.Store {
	return []catalog.Store{
		{
			ID:      "21overlays",
			Name:    "21 Overlays",
			BaseURL: "https://21overlays.com.au",
		},
		{
			ID:      "dubhaus",
			Name:    "Dubhaus",
			BaseURL: "https://dubhaus.com.au",
			LogoURL: "https://dubhaus.com.au/cdn/shop/files/Dubhaus-Logo-Dark_2x_aceaf8af-66d7-4aa4-9bdc-e7b868f4752b.png?v=1677123947&width=2000",
		},
		{
			ID:      "modeautoconcepts",
			Name:    "Mode Auto Concepts",
			BaseURL: "https://modeautoconcepts.com",
			LogoURL: "https://modeautoconcepts.com/cdn/shop/files/mode_website_header.png?v=1726554561&width=130",
		},
		{
			ID:      "xforce",
			Name:    "XForce",
			BaseURL: "https://xforce.com.au",
			LogoURL: "https://xforce.com.au/cdn/shop/files/Logo_Square_X_RED.png?v=1754529662",
		},
		{
			ID:      "justjap",
			Name:    "JustJap",
			BaseURL: "https://justjap.com",
			LogoURL: "https://justjap.com/cdn/shop/t/76/assets/icon-logo.svg?v=158336173239139661481733262283",
		},
		{
			ID:      "modsdirect",
			Name:    "Mods Direct",
			BaseURL: "https://www.modsdirect.com.au",
			LogoURL: "https://www.modsdirect.com.au/cdn/shop/files/MODSPPFBLK.png?v=1717205712&width=520",
		},
		{
			ID:      "prospeedracing",
			Name:    "Prospeed Racing",
			BaseURL: "https://www.prospeedracing.com.au",
			LogoURL: "https://www.prospeedracing.com.au/cdn/shop/files/pro_speed_racing_logo.png?v=1702293418&width=340",
		},
		{
			ID:      "shiftymods",
			Name:    "Shifty Mods",
			BaseURL: "https://shiftymods.com.au",
			LogoURL: "https://shiftymods.com.au/cdn/shop/files/3.png?v=1724340298&width=275",
		},
		{
			ID:      "performancewarehouse",
			Name:    "Performance Warehouse",
			BaseURL: "https://performancewarehouse.com.au",
			LogoURL: "https://cdn.shopify.com/s/files/1/0323/1596/5572/files/main-logo-v4.png?v=1707862321",
		},
		{
			ID:      "streetelement",
			Name:    "Street Element",
			BaseURL: "https://streetelement.com.au",
		},
	}
}
