// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	DB         DBConfig                `mapstructure:"db"`
	Sources    map[string]SourceConfig `mapstructure:"sources"`
	Notify     NotifyConfig            `mapstructure:"notify"`
	Archive    ArchiveConfig           `mapstructure:"archive"`
	Ops        OpsConfig               `mapstructure:"ops"`
	Supervisor SupervisorConfig        `mapstructure:"supervisor"`
	Logging    LoggingConfig           `mapstructure:"logging"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int    `mapstructure:"max_conns"`
	MinConns        int    `mapstructure:"min_conns"`
	ConnLifetimeMin int    `mapstructure:"conn_lifetime_minutes"`
}

// SourceConfig describes one crawled source, keyed by code name.
type SourceConfig struct {
	SeedURL string `mapstructure:"seed_url"`
	// Adapter names the extraction adapter: storefront or apifeed.
	Adapter string `mapstructure:"adapter"`
	// Fetcher selects the transport: api (plain HTTP) or headless.
	Fetcher            string  `mapstructure:"fetcher"`
	MaxRetries         int     `mapstructure:"max_retries"`
	RetrySleepSeconds  int     `mapstructure:"retry_sleep_seconds"`
	CooldownSeconds    int     `mapstructure:"cooldown_seconds"`
	RatePerSecond      float64 `mapstructure:"rate_per_second"`
	PageLoadTimeoutSec int     `mapstructure:"page_load_timeout_seconds"`
	WaitSelector       string  `mapstructure:"wait_selector"`
	ConsentSelector    string  `mapstructure:"consent_selector"`
	UserAgent          string  `mapstructure:"user_agent"`
	CompanionBrowser   string  `mapstructure:"companion_browser"`
}

// NotifyConfig selects notification channels. Empty values disable the
// channel.
type NotifyConfig struct {
	SlackWebhookURL string `mapstructure:"slack_webhook_url"`
	PubSubProjectID string `mapstructure:"pubsub_project_id"`
	PubSubTopic     string `mapstructure:"pubsub_topic"`
}

// ArchiveConfig controls raw payload storage. At most one backend.
type ArchiveConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// OpsConfig controls the operational HTTP listener.
type OpsConfig struct {
	Addr string `mapstructure:"addr"`
}

// SupervisorConfig controls pass restart behavior.
type SupervisorConfig struct {
	RestartDelaySeconds int `mapstructure:"restart_delay_seconds"`
	MaxRestarts         int `mapstructure:"max_restarts"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOG")
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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("archive.prefix", "pages/")
	v.SetDefault("ops.addr", ":8080")
	v.SetDefault("supervisor.restart_delay_seconds", 5)
	v.SetDefault("supervisor.max_restarts", 0)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set")
	}
	if c.DB.MaxConns <= 0 {
		return fmt.Errorf("db.max_conns must be > 0")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}
	for name, src := range c.Sources {
		if src.SeedURL == "" {
			return fmt.Errorf("sources.%s.seed_url must be set", name)
		}
		switch src.Adapter {
		case "storefront", "apifeed":
		default:
			return fmt.Errorf("sources.%s.adapter must be storefront or apifeed, got %q", name, src.Adapter)
		}
		switch src.Fetcher {
		case "api", "headless":
		default:
			return fmt.Errorf("sources.%s.fetcher must be api or headless, got %q", name, src.Fetcher)
		}
		if src.MaxRetries < 0 {
			return fmt.Errorf("sources.%s.max_retries must be >= 0", name)
		}
		if src.RatePerSecond < 0 {
			return fmt.Errorf("sources.%s.rate_per_second must be >= 0", name)
		}
	}
	if c.Archive.GCSBucket != "" && c.Archive.LocalDir != "" {
		return fmt.Errorf("archive.gcs_bucket and archive.local_dir are mutually exclusive")
	}
	if (c.Notify.PubSubProjectID == "") != (c.Notify.PubSubTopic == "") {
		return fmt.Errorf("notify.pubsub_project_id and notify.pubsub_topic must be set together")
	}
	return nil
}

// SourceNames returns the configured code names in map order.
func (c Config) SourceNames() []string {
	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	return names
}

// ConnLifetime converts the configured connection lifetime to a
// Duration.
func (d DBConfig) ConnLifetime() time.Duration {
	return time.Duration(d.ConnLifetimeMin) * time.Minute
}

// RestartDelay converts restart_delay_seconds to a Duration.
func (s SupervisorConfig) RestartDelay() time.Duration {
	return time.Duration(s.RestartDelaySeconds) * time.Second
}

// RetrySleep converts retry_sleep_seconds to a Duration.
func (s SourceConfig) RetrySleep() time.Duration {
	return time.Duration(s.RetrySleepSeconds) * time.Second
}

// Cooldown converts cooldown_seconds to a Duration.
func (s SourceConfig) Cooldown() time.Duration {
	return time.Duration(s.CooldownSeconds) * time.Second
}

// PageLoadTimeout converts page_load_timeout_seconds to a Duration.
func (s SourceConfig) PageLoadTimeout() time.Duration {
	return time.Duration(s.PageLoadTimeoutSec) * time.Second
}
