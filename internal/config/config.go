package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Wayback   WaybackConfig   `yaml:"wayback" mapstructure:"wayback"`
	Diff      DiffConfig      `yaml:"diff" mapstructure:"diff"`
	Summary   SummaryConfig   `yaml:"summary" mapstructure:"summary"`
	Assistant AssistantConfig `yaml:"assistant" mapstructure:"assistant"`
	Retention RetentionConfig `yaml:"retention" mapstructure:"retention"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures live page fetching.
type FetchConfig struct {
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxResponseMB int    `yaml:"max_response_mb" mapstructure:"max_response_mb"`
	ObeyRobots    bool   `yaml:"obey_robots" mapstructure:"obey_robots"`
}

// WaybackConfig configures the Internet Archive client.
type WaybackConfig struct {
	CDXBaseURL string  `yaml:"cdx_base_url" mapstructure:"cdx_base_url"`
	WebBaseURL string  `yaml:"web_base_url" mapstructure:"web_base_url"`
	QueryLimit int     `yaml:"query_limit" mapstructure:"query_limit"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// DiffConfig configures snapshot selection and diffing.
type DiffConfig struct {
	DefaultSnapshots     int `yaml:"default_snapshots" mapstructure:"default_snapshots"`
	MaxConcurrentFetches int `yaml:"max_concurrent_fetches" mapstructure:"max_concurrent_fetches"`
}

// SummaryConfig configures summary generation.
type SummaryConfig struct {
	Provider     string `yaml:"provider" mapstructure:"provider"`
	AnthropicKey string `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	Model        string `yaml:"model" mapstructure:"model"`
}

// AssistantConfig configures the slot-filling assistant.
type AssistantConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// RetentionConfig configures the housekeeping sweep.
type RetentionConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	Days              int  `yaml:"days" mapstructure:"days"`
	IntervalHours     int  `yaml:"interval_hours" mapstructure:"interval_hours"`
	CompactAfterPurge bool `yaml:"compact_after_purge" mapstructure:"compact_after_purge"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MANDELA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/mandelareport.sqlite3")
	v.SetDefault("fetch.user_agent", "MandelaReport/1.0 (+mailto:ops@mandelareport.example)")
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.max_response_mb", 5)
	v.SetDefault("fetch.obey_robots", true)
	v.SetDefault("wayback.cdx_base_url", "https://web.archive.org/cdx/search/cdx")
	v.SetDefault("wayback.web_base_url", "https://web.archive.org/web")
	v.SetDefault("wayback.query_limit", 2000)
	v.SetDefault("wayback.rate_per_sec", 2.0)
	v.SetDefault("diff.default_snapshots", 3)
	v.SetDefault("diff.max_concurrent_fetches", 4)
	v.SetDefault("summary.provider", "auto")
	v.SetDefault("summary.model", "claude-haiku-4-5-20251001")
	v.SetDefault("assistant.provider", "heuristic")
	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.days", 180)
	v.SetDefault("retention.interval_hours", 24)
	v.SetDefault("retention.compact_after_purge", true)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Dump renders the effective configuration as YAML with secrets masked.
func (c *Config) Dump() (string, error) {
	masked := *c
	if masked.Summary.AnthropicKey != "" {
		masked.Summary.AnthropicKey = "***"
	}
	out, err := yaml.Marshal(&masked)
	if err != nil {
		return "", eris.Wrap(err, "config: marshal")
	}
	return string(out), nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
