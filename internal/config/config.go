// Package config loads the archive configuration from config.yaml and
// ARCHIVE_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	NRK       NRKConfig       `yaml:"nrk" mapstructure:"nrk"`
	Wikidata  WikidataConfig  `yaml:"wikidata" mapstructure:"wikidata"`
	Sceneweb  ScenewebConfig  `yaml:"sceneweb" mapstructure:"sceneweb"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Grouping  GroupingConfig  `yaml:"grouping" mapstructure:"grouping"`
	Matching  MatchingConfig  `yaml:"matching" mapstructure:"matching"`
	Orphans   OrphansConfig   `yaml:"orphans" mapstructure:"orphans"`
}

// StoreConfig selects and configures the storage back end.
type StoreConfig struct {
	// Driver is sqlite, yaml or postgres.
	Driver string `yaml:"driver" mapstructure:"driver"`
	// Path is the SQLite file or the YAML root directory.
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	LockPath    string `yaml:"lock_path" mapstructure:"lock_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FetchConfig is shared by every outbound HTTP source.
type FetchConfig struct {
	Delay            time.Duration `yaml:"delay" mapstructure:"delay"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent        string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxAttempts      int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff   time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	BreakerThreshold int           `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown" mapstructure:"breaker_cooldown"`
}

// NRKConfig configures the NRK programme API.
type NRKConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// WikidataConfig configures Wikidata lookups.
type WikidataConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	CacheSize int    `yaml:"cache_size" mapstructure:"cache_size"`
}

// ScenewebConfig configures Sceneweb scraping.
type ScenewebConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig configures the classification oracle.
type AnthropicConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	Model         string  `yaml:"model" mapstructure:"model"`
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// GroupingConfig configures episode grouping.
type GroupingConfig struct {
	UmbrellaSeries []string `yaml:"umbrella_series" mapstructure:"umbrella_series"`
}

// MatchingConfig configures fuzzy matching.
type MatchingConfig struct {
	Threshold        float64 `yaml:"threshold" mapstructure:"threshold"`
	ContainmentFloor float64 `yaml:"containment_floor" mapstructure:"containment_floor"`
	ContextBoost     float64 `yaml:"context_boost" mapstructure:"context_boost"`
}

// OrphansConfig configures orphan cleanup.
type OrphansConfig struct {
	AutoDelete bool `yaml:"auto_delete" mapstructure:"auto_delete"`
}

// Validate checks the values Load cannot default away. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "yaml":
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for "+c.Store.Driver)
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}
	if c.Anthropic.MinConfidence < 0 || c.Anthropic.MinConfidence > 1 {
		errs = append(errs, "anthropic.min_confidence must be between 0 and 1")
	}
	if c.Matching.Threshold <= 0 || c.Matching.Threshold > 1 {
		errs = append(errs, "matching.threshold must be in (0, 1]")
	}
	if c.Matching.ContainmentFloor < 0 || c.Matching.ContainmentFloor > 1 {
		errs = append(errs, "matching.containment_floor must be between 0 and 1")
	}
	if c.Fetch.MaxAttempts < 1 {
		errs = append(errs, "fetch.max_attempts must be >= 1")
	}
	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from config.yaml (optional) and the environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ARCHIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "archive.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.lock_path", ".archive.lock")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("fetch.delay", "500ms")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.user_agent", "archive-cli/1.0 (+https://github.com/teaterarkiv/archive-cli)")
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.initial_backoff", "1s")
	v.SetDefault("fetch.breaker_threshold", 5)
	v.SetDefault("fetch.breaker_cooldown", "1m")
	v.SetDefault("nrk.base_url", "https://psapi.nrk.no")
	v.SetDefault("wikidata.base_url", "https://www.wikidata.org")
	v.SetDefault("wikidata.cache_size", 1024)
	v.SetDefault("sceneweb.base_url", "https://sceneweb.no")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.min_confidence", 0.8)
	v.SetDefault("grouping.umbrella_series", []string{"radioteatret"})
	v.SetDefault("matching.threshold", 0.7)
	v.SetDefault("matching.containment_floor", 0.8)
	v.SetDefault("matching.context_boost", 0.2)
	v.SetDefault("orphans.auto_delete", false)

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
