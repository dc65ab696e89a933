package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data    DataConfig    `yaml:"data" mapstructure:"data"`
	Persist PersistConfig `yaml:"persist" mapstructure:"persist"`
	Scoring ScoringConfig `yaml:"scoring" mapstructure:"scoring"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DataConfig locates raw exports and canonical datasets.
type DataConfig struct {
	Dir             string `yaml:"dir" mapstructure:"dir"`
	RawFile         string `yaml:"raw_file" mapstructure:"raw_file"`
	PreferredFile   string `yaml:"preferred_file" mapstructure:"preferred_file"`
	MappingsFile    string `yaml:"mappings_file" mapstructure:"mappings_file"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes" mapstructure:"cache_ttl_minutes"`
	IssueWorkbook   bool   `yaml:"issue_workbook" mapstructure:"issue_workbook"`
}

// CacheTTL returns the load memo lifetime.
func (d DataConfig) CacheTTL() time.Duration {
	return time.Duration(d.CacheTTLMinutes) * time.Minute
}

// PersistConfig configures atomic dataset replacement.
type PersistConfig struct {
	MaxAttempts     int `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryStepMillis int `yaml:"retry_step_millis" mapstructure:"retry_step_millis"`
}

// RetryStep returns the linear backoff step.
func (p PersistConfig) RetryStep() time.Duration {
	return time.Duration(p.RetryStepMillis) * time.Millisecond
}

// ScoringConfig holds default recommendation weights and guards.
type ScoringConfig struct {
	DistanceWeight        float64 `yaml:"distance_weight" mapstructure:"distance_weight"`
	OutboundWeight        float64 `yaml:"outbound_weight" mapstructure:"outbound_weight"`
	InboundWeight         float64 `yaml:"inbound_weight" mapstructure:"inbound_weight"`
	PreferredWeight       float64 `yaml:"preferred_weight" mapstructure:"preferred_weight"`
	PreferredWarnFraction float64 `yaml:"preferred_warn_fraction" mapstructure:"preferred_warn_fraction"`
	DefaultLimit          int     `yaml:"default_limit" mapstructure:"default_limit"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	// RecommendRPS limits POST /recommend. Zero disables the limit.
	RecommendRPS   float64  `yaml:"recommend_rps" mapstructure:"recommend_rps"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml (optional) and REFERRAL_*
// environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REFERRAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.raw_file", "referrals.xlsx")
	v.SetDefault("data.preferred_file", "preferred_providers.xlsx")
	v.SetDefault("data.mappings_file", "")
	v.SetDefault("data.cache_ttl_minutes", 60)
	v.SetDefault("data.issue_workbook", true)
	v.SetDefault("persist.max_attempts", 5)
	v.SetDefault("persist.retry_step_millis", 200)
	v.SetDefault("scoring.distance_weight", 0.5)
	v.SetDefault("scoring.outbound_weight", 0.3)
	v.SetDefault("scoring.inbound_weight", 0.1)
	v.SetDefault("scoring.preferred_weight", 0.1)
	v.SetDefault("scoring.preferred_warn_fraction", 0.8)
	v.SetDefault("scoring.default_limit", 10)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "referral.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.recommend_rps", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command mode depends on. Modes are
// "prepare", "recommend", "validate", "serve" and "runs".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "prepare":
		errs = append(errs, c.validateData()...)
		errs = append(errs, c.validatePersist()...)
	case "recommend":
		errs = append(errs, c.validateData()...)
		errs = append(errs, c.validateScoring()...)
	case "validate":
		errs = append(errs, c.validateData()...)
	case "serve":
		errs = append(errs, c.validateData()...)
		errs = append(errs, c.validatePersist()...)
		errs = append(errs, c.validateScoring()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RecommendRPS < 0 {
			errs = append(errs, "server.recommend_rps must be >= 0")
		}
	case "runs":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	case "":
		errs = append(errs, "store.driver is required")
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateData() []string {
	var errs []string
	if c.Data.Dir == "" {
		errs = append(errs, "data.dir is required")
	}
	if c.Data.CacheTTLMinutes < 0 {
		errs = append(errs, "data.cache_ttl_minutes must be >= 0")
	}
	return errs
}

func (c *Config) validatePersist() []string {
	var errs []string
	if c.Persist.MaxAttempts < 1 || c.Persist.MaxAttempts > 20 {
		errs = append(errs, "persist.max_attempts must be between 1 and 20")
	}
	if c.Persist.RetryStepMillis < 0 {
		errs = append(errs, "persist.retry_step_millis must be >= 0")
	}
	return errs
}

func (c *Config) validateScoring() []string {
	var errs []string
	s := c.Scoring
	if s.DistanceWeight < 0 || s.OutboundWeight < 0 || s.InboundWeight < 0 || s.PreferredWeight < 0 {
		errs = append(errs, "scoring weights must be >= 0")
	}
	if s.DistanceWeight+s.OutboundWeight+s.InboundWeight+s.PreferredWeight <= 0 {
		errs = append(errs, "at least one scoring weight must be > 0")
	}
	if s.PreferredWarnFraction <= 0 || s.PreferredWarnFraction > 1 {
		errs = append(errs, "scoring.preferred_warn_fraction must be in (0, 1]")
	}
	if s.DefaultLimit < 1 {
		errs = append(errs, "scoring.default_limit must be >= 1")
	}
	return errs
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
