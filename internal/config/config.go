// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	DocCloud DocCloudConfig `yaml:"doccloud" mapstructure:"doccloud"`
	AI       AIConfig       `yaml:"ai" mapstructure:"ai"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DocCloudConfig holds credentials and timeouts for the remote
// document-processing API.
type DocCloudConfig struct {
	ClientID          string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret      string `yaml:"client_secret" mapstructure:"client_secret"`
	OrgID             string `yaml:"org_id" mapstructure:"org_id"`
	BaseURL           string `yaml:"base_url" mapstructure:"base_url"`
	UploadTimeoutSecs int    `yaml:"upload_timeout_secs" mapstructure:"upload_timeout_secs"`
	PollMaxAttempts   int    `yaml:"poll_max_attempts" mapstructure:"poll_max_attempts"`
	PollMaxWaitSecs   int    `yaml:"poll_max_wait_secs" mapstructure:"poll_max_wait_secs"`
}

// AIConfig holds settings for the AI-completion fallback parser.
type AIConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // "openai", "anthropic" or ""
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Model    string `yaml:"model" mapstructure:"model"`
}

// PipelineConfig tunes orchestrator deadlines and parsing behavior.
type PipelineConfig struct {
	OuterTimeoutSecs  int     `yaml:"outer_timeout_secs" mapstructure:"outer_timeout_secs"`
	RemoteTimeoutSecs int     `yaml:"remote_timeout_secs" mapstructure:"remote_timeout_secs"`
	QualityThreshold  float64 `yaml:"quality_threshold" mapstructure:"quality_threshold"`
	TotalTolerance    float64 `yaml:"total_tolerance" mapstructure:"total_tolerance"`
	Production        bool    `yaml:"production" mapstructure:"production"`
	MaxConcurrent     int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// CacheConfig configures the in-memory memoization cache.
type CacheConfig struct {
	Enabled    bool `yaml:"enabled" mapstructure:"enabled"`
	TTLMinutes int  `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// ServerConfig configures the HTTP upload endpoint.
type ServerConfig struct {
	Port        int    `yaml:"port" mapstructure:"port"`
	AuthToken   string `yaml:"auth_token" mapstructure:"auth_token"`
	MaxUploadMB int64  `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	RateRPS     int    `yaml:"rate_rps" mapstructure:"rate_rps"`
	RateBurst   int    `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from proposta.yaml (cwd or /etc/proposta) with
// PROPOSTA_* environment overrides.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("proposta")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/proposta")

	v.SetEnvPrefix("PROPOSTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "proposta.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 15)
	v.SetDefault("server.rate_rps", 5)
	v.SetDefault("server.rate_burst", 10)
	// Empty defaults so AutomaticEnv can fill credential keys that never
	// appear in the config file.
	v.SetDefault("doccloud.client_id", "")
	v.SetDefault("doccloud.client_secret", "")
	v.SetDefault("doccloud.org_id", "")
	v.SetDefault("doccloud.base_url", "")
	v.SetDefault("ai.key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.model", "")
	v.SetDefault("server.auth_token", "")
	v.SetDefault("doccloud.upload_timeout_secs", 30)
	v.SetDefault("doccloud.poll_max_attempts", 20)
	v.SetDefault("doccloud.poll_max_wait_secs", 60)
	v.SetDefault("ai.provider", "")
	v.SetDefault("pipeline.outer_timeout_secs", 90)
	v.SetDefault("pipeline.remote_timeout_secs", 45)
	v.SetDefault("pipeline.quality_threshold", 0.4)
	v.SetDefault("pipeline.total_tolerance", 1.0)
	v.SetDefault("pipeline.max_concurrent", 4)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl_minutes", 30)

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

// MissingDocCloudCredentials lists required remote-API credential fields that
// are absent. Checked before any network call is attempted.
func (c *Config) MissingDocCloudCredentials() []string {
	var missing []string
	if c.DocCloud.ClientID == "" {
		missing = append(missing, "doccloud.client_id")
	}
	if c.DocCloud.ClientSecret == "" {
		missing = append(missing, "doccloud.client_secret")
	}
	if c.DocCloud.OrgID == "" {
		missing = append(missing, "doccloud.org_id")
	}
	return missing
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
