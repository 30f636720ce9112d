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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Scraper    ScraperConfig    `yaml:"scraper" mapstructure:"scraper"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Email      EmailConfig      `yaml:"email" mapstructure:"email"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Limits     LimitsConfig     `yaml:"limits" mapstructure:"limits"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ScraperConfig holds maps-scraper service settings.
type ScraperConfig struct {
	Token       string `yaml:"token" mapstructure:"token"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	ActorID     string `yaml:"actor_id" mapstructure:"actor_id"`
	Location    string `yaml:"location" mapstructure:"location"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// EmailConfig holds email lookup provider credentials. Providers without
// credentials simply do not participate in the waterfall.
type EmailConfig struct {
	HunterKey        string `yaml:"hunter_key" mapstructure:"hunter_key"`
	SnovClientID     string `yaml:"snov_client_id" mapstructure:"snov_client_id"`
	SnovClientSecret string `yaml:"snov_client_secret" mapstructure:"snov_client_secret"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// NotionConfig holds Notion API credentials and the lead board database ID.
type NotionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	LeadDB string `yaml:"lead_db" mapstructure:"lead_db"`
}

// CacheConfig configures the durable response cache.
type CacheConfig struct {
	Path            string `yaml:"path" mapstructure:"path"`
	SearchTTLSecs   int    `yaml:"search_ttl_secs" mapstructure:"search_ttl_secs"`
	AnalysisTTLSecs int    `yaml:"analysis_ttl_secs" mapstructure:"analysis_ttl_secs"`
}

// LimitsConfig holds per-service rate limit thresholds.
type LimitsConfig struct {
	ScraperPerMinute int `yaml:"scraper_per_minute" mapstructure:"scraper_per_minute"`
	AIPerMinute      int `yaml:"ai_per_minute" mapstructure:"ai_per_minute"`
	EmailPerMinute   int `yaml:"email_per_minute" mapstructure:"email_per_minute"`
	CRMPerMinute     int `yaml:"crm_per_minute" mapstructure:"crm_per_minute"`
}

// PipelineConfig configures scoring thresholds.
type PipelineConfig struct {
	MinScore  int     `yaml:"min_score" mapstructure:"min_score"`
	MinRating float64 `yaml:"min_rating" mapstructure:"min_rating"`
}

// ServerConfig configures the REST API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Credential keys get empty defaults so AutomaticEnv can
	// surface them through Unmarshal.
	v.SetDefault("scraper.token", "")
	v.SetDefault("scraper.location", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("email.hunter_key", "")
	v.SetDefault("email.snov_client_id", "")
	v.SetDefault("email.snov_client_secret", "")
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.key_path", "")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.lead_db", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leads.db")
	v.SetDefault("scraper.base_url", "https://api.apify.com/v2")
	v.SetDefault("scraper.actor_id", "compass~crawler-google-places")
	v.SetDefault("scraper.timeout_secs", 120)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("cache.path", "cache.db")
	v.SetDefault("cache.search_ttl_secs", 3600)
	v.SetDefault("cache.analysis_ttl_secs", 7200)
	v.SetDefault("limits.scraper_per_minute", 30)
	v.SetDefault("limits.ai_per_minute", 60)
	v.SetDefault("limits.email_per_minute", 120)
	v.SetDefault("limits.crm_per_minute", 60)
	v.SetDefault("pipeline.min_score", 60)
	v.SetDefault("pipeline.min_rating", 3.5)
	v.SetDefault("server.port", 8080)
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

// Validate checks that credentials required for a pipeline run are present.
// Called before any run starts so missing credentials fail fast, not mid-run.
func (c *Config) Validate() error {
	var missing []string
	if c.Scraper.Token == "" {
		missing = append(missing, "scraper.token")
	}
	if c.Anthropic.Key == "" {
		missing = append(missing, "anthropic.key")
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required credentials: %s", strings.Join(missing, ", "))
	}
	return nil
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
