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
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Raster     RasterConfig     `yaml:"raster" mapstructure:"raster"`
	NetSheet   NetSheetConfig   `yaml:"netsheet" mapstructure:"netsheet"`
	Listing    ListingConfig    `yaml:"listing" mapstructure:"listing"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Intake     IntakeConfig     `yaml:"intake" mapstructure:"intake"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnthropicConfig holds Anthropic API settings. PrimaryModel backs the
// primary extraction strategy; SecondaryModel is used for the secondary
// strategy when no Gemini key is configured.
type AnthropicConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	PrimaryModel   string  `yaml:"primary_model" mapstructure:"primary_model"`
	SecondaryModel string  `yaml:"secondary_model" mapstructure:"secondary_model"`
	MaxTokens      int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// GeminiConfig holds Gemini API settings for the secondary strategy.
type GeminiConfig struct {
	Key          string  `yaml:"key" mapstructure:"key"`
	Model        string  `yaml:"model" mapstructure:"model"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// ExtractionConfig configures the robust extraction orchestrator.
type ExtractionConfig struct {
	MinSuccessFields    int    `yaml:"min_success_fields" mapstructure:"min_success_fields"`
	MaxTotalAttempts    int    `yaml:"max_total_attempts" mapstructure:"max_total_attempts"`
	PrimaryAttempts     int    `yaml:"primary_attempts" mapstructure:"primary_attempts"`
	SecondaryAttempts   int    `yaml:"secondary_attempts" mapstructure:"secondary_attempts"`
	MinimalAttempts     int    `yaml:"minimal_attempts" mapstructure:"minimal_attempts"`
	RetryDelayMs        int    `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	MinimalRetryDelayMs int    `yaml:"minimal_retry_delay_ms" mapstructure:"minimal_retry_delay_ms"`
	AttemptTimeoutSecs  int    `yaml:"attempt_timeout_secs" mapstructure:"attempt_timeout_secs"`
	BindingsPath        string `yaml:"bindings_path" mapstructure:"bindings_path"`
	CallRetries         int    `yaml:"call_retries" mapstructure:"call_retries"`
	BreakerThreshold    int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs    int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// RasterConfig configures PDF page rasterization.
type RasterConfig struct {
	PdftoppmPath string `yaml:"pdftoppm_path" mapstructure:"pdftoppm_path"`
	DPI          int    `yaml:"dpi" mapstructure:"dpi"`
	TempDir      string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// NetSheetConfig holds calculator defaults that do not come from the contract.
type NetSheetConfig struct {
	DefaultAnnualTaxes       float64 `yaml:"default_annual_taxes" mapstructure:"default_annual_taxes"`
	DefaultCommissionPercent float64 `yaml:"default_commission_percent" mapstructure:"default_commission_percent"`
	HomeWarrantyDefault      float64 `yaml:"home_warranty_default" mapstructure:"home_warranty_default"`
	SurveyEstimate           float64 `yaml:"survey_estimate" mapstructure:"survey_estimate"`
	SettlementFee            float64 `yaml:"settlement_fee" mapstructure:"settlement_fee"`
	DocumentPrepFee          float64 `yaml:"document_prep_fee" mapstructure:"document_prep_fee"`
}

// ListingConfig points at the listing data used for tax and commission
// lookups. DatabaseURL takes precedence over Path when both are set.
type ListingConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// StoreConfig configures the diagnostics database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// OutputConfig configures artifact generation and distribution.
type OutputConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	UploadDir  string `yaml:"upload_dir" mapstructure:"upload_dir"`
	RenderPDF  bool   `yaml:"render_pdf" mapstructure:"render_pdf"`
	ChromePath string `yaml:"chrome_path" mapstructure:"chrome_path"`
}

// IntakeConfig configures the inbox polling loop.
type IntakeConfig struct {
	InboxDir             string `yaml:"inbox_dir" mapstructure:"inbox_dir"`
	PollIntervalSecs     int    `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	MaxConcurrent        int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	MaxConsecutiveErrors int    `yaml:"max_consecutive_errors" mapstructure:"max_consecutive_errors"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures the background alert checker.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	ReviewRateThreshold  float64 `yaml:"review_rate_threshold" mapstructure:"review_rate_threshold"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// PricingConfig holds per-model token pricing used for cost attribution.
type PricingConfig struct {
	Models map[string]ModelPricing `yaml:"models" mapstructure:"models"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NETSHEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("anthropic.primary_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.secondary_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.rate_limit_rps", 2.0)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.rate_limit_rps", 2.0)

	v.SetDefault("extraction.min_success_fields", 15)
	v.SetDefault("extraction.max_total_attempts", 10)
	v.SetDefault("extraction.primary_attempts", 3)
	v.SetDefault("extraction.secondary_attempts", 2)
	v.SetDefault("extraction.minimal_attempts", 2)
	v.SetDefault("extraction.retry_delay_ms", 2000)
	v.SetDefault("extraction.minimal_retry_delay_ms", 1000)
	v.SetDefault("extraction.attempt_timeout_secs", 180)
	v.SetDefault("extraction.call_retries", 2)
	v.SetDefault("extraction.breaker_threshold", 5)
	v.SetDefault("extraction.breaker_reset_secs", 60)

	v.SetDefault("raster.pdftoppm_path", "pdftoppm")
	v.SetDefault("raster.dpi", 150)

	v.SetDefault("netsheet.default_annual_taxes", 3000.0)
	v.SetDefault("netsheet.default_commission_percent", 0.03)
	v.SetDefault("netsheet.home_warranty_default", 550.0)
	v.SetDefault("netsheet.survey_estimate", 450.0)
	v.SetDefault("netsheet.settlement_fee", 350.0)
	v.SetDefault("netsheet.document_prep_fee", 150.0)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "netsheet.db")

	v.SetDefault("output.dir", "out")
	v.SetDefault("output.render_pdf", false)

	v.SetDefault("intake.inbox_dir", "inbox")
	v.SetDefault("intake.poll_interval_secs", 60)
	v.SetDefault("intake.max_concurrent", 3)
	v.SetDefault("intake.max_consecutive_errors", 5)

	v.SetDefault("server.port", 8080)

	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.review_rate_threshold", 0.5)
	v.SetDefault("monitoring.cost_threshold_usd", 50.0)

	v.SetDefault("pricing.models", map[string]any{
		"claude-sonnet-4-5-20250929": map[string]any{"input": 3.00, "output": 15.00},
		"claude-haiku-4-5-20251001":  map[string]any{"input": 0.80, "output": 4.00},
	})
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

// Validate checks that the settings required by the given mode are present.
// Modes: "extract", "process", "poll", "serve", "calc".
func (c *Config) Validate(mode string) error {
	var problems []string
	needsExtraction := mode == "extract" || mode == "process" || mode == "poll"

	if needsExtraction {
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Extraction.MinSuccessFields <= 0 {
			problems = append(problems, "extraction.min_success_fields must be positive")
		}
		if c.Extraction.MaxTotalAttempts <= 0 {
			problems = append(problems, "extraction.max_total_attempts must be positive")
		}
		if c.Extraction.AttemptTimeoutSecs <= 0 {
			problems = append(problems, "extraction.attempt_timeout_secs must be positive")
		}
	}
	if mode == "poll" && c.Intake.InboxDir == "" {
		problems = append(problems, "intake.inbox_dir is required")
	}
	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if c.Monitoring.Enabled && c.Monitoring.WebhookURL == "" {
		problems = append(problems, "monitoring.webhook_url is required when monitoring is enabled")
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.NetSheet.DefaultCommissionPercent < 0 || c.NetSheet.DefaultCommissionPercent > 1 {
		problems = append(problems, "netsheet.default_commission_percent must be a fraction between 0 and 1")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}
