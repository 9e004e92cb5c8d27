package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. INVOICEBOT_LLM_API_KEY.
const EnvPrefix = "INVOICEBOT"

// Config holds the application configuration
type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Invoicing InvoicingConfig `mapstructure:"invoicing"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Server    ServerConfig    `mapstructure:"server"`
	History   HistoryConfig   `mapstructure:"history"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	BaseURL         string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model" validate:"required"`
	SynthesisPrompt string        `mapstructure:"synthesis_prompt"`
	SummaryPrompt   string        `mapstructure:"summary_prompt"`
	Breaker         BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig tunes the circuit breaker wrapped around the LLM client.
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold uint32        `mapstructure:"failure_threshold" validate:"required_if=Enabled true"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
	HalfOpenRequests uint32        `mapstructure:"half_open_requests"`
}

// InvoicingConfig points at the invoicing REST API and restricts what the LLM may call.
type InvoicingConfig struct {
	BaseURL          string        `mapstructure:"base_url" validate:"required,url"`
	Token            string        `mapstructure:"token"`
	Timeout          time.Duration `mapstructure:"timeout"`
	AllowedMethods   []string      `mapstructure:"allowed_methods" validate:"min=1,dive,oneof=GET POST PUT DELETE"`
	AllowedEndpoints []string      `mapstructure:"allowed_endpoints" validate:"min=1,dive,startswith=/"`
}

// TelegramConfig holds the bot credentials and polling settings.
type TelegramConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Token       string `mapstructure:"token" validate:"required_if=Enabled true"`
	PollTimeout int    `mapstructure:"poll_timeout" validate:"gte=0"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port" validate:"required_if=Enabled true"`
}

// HistoryConfig controls the exchange log.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// PipelineConfig holds per-message behaviour.
type PipelineConfig struct {
	MessageTimeout time.Duration `mapstructure:"message_timeout"`
	Apology        string        `mapstructure:"apology" validate:"required"`
	Refusal        string        `mapstructure:"refusal" validate:"required"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4-0125-preview")
	v.SetDefault("llm.synthesis_prompt", "")
	v.SetDefault("llm.summary_prompt", "")
	v.SetDefault("llm.breaker.enabled", true)
	v.SetDefault("llm.breaker.failure_threshold", 3)
	v.SetDefault("llm.breaker.reset_timeout", time.Minute)
	v.SetDefault("llm.breaker.half_open_requests", 1)

	v.SetDefault("invoicing.base_url", "http://127.0.0.1:8000/api")
	v.SetDefault("invoicing.token", "")
	v.SetDefault("invoicing.timeout", 30*time.Second)
	v.SetDefault("invoicing.allowed_methods", []string{"GET", "POST", "PUT", "DELETE"})
	v.SetDefault("invoicing.allowed_endpoints", []string{
		"/vat-rates", "/invoice-series", "/customers", "/invoices",
		"/store-invoice", "/store-customer",
	})

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.poll_timeout", 60)
	v.SetDefault("telegram.debug", false)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "history.db")

	v.SetDefault("pipeline.message_timeout", 2*time.Minute)
	v.SetDefault("pipeline.apology", "Sorry, I encountered a problem processing your request.")
	v.SetDefault("pipeline.refusal", "Sorry, I am not allowed to perform that operation.")
}

// Load reads config.yaml from the working directory, or the file named by
// CONFIG_PATH, then applies INVOICEBOT_* environment overrides.
// A missing config.yaml is not an error; defaults and environment apply.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	for i, m := range c.Invoicing.AllowedMethods {
		c.Invoicing.AllowedMethods[i] = strings.ToUpper(strings.TrimSpace(m))
	}
	c.Invoicing.BaseURL = strings.TrimRight(c.Invoicing.BaseURL, "/")
}

// Validate checks the struct tags of the whole tree.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
