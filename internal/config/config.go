package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"post-or-nah/backend/internal/ai"
	"post-or-nah/backend/internal/analyzer"
	"post-or-nah/backend/internal/billing"
)

// EnvConfigPath names the variable holding the YAML config path.
const EnvConfigPath = "POSTORNAH_CONFIG"

// Config holds the backend settings.
type Config struct {
	Port           string          `yaml:"port"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	LogLevel       string          `yaml:"log_level"`
	LogFormat      string          `yaml:"log_format"`
	DBPath         string          `yaml:"db_path"`
	Model          ModelConfig     `yaml:"model"`
	Billing        BillingConfig   `yaml:"billing"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// ModelConfig selects and tunes the vision model.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // vertex, gemini, openai, none
	Project     string  `yaml:"project"`
	Location    string  `yaml:"location"`
	APIKey      string  `yaml:"api_key"`
	Name        string  `yaml:"name"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     string  `yaml:"timeout"`

	// Fallback is used only when the primary provider cannot be set up.
	Fallback *ModelConfig `yaml:"fallback"`
}

// BillingConfig controls the free tier and paid credits.
type BillingConfig struct {
	Enabled       bool           `yaml:"enabled"`
	FreeLimit     int            `yaml:"free_limit"`
	AdminToken    string         `yaml:"admin_token"`
	WebhookSecret string         `yaml:"webhook_secret"`
	CreditPacks   map[string]int `yaml:"credit_packs"`

	// Checkout is enabled when SecretKey is set.
	SecretKey  string `yaml:"secret_key"`
	SuccessURL string `yaml:"success_url"`
	CancelURL  string `yaml:"cancel_url"`
	StripeURL  string `yaml:"stripe_url"`
}

// RateLimitConfig bounds analyze calls per user.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Port: "2000",
		AllowedOrigins: []string{
			"http://localhost:8081",
			"http://localhost:19006",
		},
		LogLevel:  "info",
		LogFormat: "text",
		DBPath:    "data/post-or-nah.db",
		Model: ModelConfig{
			Provider:    ai.ProviderVertex,
			Location:    "us-central1",
			Temperature: 0.2,
			MaxTokens:   300,
			Timeout:     "25s",
		},
		Billing: BillingConfig{
			Enabled:   true,
			FreeLimit: 3,
		},
		RateLimit: RateLimitConfig{
			PerMinute: 30,
			Burst:     5,
		},
	}
}

// Load reads .env, then the YAML file at path (or $POSTORNAH_CONFIG), then
// environment overrides. A missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logrus.WithField("path", path).Warn("config file not found; using defaults")
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		c.Port = v
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FORMAT")); v != "" {
		c.LogFormat = v
	}
	if v := strings.TrimSpace(os.Getenv("POSTORNAH_DB_PATH")); v != "" {
		c.DBPath = v
	}

	if v := strings.TrimSpace(os.Getenv("MODEL_PROVIDER")); v != "" {
		c.Model.Provider = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_CLOUD_PROJECT")); v != "" {
		c.Model.Project = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_CLOUD_LOCATION")); v != "" {
		c.Model.Location = v
	}
	if v := strings.TrimSpace(os.Getenv(apiKeyVar(c.Model.Provider))); v != "" {
		c.Model.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("MODEL_NAME")); v != "" {
		c.Model.Name = v
	}
	if v := strings.TrimSpace(os.Getenv("MODEL_BASE_URL")); v != "" {
		c.Model.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MODEL_FALLBACK_PROVIDER")); v != "" {
		if c.Model.Fallback == nil {
			c.Model.Fallback = &ModelConfig{}
		}
		c.Model.Fallback.Provider = strings.ToLower(v)
		if k := strings.TrimSpace(os.Getenv(apiKeyVar(v))); k != "" {
			c.Model.Fallback.APIKey = k
		}
	}
	if v := os.Getenv("MODEL_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Model.Temperature = f
		}
	}
	if v := os.Getenv("MODEL_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Model.MaxTokens = n
		}
	}
	if v := os.Getenv("MODEL_TIMEOUT"); v != "" {
		if _, err := time.ParseDuration(v); err == nil {
			c.Model.Timeout = v
		}
	}

	if v := os.Getenv("BILLING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Billing.Enabled = b
		}
	}
	if v := os.Getenv("FREE_ANALYSES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Billing.FreeLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ADMIN_TOKEN")); v != "" {
		c.Billing.AdminToken = v
	}
	if v := strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")); v != "" {
		c.Billing.WebhookSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")); v != "" {
		c.Billing.SecretKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CHECKOUT_SUCCESS_URL")); v != "" {
		c.Billing.SuccessURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CHECKOUT_CANCEL_URL")); v != "" {
		c.Billing.CancelURL = v
	}

	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.PerMinute = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.Burst = n
		}
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	c.Model.Provider = strings.ToLower(strings.TrimSpace(c.Model.Provider))
	if c.Model.Provider == "" {
		c.Model.Provider = ai.ProviderVertex
	}
	if !knownProvider(c.Model.Provider) {
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if fb := c.Model.Fallback; fb != nil {
		fb.Provider = strings.ToLower(strings.TrimSpace(fb.Provider))
		if !knownProvider(fb.Provider) || fb.Provider == "" {
			return fmt.Errorf("unknown fallback model provider %q", fb.Provider)
		}
	}
	if _, err := c.ModelTimeout(); err != nil {
		return err
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("model temperature %.2f out of range [0, 2]", c.Model.Temperature)
	}
	if c.Model.MaxTokens < 0 {
		return errors.New("model max_tokens must not be negative")
	}
	if c.Billing.FreeLimit < 0 {
		return errors.New("billing free_limit must not be negative")
	}
	if c.Billing.SecretKey != "" && (c.Billing.SuccessURL == "" || c.Billing.CancelURL == "") {
		return errors.New("billing success_url and cancel_url are required with secret_key")
	}
	for price, credits := range c.Billing.CreditPacks {
		if credits <= 0 {
			return fmt.Errorf("credit pack %q must grant a positive number of credits", price)
		}
	}
	if c.RateLimit.PerMinute < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate_limit values must not be negative")
	}
	return nil
}

// ModelTimeout parses the per-call deadline.
func (c *Config) ModelTimeout() (time.Duration, error) {
	if strings.TrimSpace(c.Model.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Model.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parse model timeout: %w", err)
	}
	if d < 0 {
		return 0, errors.New("model timeout must not be negative")
	}
	return d, nil
}

// AIConfig maps the model section onto the provider config.
func (c *Config) AIConfig() ai.Config {
	return ai.Config{
		Provider: c.Model.Provider,
		Project:  c.Model.Project,
		Location: c.Model.Location,
		APIKey:   c.Model.APIKey,
		Model:    c.Model.Name,
		BaseURL:  c.Model.BaseURL,
	}
}

// FallbackAIConfig maps the fallback section, inheriting the primary location
// when unset. ok is false when no fallback is configured.
func (c *Config) FallbackAIConfig() (ai.Config, bool) {
	fb := c.Model.Fallback
	if fb == nil || fb.Provider == "" || fb.Provider == ai.ProviderNone {
		return ai.Config{}, false
	}
	location := fb.Location
	if location == "" {
		location = c.Model.Location
	}
	return ai.Config{
		Provider: fb.Provider,
		Project:  fb.Project,
		Location: location,
		APIKey:   fb.APIKey,
		Model:    fb.Name,
		BaseURL:  fb.BaseURL,
	}, true
}

// BuildModel constructs the primary model, or the fallback when the primary
// cannot be set up. Setup failures are logged once here; the returned model is
// ai.Disabled when neither provider is usable.
func (c *Config) BuildModel(ctx context.Context) ai.Model {
	primary := buildModel(ctx, "primary", c.AIConfig())
	var fallback ai.Model
	if primary == nil {
		if cfg, ok := c.FallbackAIConfig(); ok {
			fallback = buildModel(ctx, "fallback", cfg)
		}
	}
	return ai.WithFallback(primary, fallback)
}

func buildModel(ctx context.Context, role string, cfg ai.Config) ai.Model {
	model, err := ai.New(ctx, cfg)
	if err != nil {
		log := logrus.WithError(err).WithFields(logrus.Fields{"role": role, "provider": cfg.Provider})
		if errors.Is(err, ai.ErrDisabled) {
			log.Warn("model client not configured")
		} else {
			log.Error("create model client")
		}
		return nil
	}
	return model
}

// AnalyzerConfig maps the model section onto per-call bounds.
func (c *Config) AnalyzerConfig() analyzer.Config {
	timeout, _ := c.ModelTimeout()
	temperature := float32(c.Model.Temperature)
	return analyzer.Config{
		Temperature:     &temperature,
		MaxOutputTokens: int32(c.Model.MaxTokens),
		Timeout:         timeout,
	}
}

// MeterConfig maps the billing section onto the meter.
func (c *Config) MeterConfig() billing.Config {
	return billing.Config{
		Enabled:     c.Billing.Enabled,
		FreeLimit:   c.Billing.FreeLimit,
		CreditPacks: c.Billing.CreditPacks,
	}
}

// CheckoutConfig maps the billing section onto Stripe checkout. ok is false
// when no secret key is configured.
func (c *Config) CheckoutConfig() (billing.CheckoutConfig, bool) {
	if c.Billing.SecretKey == "" {
		return billing.CheckoutConfig{}, false
	}
	return billing.CheckoutConfig{
		SecretKey:  c.Billing.SecretKey,
		SuccessURL: c.Billing.SuccessURL,
		CancelURL:  c.Billing.CancelURL,
		APIURL:     c.Billing.StripeURL,
	}, true
}

// ConfigureLogging applies the log level and format to logrus.
func (c *Config) ConfigureLogging() {
	if strings.EqualFold(c.LogFormat, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.WithField("log_level", c.LogLevel).Warn("unknown log level; using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func knownProvider(provider string) bool {
	switch provider {
	case ai.ProviderVertex, ai.ProviderGemini, ai.ProviderOpenAI, ai.ProviderNone:
		return true
	}
	return false
}

func apiKeyVar(provider string) string {
	if strings.EqualFold(strings.TrimSpace(provider), ai.ProviderOpenAI) {
		return "OPENAI_API_KEY"
	}
	return "GEMINI_API_KEY"
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
