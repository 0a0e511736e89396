package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/engine"
	"github.com/decimal-labs/leakwatch/internal/extract"
	"github.com/decimal-labs/leakwatch/internal/llm"
	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/scoring"
	"github.com/decimal-labs/leakwatch/internal/service"
	"github.com/decimal-labs/leakwatch/internal/storage"
)

// EnvPrefix is the prefix for environment overrides of config keys.
const EnvPrefix = "LEAKWATCH"

// DefaultStoragePath is where the leak database lives unless configured.
const DefaultStoragePath = "~/.local/share/leakwatch/leaks.db"

// Config is the typed view of the application configuration.
type Config struct {
	Extract  ExtractConfig
	Storage  StorageConfig
	Logging  LoggingConfig
	AI       AIConfig
	Scoring  ScoringConfig
	Pipeline PipelineConfig
}

// AIConfig configures the AI classification client.
type AIConfig struct {
	Provider                string
	Model                   string
	APIKey                  string
	BaseURL                 string
	MaxInputChars           int
	CallTimeout             time.Duration
	MaxAttempts             int
	InitialBackoff          time.Duration
	MaxBackoff              time.Duration
	RateLimit               int
	CacheTTL                time.Duration
	Enabled                 bool
	ClassifyWithoutFindings bool
}

// PipelineConfig configures the orchestrator's worker pool.
type PipelineConfig struct {
	Workers         int
	DocumentTimeout time.Duration
}

// ScoringConfig configures the severity scorer.
type ScoringConfig struct {
	Weights   map[model.Category]model.Severity
	Threshold float64
}

// ExtractConfig configures the local extractor.
type ExtractConfig struct {
	KeywordsFile string
	PhonePlans   []string
}

// StorageConfig selects the store backend.
type StorageConfig struct {
	Backend string
	Path    string
}

// LoggingConfig holds the log level and format.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers default values for every recognised key.
func SetDefaults(v *viper.Viper) {
	ai := llm.DefaultConfig("gemini")
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.provider", ai.Provider)
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.max_input_chars", ai.MaxInputChars)
	v.SetDefault("ai.call_timeout", ai.CallTimeout)
	v.SetDefault("ai.max_attempts", ai.MaxAttempts)
	v.SetDefault("ai.initial_backoff", ai.InitialBackoff)
	v.SetDefault("ai.max_backoff", ai.MaxBackoff)
	v.SetDefault("ai.rate_limit", ai.RateLimit)
	v.SetDefault("ai.cache_ttl", ai.CacheTTL)
	v.SetDefault("ai.classify_without_findings", false)

	pipeline := engine.DefaultConfig()
	v.SetDefault("pipeline.workers", pipeline.Workers)
	v.SetDefault("pipeline.document_timeout", pipeline.DocumentTimeout)

	v.SetDefault("scoring.ai_confidence_threshold", scoring.DefaultConfig().Threshold)

	v.SetDefault("extract.phone_plans", extract.DefaultOptions().PhonePlans)
	v.SetDefault("extract.keywords_file", "")

	v.SetDefault("storage.backend", storage.BackendSQLite)
	v.SetDefault("storage.path", DefaultStoragePath)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// LoadDotEnv loads a .env file from the working directory if one exists.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Load builds a Config from v. Defaults must already be registered.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AI: AIConfig{
			Enabled:                 v.GetBool("ai.enabled"),
			Provider:                strings.ToLower(v.GetString("ai.provider")),
			Model:                   v.GetString("ai.model"),
			APIKey:                  v.GetString("ai.api_key"),
			BaseURL:                 v.GetString("ai.base_url"),
			MaxInputChars:           v.GetInt("ai.max_input_chars"),
			CallTimeout:             v.GetDuration("ai.call_timeout"),
			MaxAttempts:             v.GetInt("ai.max_attempts"),
			InitialBackoff:          v.GetDuration("ai.initial_backoff"),
			MaxBackoff:              v.GetDuration("ai.max_backoff"),
			RateLimit:               v.GetInt("ai.rate_limit"),
			CacheTTL:                v.GetDuration("ai.cache_ttl"),
			ClassifyWithoutFindings: v.GetBool("ai.classify_without_findings"),
		},
		Pipeline: PipelineConfig{
			Workers:         v.GetInt("pipeline.workers"),
			DocumentTimeout: v.GetDuration("pipeline.document_timeout"),
		},
		Scoring: ScoringConfig{
			Threshold: v.GetFloat64("scoring.ai_confidence_threshold"),
		},
		Extract: ExtractConfig{
			PhonePlans:   v.GetStringSlice("extract.phone_plans"),
			KeywordsFile: ExpandPath(v.GetString("extract.keywords_file")),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(v.GetString("storage.backend")),
			Path:    ExpandPath(v.GetString("storage.path")),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if raw, ok := os.LookupEnv("AI_PROCESSING_ENABLED"); ok {
		cfg.AI.Enabled = parseFlag(raw)
	}
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = providerAPIKey(cfg.AI.Provider)
	}

	weights, err := loadWeights(v.GetStringMapString("scoring.weights"))
	if err != nil {
		return nil, err
	}
	cfg.Scoring.Weights = weights

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the components would reject.
func (c *Config) Validate() error {
	var errs []error
	if c.AI.Enabled {
		if err := c.LLMConfig().Validate(); err != nil {
			errs = append(errs, err)
		}
		if c.AI.APIKey == "" {
			errs = append(errs, fmt.Errorf("ai.enabled is set but no API key was found for provider %s", c.AI.Provider))
		}
	}
	if c.AI.MaxInputChars <= 0 {
		errs = append(errs, fmt.Errorf("ai.max_input_chars must be positive"))
	}
	if c.AI.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ai.call_timeout must be positive"))
	}
	if c.Pipeline.Workers <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.workers must be positive"))
	}
	if c.Pipeline.DocumentTimeout < 0 {
		errs = append(errs, fmt.Errorf("pipeline.document_timeout must not be negative"))
	}
	if c.Scoring.Threshold < 0 || c.Scoring.Threshold > 1 {
		errs = append(errs, fmt.Errorf("scoring.ai_confidence_threshold must be within [0, 1]"))
	}
	if _, err := extract.LookupPhonePlans(c.Extract.PhonePlans); err != nil {
		errs = append(errs, err)
	}
	switch c.Storage.Backend {
	case storage.BackendSQLite, storage.BackendBolt:
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}
	if c.Storage.Path == "" {
		errs = append(errs, fmt.Errorf("storage.path is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	return nil
}

// LLMConfig returns the classification client configuration.
func (c *Config) LLMConfig() llm.Config {
	cfg := llm.DefaultConfig(c.AI.Provider)
	cfg.APIKey = c.AI.APIKey
	cfg.Model = c.AI.Model
	cfg.BaseURL = c.AI.BaseURL
	cfg.MaxAttempts = c.AI.MaxAttempts
	cfg.InitialBackoff = c.AI.InitialBackoff
	cfg.MaxBackoff = c.AI.MaxBackoff
	cfg.RateLimit = c.AI.RateLimit
	cfg.CacheTTL = c.AI.CacheTTL
	cfg.MaxInputChars = c.AI.MaxInputChars
	cfg.CallTimeout = c.AI.CallTimeout
	return cfg
}

// ScoringConfig returns the scorer configuration.
func (c *Config) ScoringConfig() scoring.Config {
	cfg := scoring.DefaultConfig()
	cfg.Threshold = c.Scoring.Threshold
	for cat, sev := range c.Scoring.Weights {
		cfg.Weights[cat] = sev
	}
	return cfg
}

// ExtractOptions returns the extractor options, reading the keywords file
// when one is configured.
func (c *Config) ExtractOptions() (extract.Options, error) {
	opts := extract.Options{PhonePlans: c.Extract.PhonePlans}
	if c.Extract.KeywordsFile != "" {
		kw, err := LoadKeywords(c.Extract.KeywordsFile)
		if err != nil {
			return opts, err
		}
		opts.Keywords = kw.Terms
		opts.DisableDefaultKeywords = kw.ReplaceDefaults
	}
	return opts, nil
}

// PipelineConfig returns the orchestrator configuration with a freshly built
// extractor and scorer.
func (c *Config) PipelineConfig() (engine.Config, error) {
	opts, err := c.ExtractOptions()
	if err != nil {
		return engine.Config{}, err
	}
	ex, err := extract.New(opts)
	if err != nil {
		return engine.Config{}, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	sc, err := scoring.New(c.ScoringConfig())
	if err != nil {
		return engine.Config{}, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	return engine.Config{
		Extractor:               ex,
		Scorer:                  sc,
		Workers:                 c.Pipeline.Workers,
		DocumentTimeout:         c.Pipeline.DocumentTimeout,
		AIEnabled:               c.AI.Enabled,
		ClassifyWithoutFindings: c.AI.ClassifyWithoutFindings,
		Budget: service.Budget{
			MaxChars: c.AI.MaxInputChars,
			Timeout:  c.AI.CallTimeout,
		},
	}, nil
}

func loadWeights(raw map[string]string) (map[model.Category]model.Severity, error) {
	weights := make(map[model.Category]model.Severity, len(raw))
	for name, label := range raw {
		cat, err := model.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("%w: scoring.weights: %w", common.ErrInvalidConfig, err)
		}
		sev, err := model.ParseSeverity(label)
		if err != nil {
			return nil, fmt.Errorf("%w: scoring.weights.%s: %w", common.ErrInvalidConfig, name, err)
		}
		weights[cat] = sev
	}
	return weights, nil
}

func providerAPIKey(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return os.Getenv("GEMINI_API_KEY")
	}
}

// parseFlag accepts the truthy spellings used by the crawler's environment.
func parseFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
