package llm

import (
	"fmt"
	"strings"
	"time"
)

// Default provider models.
const (
	DefaultGeminiModel    = "gemini-1.5-flash"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// Config holds configuration for the classification client.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL overrides the provider endpoint.
	BaseURL        string
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	CacheTTL       time.Duration
	// RateLimit is the client-side request budget per minute.
	RateLimit   int
	MaxTokens   int
	Temperature float64
	// MaxInputChars and CallTimeout are the default budget for requests that
	// do not carry their own.
	MaxInputChars int
	CallTimeout   time.Duration
}

// DefaultConfig returns defaults for the named provider.
func DefaultConfig(provider string) Config {
	return Config{
		Provider:       provider,
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		CacheTTL:       time.Hour,
		RateLimit:      60,
		MaxTokens:      1024,
		Temperature:    0.1,
		MaxInputChars:  4000,
		CallTimeout:    30 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, ok := providers[strings.ToLower(c.Provider)]; !ok {
		return fmt.Errorf("unsupported LLM provider: %q", c.Provider)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must not be negative")
	}
	if c.MaxInputChars < 0 {
		return fmt.Errorf("max input chars must not be negative")
	}
	return nil
}
