package llm

import (
	"fmt"
	"strings"
)

var providers = map[string]func(Config) (Client, error){
	"gemini":    newGeminiClient,
	"openai":    newOpenAIClient,
	"anthropic": newAnthropicClient,
}

// NewClient builds the provider client named by cfg.Provider.
func NewClient(cfg Config) (Client, error) {
	build, ok := providers[strings.ToLower(cfg.Provider)]
	if !ok {
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
	return build(cfg)
}
