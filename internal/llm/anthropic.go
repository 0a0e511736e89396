package llm

import (
	"context"
	"fmt"
	"net/http"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

type anthropicClient struct {
	endpoint
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

func newAnthropicClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &anthropicClient{
		endpoint:    newEndpoint("anthropic", cfg.BaseURL, anthropicBaseURL),
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   defaultMaxTokens(cfg.MaxTokens),
	}, nil
}

type messagesRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type messagesReply struct {
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Classify asks the messages endpoint for a JSON verdict. The 529
// overloaded status falls in the retryable 5xx range.
func (c *anthropicClient) Classify(ctx context.Context, prompt string) (ClassificationResponse, error) {
	req := messagesRequest{
		Model:       c.model,
		System:      systemPrompt,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	header := http.Header{}
	header.Set("x-api-key", c.apiKey)
	header.Set("anthropic-version", anthropicVersion)

	var reply messagesReply
	if err := c.post(ctx, "/v1/messages", header, req, &reply); err != nil {
		return ClassificationResponse{}, err
	}
	for _, block := range reply.Content {
		if (block.Type == "text" || block.Type == "") && block.Text != "" {
			return parseClassification(block.Text)
		}
	}
	return ClassificationResponse{}, errEmptyResponse
}
