package llm

import (
	"context"
	"fmt"
	"net/http"
)

const openAIBaseURL = "https://api.openai.com"

type openAIClient struct {
	endpoint
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

func newOpenAIClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &openAIClient{
		endpoint:    newEndpoint("openai", cfg.BaseURL, openAIBaseURL),
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   defaultMaxTokens(cfg.MaxTokens),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatReply struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Classify asks the chat completions endpoint for a JSON verdict.
func (c *openAIClient) Classify(ctx context.Context, prompt string) (ClassificationResponse, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	req.ResponseFormat.Type = "json_object"

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	var reply chatReply
	if err := c.post(ctx, "/v1/chat/completions", header, req, &reply); err != nil {
		return ClassificationResponse{}, err
	}
	if len(reply.Choices) == 0 || reply.Choices[0].Message.Content == "" {
		return ClassificationResponse{}, errEmptyResponse
	}
	return parseClassification(reply.Choices[0].Message.Content)
}
