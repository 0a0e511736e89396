package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// geminiClient implements the Client interface for the Gemini API through
// the generated Generative Language service.
type geminiClient struct {
	service   *generativelanguage.Service
	model     string
	maxTokens int64
}

// newGeminiClient creates a new Gemini API client.
func newGeminiClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	maxTokens := int64(defaultMaxTokens(cfg.MaxTokens))

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}

	// The service holds its own pooled transport; request deadlines come from
	// the per-call context.
	svc, err := generativelanguage.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini service: %w", err)
	}

	return &geminiClient{service: svc, model: model, maxTokens: maxTokens}, nil
}

// Classify sends a generateContent request to Gemini.
func (c *geminiClient) Classify(ctx context.Context, prompt string) (ClassificationResponse, error) {
	req := &generativelanguage.GenerateContentRequest{
		SystemInstruction: &generativelanguage.Content{
			Parts: []*generativelanguage.Part{{Text: systemPrompt}},
		},
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: []*generativelanguage.Part{{Text: prompt}},
		}},
		GenerationConfig: &generativelanguage.GenerationConfig{
			ResponseMimeType: "application/json",
			MaxOutputTokens:  c.maxTokens,
		},
	}

	resp, err := c.service.Models.GenerateContent(c.model, req).Context(ctx).Do()
	if err != nil {
		return ClassificationResponse{}, geminiError(err)
	}

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		var text strings.Builder
		for _, part := range candidate.Content.Parts {
			text.WriteString(part.Text)
		}
		if text.Len() > 0 {
			return parseClassification(text.String())
		}
	}
	return ClassificationResponse{}, errEmptyResponse
}

// geminiError maps googleapi errors onto the retry taxonomy.
func geminiError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("request failed: %w", err)
	}
	header := apiErr.Header
	if header == nil {
		header = http.Header{}
	}
	return statusError("gemini", apiErr.Code, header, []byte(apiErr.Message))
}
