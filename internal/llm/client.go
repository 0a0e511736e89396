package llm

import (
	"context"
)

// Client is one provider's wire protocol.
type Client interface {
	Classify(ctx context.Context, prompt string) (ClassificationResponse, error)
}

// ClassificationResponse is the model's answer decoded from its JSON reply.
type ClassificationResponse struct {
	Entities     map[string][]string
	Severity     string
	Rationale    string
	Categories   []string
	Confidence   float64
	LeakDetected bool
}
