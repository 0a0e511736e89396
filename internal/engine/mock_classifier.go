package engine

import (
	"context"
	"sync"
	"time"

	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/service"
)

var _ service.Classifier = (*MockClassifier)(nil)

// MockClassifier is a deterministic service.Classifier for tests and dry runs.
// It returns Result (or Err) after Delay, honouring cancellation.
type MockClassifier struct {
	Err    error
	Result *model.ClassificationResult
	// Respond, when set, overrides Result and Err per request.
	Respond func(req service.ClassifyRequest) (*model.ClassificationResult, error)
	calls   []service.ClassifyRequest
	Delay   time.Duration
	mu      sync.Mutex
}

// NewMockClassifier creates a mock that returns result for every call.
func NewMockClassifier(result *model.ClassificationResult) *MockClassifier {
	return &MockClassifier{Result: result}
}

// NewFailingClassifier creates a mock that fails every call with err.
func NewFailingClassifier(err error) *MockClassifier {
	return &MockClassifier{Err: err}
}

// Classify implements service.Classifier.
func (m *MockClassifier) Classify(ctx context.Context, req service.ClassifyRequest) (*model.ClassificationResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.Respond != nil {
		return m.Respond(req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result == nil {
		return &model.ClassificationResult{Severity: model.SeverityLow}, nil
	}
	clone := *m.Result
	return &clone, nil
}

// Calls returns the requests received so far.
func (m *MockClassifier) Calls() []service.ClassifyRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]service.ClassifyRequest, len(m.calls))
	copy(out, m.calls)
	return out
}
