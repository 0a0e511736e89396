package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/service"
)

// fakeClient returns scripted responses and records prompts.
type fakeClient struct {
	respond func(ctx context.Context, call int) (ClassificationResponse, error)
	prompts []string
	mu      sync.Mutex
}

func (f *fakeClient) Classify(ctx context.Context, prompt string) (ClassificationResponse, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	call := len(f.prompts)
	f.mu.Unlock()
	return f.respond(ctx, call)
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func testConfig() Config {
	return Config{
		Provider:       "openai",
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		RateLimit:      6000,
		CacheTTL:       time.Minute,
		MaxInputChars:  4000,
		CallTimeout:    time.Second,
	}
}

func newTestClassifier(t *testing.T, client Client) *Classifier {
	t.Helper()
	c := NewClassifierWithClient(client, testConfig(), nil)
	t.Cleanup(c.Close)
	return c
}

func okResponse() ClassificationResponse {
	return ClassificationResponse{
		LeakDetected: true,
		Severity:     "critical",
		Confidence:   0.92,
		Rationale:    "admin credentials and national IDs",
		Categories:   []string{"Aadhaar", "email", "made-up"},
		Entities:     map[string][]string{"Banking": {"SBIN0001234"}, "Unknown": {"x"}},
	}
}

func TestClassifierClassify(t *testing.T) {
	client := &fakeClient{respond: func(context.Context, int) (ClassificationResponse, error) {
		return okResponse(), nil
	}}
	c := newTestClassifier(t, client)

	result, err := c.Classify(context.Background(), service.ClassifyRequest{
		Fingerprint: "fp-1",
		Text:        "Aadhaar 234123412346 a@b.com SBIN0001234",
		Findings:    []model.Finding{{Category: model.CategoryAadhaar}, {Category: model.CategoryEmail}},
	})
	require.NoError(t, err)

	assert.True(t, result.LeakDetected)
	assert.Equal(t, model.SeverityCritical, result.Severity)
	assert.InDelta(t, 0.92, result.Confidence, 1e-9)
	assert.Equal(t, "openai", result.Provider)
	assert.Equal(t, []model.Category{model.CategoryAadhaar, model.CategoryEmail, model.CategoryBankAccount}, result.Categories)
	assert.Equal(t, map[model.Category][]string{model.CategoryBankAccount: {"SBIN0001234"}}, result.Entities)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "aadhaar x1, email x1")
	assert.Contains(t, client.prompts[0], "Aadhaar 234123412346")
}

func TestClassifierCachesByFingerprint(t *testing.T) {
	client := &fakeClient{respond: func(context.Context, int) (ClassificationResponse, error) {
		return okResponse(), nil
	}}
	c := newTestClassifier(t, client)

	req := service.ClassifyRequest{Fingerprint: "fp-cache", Text: "same text"}
	first, err := c.Classify(context.Background(), req)
	require.NoError(t, err)
	second, err := c.Classify(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.calls())

	// Without a fingerprint nothing is cached.
	_, err = c.Classify(context.Background(), service.ClassifyRequest{Text: "same text"})
	require.NoError(t, err)
	_, err = c.Classify(context.Background(), service.ClassifyRequest{Text: "same text"})
	require.NoError(t, err)
	assert.Equal(t, 3, client.calls())
}

func TestClassifierTruncatesHeadFirst(t *testing.T) {
	client := &fakeClient{respond: func(context.Context, int) (ClassificationResponse, error) {
		return okResponse(), nil
	}}
	c := newTestClassifier(t, client)

	text := "HEAD-PART|" + strings.Repeat("tail ", 100)
	result, err := c.Classify(context.Background(), service.ClassifyRequest{
		Text:   text,
		Budget: service.Budget{MaxChars: 10},
	})
	require.NoError(t, err)
	assert.True(t, result.Truncated)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "HEAD-PART|"+truncationMarker)
	assert.NotContains(t, client.prompts[0], "tail")
}

func TestClassifierErrorTaxonomy(t *testing.T) {
	tests := []struct {
		respond   func(ctx context.Context, call int) (ClassificationResponse, error)
		want      error
		name      string
		budget    service.Budget
		wantCalls int
	}{
		{
			name: "deadline elapses",
			respond: func(ctx context.Context, _ int) (ClassificationResponse, error) {
				<-ctx.Done()
				return ClassificationResponse{}, ctx.Err()
			},
			budget:    service.Budget{Timeout: 50 * time.Millisecond},
			want:      common.ErrClassifierTimeout,
			wantCalls: 1,
		},
		{
			name: "throttled on every attempt",
			respond: func(context.Context, int) (ClassificationResponse, error) {
				return ClassificationResponse{}, &common.RateLimitError{Err: errors.New("429"), RetryAfter: time.Millisecond}
			},
			want:      common.ErrClassifierRateLimited,
			wantCalls: 3,
		},
		{
			name: "server errors exhaust retries",
			respond: func(context.Context, int) (ClassificationResponse, error) {
				return ClassificationResponse{}, &common.RetryableError{Err: errors.New("503"), Retryable: true}
			},
			want:      common.ErrClassifierUnavailable,
			wantCalls: 3,
		},
		{
			name: "permanent error is not retried",
			respond: func(context.Context, int) (ClassificationResponse, error) {
				return ClassificationResponse{}, common.Permanent(errors.New("400 bad request"))
			},
			want:      common.ErrClassifierUnavailable,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{respond: tt.respond}
			c := newTestClassifier(t, client)

			start := time.Now()
			_, err := c.Classify(context.Background(), service.ClassifyRequest{Text: "x", Budget: tt.budget})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, common.IsClassifierError(err))
			assert.Equal(t, tt.wantCalls, client.calls())
			assert.Less(t, time.Since(start), 2*time.Second)
		})
	}
}

func TestClassifierRecoversAfterTransientFailure(t *testing.T) {
	client := &fakeClient{respond: func(_ context.Context, call int) (ClassificationResponse, error) {
		if call == 1 {
			return ClassificationResponse{}, &common.RateLimitError{RetryAfter: time.Millisecond}
		}
		return okResponse(), nil
	}}
	c := newTestClassifier(t, client)

	result, err := c.Classify(context.Background(), service.ClassifyRequest{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, model.SeverityCritical, result.Severity)
	assert.Equal(t, 2, client.calls())
}

func TestClassifierCallerCancellation(t *testing.T) {
	client := &fakeClient{respond: func(context.Context, int) (ClassificationResponse, error) {
		return okResponse(), nil
	}}
	c := newTestClassifier(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Classify(ctx, service.ClassifyRequest{Text: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, common.IsClassifierError(err))
}

func TestClassifierConcurrentUse(t *testing.T) {
	client := &fakeClient{respond: func(context.Context, int) (ClassificationResponse, error) {
		return okResponse(), nil
	}}
	c := newTestClassifier(t, client)

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Classify(context.Background(), service.ClassifyRequest{
				Fingerprint: model.Fingerprint(fmt.Sprintf("fp-%d", i%5)),
				Text:        "text",
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, client.calls(), 20)
	assert.GreaterOrEqual(t, client.calls(), 5)
}

func TestToResultUnknownSeverityNeverElevates(t *testing.T) {
	result := toResult(ClassificationResponse{Severity: "apocalyptic", Confidence: 1}, "gemini", false)
	assert.Equal(t, model.SeverityLow, result.Severity)
	assert.Empty(t, result.Categories)
}

func TestTruncate(t *testing.T) {
	got, cut := Truncate("héllo wörld", 5)
	assert.True(t, cut)
	assert.Equal(t, "héllo"+truncationMarker, got)

	got, cut = Truncate("short", 10)
	assert.False(t, cut)
	assert.Equal(t, "short", got)

	got, cut = Truncate("anything", 0)
	assert.False(t, cut)
	assert.Equal(t, "anything", got)

	got, cut = Truncate("exact", 5)
	assert.False(t, cut)
	assert.Equal(t, "exact", got)
}
