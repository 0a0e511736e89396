package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decimal-labs/leakwatch/internal/common"
)

const leakReply = `{"leak_detected": true, "confidence": 87, "categories": ["aadhaar"], "entities": {"aadhaar": ["234123412346"]}, "severity": "HIGH", "rationale": "national ID dump"}`

func TestNewOpenAIClient(t *testing.T) {
	_, err := newOpenAIClient(Config{})
	require.Error(t, err)

	client, err := newOpenAIClient(Config{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, client.(*openAIClient).model)
	assert.Equal(t, openAIBaseURL, client.(*openAIClient).baseURL)
}

func TestOpenAIClassify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body["model"])

		resp := map[string]any{
			"choices": []map[string]any{{
				"message": map[string]string{"role": "assistant", "content": "```json\n" + leakReply + "\n```"},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := newOpenAIClient(Config{APIKey: "test-key", Model: "gpt-test", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := client.Classify(context.Background(), "document")
	require.NoError(t, err)
	assert.True(t, resp.LeakDetected)
	assert.Equal(t, "high", resp.Severity)
	assert.InDelta(t, 0.87, resp.Confidence, 1e-9)
	assert.Equal(t, []string{"234123412346"}, resp.Entities["aadhaar"])
}

func TestOpenAIStatusMapping(t *testing.T) {
	tests := []struct {
		check  func(t *testing.T, err error)
		name   string
		header map[string]string
		status int
	}{
		{
			name:   "429 carries retry-after",
			status: http.StatusTooManyRequests,
			header: map[string]string{"Retry-After": "2"},
			check: func(t *testing.T, err error) {
				var rl *common.RateLimitError
				require.ErrorAs(t, err, &rl)
				assert.Equal(t, 2*time.Second, rl.RetryAfter)
				assert.True(t, common.IsRetryable(err))
			},
		},
		{
			name:   "503 is retryable",
			status: http.StatusServiceUnavailable,
			check: func(t *testing.T, err error) {
				assert.True(t, common.IsRetryable(err))
			},
		},
		{
			name:   "401 is permanent",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.False(t, common.IsRetryable(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			client, err := newOpenAIClient(Config{APIKey: "k", BaseURL: server.URL})
			require.NoError(t, err)

			_, err = client.Classify(context.Background(), "document")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, 7*time.Second, parseRetryAfter("7", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-3", now))
	assert.Equal(t, 30*time.Second, parseRetryAfter(now.Add(30*time.Second).Format(http.TimeFormat), now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon", now))
}
