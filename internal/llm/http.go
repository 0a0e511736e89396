package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/decimal-labs/leakwatch/internal/common"
)

// newHTTPClient returns a client with a pooled transport. Deadlines come from
// the request context, so there is no client-level timeout.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// endpoint is the JSON-over-HTTPS plumbing shared by the REST providers.
type endpoint struct {
	httpClient *http.Client
	provider   string
	baseURL    string
}

func newEndpoint(provider, baseURL, fallback string) endpoint {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = fallback
	}
	return endpoint{httpClient: newHTTPClient(), provider: provider, baseURL: baseURL}
}

// post sends payload to path and decodes a 200 reply into out. Non-200
// replies become statusError values.
func (e endpoint) post(ctx context.Context, path string, header http.Header, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return common.Permanent(fmt.Errorf("encode %s request: %w", e.provider, err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return common.Permanent(fmt.Errorf("build %s request: %w", e.provider, err))
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", e.provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return fmt.Errorf("read %s reply: %w", e.provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(e.provider, resp.StatusCode, resp.Header, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s reply: %w", e.provider, err)
	}
	return nil
}

const maxReplyBytes = 4 << 20

func defaultMaxTokens(n int) int {
	if n <= 0 {
		return 1024
	}
	return n
}

// statusError converts a non-200 response into an error the retry loop
// understands: 429 carries the server's Retry-After, 408 and 5xx are
// retryable, everything else is permanent.
func statusError(provider string, status int, header http.Header, body []byte) error {
	err := fmt.Errorf("%s API error (status %d): %s", provider, status, truncateBody(body))
	switch {
	case status == http.StatusTooManyRequests:
		return &common.RateLimitError{Err: err, RetryAfter: parseRetryAfter(header.Get("Retry-After"), time.Now())}
	case status == http.StatusRequestTimeout || status >= 500:
		return &common.RetryableError{Err: err, Retryable: true}
	default:
		return common.Permanent(err)
	}
}

// parseRetryAfter reads a Retry-After value in seconds or as an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := when.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

var errEmptyResponse = errors.New("empty response from model")
