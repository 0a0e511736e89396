package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/service"
)

// Classifier implements service.Classifier on top of a provider Client. It is
// safe for concurrent use; the only shared state is the HTTP connection pool,
// the rate limiter and the result cache.
type Classifier struct {
	client      Client
	cache       *resultCache
	logger      *slog.Logger
	rateLimiter *rateLimiter
	provider    string
	budget      service.Budget
	retryOpts   service.RetryOptions
}

// NewClassifier creates a classifier for the configured provider.
func NewClassifier(cfg Config, logger *slog.Logger) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return NewClassifierWithClient(client, cfg, logger), nil
}

// NewClassifierWithClient wraps an existing Client.
func NewClassifierWithClient(client Client, cfg Config, logger *slog.Logger) *Classifier {
	defaults := DefaultConfig(cfg.Provider)
	if cfg.MaxInputChars == 0 {
		cfg.MaxInputChars = defaults.MaxInputChars
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = defaults.CallTimeout
	}

	return &Classifier{
		client:      client,
		cache:       newResultCache(cfg.CacheTTL),
		logger:      common.OrDefault(logger),
		rateLimiter: newRateLimiter(cfg.RateLimit),
		provider:    strings.ToLower(cfg.Provider),
		budget:      service.Budget{MaxChars: cfg.MaxInputChars, Timeout: cfg.CallTimeout},
		retryOpts: service.RetryOptions{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.InitialBackoff,
			MaxDelay:     cfg.MaxBackoff,
			Multiplier:   2.0,
			Jitter:       0.5,
		}.WithDefaults(),
	}
}

// Close releases background resources.
func (c *Classifier) Close() {
	c.cache.close()
}

// Classify submits one document. Failures are reported as exactly one of
// common.ErrClassifierTimeout, common.ErrClassifierRateLimited or
// common.ErrClassifierUnavailable; cancellation of ctx itself is returned as
// the context error.
func (c *Classifier) Classify(ctx context.Context, req service.ClassifyRequest) (*model.ClassificationResult, error) {
	if cached, ok := c.cache.get(req.Fingerprint); ok {
		c.logger.Debug("classification cache hit", "fingerprint", req.Fingerprint.Short())
		return cached, nil
	}

	budget := req.Budget
	if budget.MaxChars == 0 {
		budget.MaxChars = c.budget.MaxChars
	}
	if budget.Timeout <= 0 {
		budget.Timeout = c.budget.Timeout
	}

	text, truncated := Truncate(req.Text, budget.MaxChars)
	prompt := buildPrompt(text, req.Findings, truncated)

	callCtx, cancel := context.WithTimeout(ctx, budget.Timeout)
	defer cancel()

	start := time.Now()
	var resp ClassificationResponse
	err := common.WithRetry(callCtx, func() error {
		if err := c.rateLimiter.wait(callCtx); err != nil {
			return err
		}
		r, err := c.client.Classify(callCtx, prompt)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, c.retryOpts)
	if err != nil {
		mapped := c.mapError(ctx, callCtx, err)
		c.logger.Warn("classification failed",
			"fingerprint", req.Fingerprint.Short(),
			"provider", c.provider,
			"elapsed", time.Since(start),
			"error", mapped)
		return nil, mapped
	}

	result := toResult(resp, c.provider, truncated)
	c.cache.set(req.Fingerprint, result)

	c.logger.Debug("classified document",
		"fingerprint", req.Fingerprint.Short(),
		"severity", result.Severity,
		"confidence", result.Confidence,
		"elapsed", time.Since(start))
	return result, nil
}

// mapError reduces a retry-loop error to the classifier taxonomy.
func (c *Classifier) mapError(parent, call context.Context, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("classification aborted: %w", parent.Err())
	}
	switch {
	case errors.Is(err, common.ErrRateLimit):
		return fmt.Errorf("%w: %v", common.ErrClassifierRateLimited, err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(call.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", common.ErrClassifierTimeout, err)
	default:
		return fmt.Errorf("%w: %v", common.ErrClassifierUnavailable, err)
	}
}

// toResult maps a provider response onto the domain type. Unknown category
// labels are dropped; an unknown severity label becomes low so that it can
// never raise a verdict.
func toResult(resp ClassificationResponse, provider string, truncated bool) *model.ClassificationResult {
	severity, err := model.ParseSeverity(resp.Severity)
	if err != nil {
		severity = model.SeverityLow
	}

	result := &model.ClassificationResult{
		LeakDetected: resp.LeakDetected,
		Severity:     severity,
		Confidence:   resp.Confidence,
		Rationale:    strings.TrimSpace(resp.Rationale),
		Provider:     provider,
		Truncated:    truncated,
	}

	seen := make(map[model.Category]bool)
	for _, label := range resp.Categories {
		if cat, err := model.ParseCategory(label); err == nil {
			seen[cat] = true
		}
	}
	for label, values := range resp.Entities {
		cat, err := model.ParseCategory(label)
		if err != nil {
			continue
		}
		for _, v := range values {
			if v = strings.TrimSpace(v); v == "" {
				continue
			}
			if result.Entities == nil {
				result.Entities = make(map[model.Category][]string)
			}
			result.Entities[cat] = append(result.Entities[cat], v)
			seen[cat] = true
		}
	}
	for _, cat := range model.AllCategories {
		if seen[cat] {
			result.Categories = append(result.Categories, cat)
		}
	}
	return result
}
