package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/decimal-labs/leakwatch/internal/common"
)

// rateLimiter is a client-side token bucket shared by all callers of one
// Classifier.
type rateLimiter struct {
	limiter *rate.Limiter
}

// newRateLimiter allows requestsPerMinute with a small burst.
func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	burst := max(1, min(requestsPerMinute/6, 10))
	return &rateLimiter{
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), burst),
	}
}

// wait blocks until a token is available. A wait that cannot finish before
// the context deadline fails at once with a permanent rate limit error.
func (rl *rateLimiter) wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return common.Permanent(&common.RateLimitError{Err: fmt.Errorf("client-side rate limit: %w", err)})
	}
	return nil
}
