package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/model"
)

func TestResultCache(t *testing.T) {
	cache := newResultCache(50 * time.Millisecond)
	defer cache.close()

	result := &model.ClassificationResult{Severity: model.SeverityHigh, Confidence: 0.9}
	cache.set("fp", result)
	cache.set("", result)

	got, ok := cache.get("fp")
	require.True(t, ok)
	assert.Equal(t, model.SeverityHigh, got.Severity)

	got.Severity = model.SeverityLow
	again, _ := cache.get("fp")
	assert.Equal(t, model.SeverityHigh, again.Severity, "callers get copies")

	_, ok = cache.get("")
	assert.False(t, ok)
	assert.Equal(t, 1, cache.size())

	time.Sleep(60 * time.Millisecond)
	_, ok = cache.get("fp")
	assert.False(t, ok)

	cache.evictExpired(time.Now())
	assert.Equal(t, 0, cache.size())
	cache.close()
}

func TestResultCache_CopiesCollections(t *testing.T) {
	cache := newResultCache(time.Minute)
	defer cache.close()

	stored := &model.ClassificationResult{
		Categories: []model.Category{model.CategoryAadhaar},
		Entities:   map[model.Category][]string{model.CategoryAadhaar: {"234123412346"}},
	}
	cache.set("fp", stored)
	stored.Categories[0] = model.CategoryEmail
	stored.Entities[model.CategoryAadhaar][0] = "changed"

	first, ok := cache.get("fp")
	require.True(t, ok)
	first.Categories[0] = model.CategoryPhone
	first.Entities[model.CategoryAadhaar][0] = "mutated"
	first.Entities[model.CategoryEmail] = []string{"a@b.com"}

	second, ok := cache.get("fp")
	require.True(t, ok)
	assert.Equal(t, []model.Category{model.CategoryAadhaar}, second.Categories)
	assert.Equal(t, map[model.Category][]string{model.CategoryAadhaar: {"234123412346"}}, second.Entities)
}

func TestRateLimiterWait(t *testing.T) {
	rl := newRateLimiter(60)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// The burst is available immediately.
	for i := 0; i < 10; i++ {
		require.NoError(t, rl.wait(ctx))
	}

	// The next token is a second away, past the deadline.
	err := rl.wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRateLimit)
	assert.False(t, common.IsRetryable(err))
}
