package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/testutil/leaks"
)

func TestSetupTestDBWithBuilder(t *testing.T) {
	db := SetupTestDBWithBuilder(t, func(b leaks.Builder) leaks.Builder {
		return b.WithFixture(leaks.FixtureMixed).WithRediscovery(1, "https://mirror.example/pan")
	})
	ctx := context.Background()

	require.Len(t, db.Records, 5)
	stats, err := db.Storage.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalRecords)
	assert.Equal(t, 1, stats.DegradedRecords)
	assert.Equal(t, 1, stats.ByOutcome[model.OutcomeDegradedPersisted])

	pan := db.MustLookup(db.Records[1].Fingerprint)
	assert.Equal(t, 2, pan.SightingCount)
	assert.ElementsMatch(t, []string{"https://paste.example/pan", "https://mirror.example/pan"}, pan.Sources)

	history, err := db.Storage.History(ctx, pan.Fingerprint)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, RunID, history[0].RunID)
}
