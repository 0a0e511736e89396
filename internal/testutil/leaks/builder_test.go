package leaks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/decimal-labs/leakwatch/internal/model"
)

func TestBuilder(t *testing.T) {
	sightings := NewBuilder(t).
		WithRecords(3).
		WithRediscovery(0, "https://mirror.example/0").
		WithFixture(FixtureMixed).
		Build()

	assert.Len(t, sightings, 8)
	assert.Equal(t, model.SeverityHigh, sightings[0].Severity)
	assert.Equal(t, model.SeverityMedium, sightings[1].Severity)
	assert.Equal(t, BaseTime.Add(2*time.Minute), sightings[2].SeenAt)

	redisc := sightings[3]
	assert.Equal(t, sightings[0].Fingerprint, redisc.Fingerprint)
	assert.Equal(t, "https://mirror.example/0", redisc.Source)
	assert.Equal(t, sightings[0].SeenAt.Add(time.Hour), redisc.SeenAt)

	seen := map[model.Fingerprint]bool{}
	for _, s := range sightings[4:] {
		assert.False(t, seen[s.Fingerprint], "fixture fingerprints are distinct")
		seen[s.Fingerprint] = true
	}
}

func TestBuilder_RecordsContinueNumbering(t *testing.T) {
	sightings := NewBuilder(t).WithRecords(2).WithRecords(2).Build()
	sources := map[string]bool{}
	for _, s := range sightings {
		sources[s.Source] = true
	}
	assert.Len(t, sources, 4)
}
