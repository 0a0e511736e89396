package leaks

import (
	"time"

	"github.com/decimal-labs/leakwatch/internal/fingerprint"
	"github.com/decimal-labs/leakwatch/internal/model"
)

// Fixture is a predefined set of sightings.
type Fixture int

// Available fixtures.
const (
	// FixtureMixed holds one record per severity level, the critical one
	// AI-enriched and the medium one degraded.
	FixtureMixed Fixture = iota
)

func (f Fixture) sightings() Sightings {
	switch f {
	case FixtureMixed:
		return mixed()
	default:
		return nil
	}
}

func mixed() Sightings {
	at := func(hours int) time.Time { return BaseTime.Add(time.Duration(hours) * time.Hour) }
	return Sightings{
		{
			Fingerprint: fingerprint.Compute("mixed critical dump"),
			Source:      "https://forum.example/thread/1",
			SeenAt:      at(1),
			Severity:    model.SeverityCritical,
			AIEnriched:  true,
			Rationale:   "local findings: credit-card (high); elevated by AI",
			Findings: []model.Finding{
				{Category: model.CategoryCreditCard, Value: "4111111111111111", Method: model.MethodLocalRegex, Start: 5, End: 21, Confidence: 0.95},
				{Category: model.CategoryPassport, Value: "Z1234567", Method: model.MethodAIAssisted, Start: 40, End: 48, Confidence: 0.9},
			},
		},
		{
			Fingerprint: fingerprint.Compute("mixed high pan"),
			Source:      "https://paste.example/pan",
			SeenAt:      at(2),
			Severity:    model.SeverityHigh,
			Rationale:   "local findings: pan (high)",
			Findings: []model.Finding{
				{Category: model.CategoryPAN, Value: "ABCPE1234F", Method: model.MethodLocalRegex, Start: 4, End: 14, Confidence: 0.9},
			},
		},
		{
			Fingerprint: fingerprint.Compute("mixed medium phone"),
			Source:      "https://paste.example/phone",
			SeenAt:      at(3),
			Severity:    model.SeverityMedium,
			Degraded:    true,
			Rationale:   "local findings: phone (medium)",
			Findings: []model.Finding{
				{Category: model.CategoryPhone, Value: "+919876543210", Method: model.MethodLocalRegex, Start: 0, End: 13, Confidence: 0.8},
			},
		},
		{
			Fingerprint: fingerprint.Compute("mixed low keyword"),
			Source:      "https://paste.example/keyword",
			SeenAt:      at(4),
			Severity:    model.SeverityLow,
			Rationale:   "local findings: generic-sensitive (low)",
			Findings: []model.Finding{
				{Category: model.CategoryGenericSensitive, Value: "password", Method: model.MethodLocalRegex, Start: 0, End: 8, Confidence: 0.6},
			},
		},
	}
}
