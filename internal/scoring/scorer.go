// Package scoring combines local findings and an optional AI verdict into a
// single severity.
package scoring

import (
	"fmt"
	"strings"

	"github.com/decimal-labs/leakwatch/internal/model"
)

// DefaultThreshold is the AI confidence an elevation must exceed.
const DefaultThreshold = 0.7

// DefaultWeights are the intrinsic severities of each category.
func DefaultWeights() map[model.Category]model.Severity {
	return map[model.Category]model.Severity{
		model.CategoryAadhaar:          model.SeverityHigh,
		model.CategoryPAN:              model.SeverityHigh,
		model.CategoryPassport:         model.SeverityHigh,
		model.CategoryOtherGovID:       model.SeverityHigh,
		model.CategoryBankAccount:      model.SeverityHigh,
		model.CategoryCreditCard:       model.SeverityHigh,
		model.CategoryPhone:            model.SeverityMedium,
		model.CategoryEmail:            model.SeverityMedium,
		model.CategoryGenericSensitive: model.SeverityLow,
	}
}

// Config holds the scoring policy.
type Config struct {
	Weights   map[model.Category]model.Severity
	Threshold float64
}

// DefaultConfig returns the default policy.
func DefaultConfig() Config {
	return Config{Weights: DefaultWeights(), Threshold: DefaultThreshold}
}

// Validate checks the policy values.
func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("confidence threshold %.2f outside [0,1]", c.Threshold)
	}
	for cat, sev := range c.Weights {
		if !cat.Valid() {
			return fmt.Errorf("weight for unknown category %q", cat)
		}
		if !sev.Valid() {
			return fmt.Errorf("invalid weight for category %s", cat)
		}
	}
	return nil
}

// Verdict is a severity together with how it was reached.
type Verdict struct {
	Rationale string
	Base      model.Severity
	Severity  model.Severity
	Elevated  bool
}

// Scorer applies the severity combination rule. It is immutable and safe for
// concurrent use.
type Scorer struct {
	weights   map[model.Category]model.Severity
	threshold float64
}

// New creates a Scorer. Categories missing from cfg.Weights fall back to the
// default weights.
func New(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	weights := DefaultWeights()
	for cat, sev := range cfg.Weights {
		weights[cat] = sev
	}
	return &Scorer{weights: weights, threshold: cfg.Threshold}, nil
}

// Weight returns the base severity of a category.
func (s *Scorer) Weight(c model.Category) model.Severity {
	if sev, ok := s.weights[c]; ok {
		return sev
	}
	return model.SeverityLow
}

// Score returns the severity for findings and an optional AI result.
func (s *Scorer) Score(findings []model.Finding, ai *model.ClassificationResult) model.Severity {
	return s.Evaluate(findings, ai).Severity
}

// Evaluate applies the combination rule: start from the highest base weight
// among the findings, then raise to the AI severity only when the AI
// confidence is strictly above the threshold. The AI result never lowers the
// local severity.
func (s *Scorer) Evaluate(findings []model.Finding, ai *model.ClassificationResult) Verdict {
	base := model.SeverityLow
	var top model.Category
	for _, f := range findings {
		if w := s.Weight(f.Category); top == "" || w > base {
			base = w
			top = f.Category
		}
	}

	v := Verdict{Base: base, Severity: base}
	var notes []string
	if top != "" {
		notes = append(notes, fmt.Sprintf("local %s from %s", base, top))
	} else {
		notes = append(notes, "no local findings")
	}

	if ai != nil && ai.Severity.Valid() {
		switch {
		case ai.Confidence > s.threshold && ai.Severity > base:
			v.Severity = ai.Severity
			v.Elevated = true
			notes = append(notes, fmt.Sprintf("raised to %s by AI (confidence %.2f)", ai.Severity, ai.Confidence))
		case ai.Confidence > s.threshold:
			notes = append(notes, fmt.Sprintf("AI agrees at or below %s (%s, confidence %.2f)", base, ai.Severity, ai.Confidence))
		default:
			notes = append(notes, fmt.Sprintf("AI advisory %s (confidence %.2f below %.2f)", ai.Severity, ai.Confidence, s.threshold))
		}
		if r := strings.TrimSpace(ai.Rationale); r != "" {
			notes = append(notes, "AI: "+r)
		}
	}

	v.Rationale = strings.Join(notes, "; ")
	return v
}
