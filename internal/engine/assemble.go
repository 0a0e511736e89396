package engine

import (
	"strings"
	"unicode/utf8"

	"github.com/decimal-labs/leakwatch/internal/model"
)

// entityFindings turns AI-reported entity values into ai-assisted findings.
// Only values that occur verbatim in the text are kept, at their first
// occurrence, and only where no local finding of the same category already
// covers that span.
func entityFindings(text string, ai *model.ClassificationResult, local []model.Finding) []model.Finding {
	if ai == nil || len(ai.Entities) == 0 {
		return nil
	}
	conf := min(max(ai.Confidence, 0), 1)

	var out []model.Finding
	for _, cat := range model.AllCategories {
		for _, value := range ai.Entities[cat] {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			idx := strings.Index(text, value)
			if idx < 0 {
				continue
			}
			start := utf8.RuneCountInString(text[:idx])
			f := model.Finding{
				Category:   cat,
				Value:      value,
				Method:     model.MethodAIAssisted,
				Start:      start,
				End:        start + utf8.RuneCountInString(value),
				Confidence: conf,
			}
			if coveredBy(f, local) || coveredBy(f, out) {
				continue
			}
			out = append(out, f)
		}
	}
	return out
}

func coveredBy(f model.Finding, existing []model.Finding) bool {
	for _, e := range existing {
		if e.Category == f.Category && e.Overlaps(f) {
			return true
		}
	}
	return false
}
