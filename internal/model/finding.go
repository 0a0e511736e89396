package model

import "strings"

// Method records which layer produced a Finding.
type Method string

// Extraction methods.
const (
	MethodLocalRegex Method = "local-regex"
	MethodAIAssisted Method = "ai-assisted"
)

// Finding is a single extracted PII instance. Start and End are character
// (rune) offsets into the source text, End exclusive.
type Finding struct {
	Category   Category `json:"category" yaml:"category"`
	Value      string   `json:"value" yaml:"value"`
	Method     Method   `json:"method" yaml:"method"`
	Start      int      `json:"start" yaml:"start"`
	End        int      `json:"end" yaml:"end"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
}

// Overlaps reports whether two findings share at least one character.
func (f Finding) Overlaps(other Finding) bool {
	return f.Start < other.End && other.Start < f.End
}

// CategorySet returns the distinct categories present in findings, in
// AllCategories order.
func CategorySet(findings []Finding) []Category {
	seen := make(map[Category]bool, len(findings))
	for _, f := range findings {
		seen[f.Category] = true
	}
	out := make([]Category, 0, len(seen))
	for _, c := range AllCategories {
		if seen[c] {
			out = append(out, c)
		}
	}
	return out
}

// CountByCategory tallies findings per category.
func CountByCategory(findings []Finding) map[Category]int {
	counts := make(map[Category]int)
	for _, f := range findings {
		counts[f.Category]++
	}
	return counts
}

// MaskValue hides all but the last four characters of an identifier. Email
// addresses keep their domain.
func MaskValue(v string) string {
	if at := strings.LastIndexByte(v, '@'); at > 0 {
		local := []rune(v[:at])
		return string(local[:1]) + strings.Repeat("*", len(local)-1) + v[at:]
	}
	runes := []rune(v)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}
