package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/decimal-labs/leakwatch/internal/model"
)

const systemPrompt = `You are a data leak analyst. You decide whether a document harvested from an anonymized network source exposes personally identifiable or financial information.
Respond with ONLY a JSON object, no markdown, of the form:
{
  "leak_detected": true,
  "confidence": 0.0,
  "categories": ["aadhaar", "pan", "phone", "email", "bank-account", "credit-card", "passport", "other-government-id", "generic-sensitive"],
  "entities": {"<category>": ["<exact substring from the document>"]},
  "severity": "low | medium | high | critical",
  "rationale": "one or two sentences"
}
confidence is a number between 0 and 1. Only list entities that appear verbatim in the document.`

// truncationMarker is appended to text cut down to the input budget.
const truncationMarker = "\n[truncated]"

// Truncate keeps the first maxChars characters of text. It reports whether
// anything was cut. A non-positive maxChars disables truncation.
func Truncate(text string, maxChars int) (string, bool) {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text, false
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i] + truncationMarker, true
		}
		n++
	}
	return text, false
}

// buildPrompt renders the user message for one document.
func buildPrompt(text string, findings []model.Finding, truncated bool) string {
	var b strings.Builder
	if len(findings) > 0 {
		b.WriteString("A local pattern scan already found: ")
		counts := model.CountByCategory(findings)
		parts := make([]string, 0, len(counts))
		for _, c := range model.AllCategories {
			if n := counts[c]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s x%d", c, n))
			}
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(".\n")
	}
	if truncated {
		b.WriteString("The document was truncated; judge from the visible part.\n")
	}
	b.WriteString("Document:\n<<<\n")
	b.WriteString(text)
	b.WriteString("\n>>>\n")
	return b.String()
}
