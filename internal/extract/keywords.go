package extract

import (
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/decimal-labs/leakwatch/internal/model"
)

// DefaultKeywords are terms that mark generic sensitive content.
var DefaultKeywords = []string{
	"password",
	"passwd",
	"api key",
	"api_key",
	"secret key",
	"private key",
	"cvv",
	"otp",
	"kyc",
	"leaked",
	"data dump",
	"database dump",
	"login credentials",
}

// keywordMatcher finds whole-word, case-insensitive occurrences of a term list.
// The Aho-Corasick automaton tells which terms occur at all; only those are
// then located.
type keywordMatcher struct {
	matcher *ahocorasick.Matcher
	terms   []string
}

func newKeywordMatcher(terms []string) *keywordMatcher {
	seen := make(map[string]bool, len(terms))
	clean := make([]string, 0, len(terms))
	for _, term := range terms {
		term = lowerASCII(strings.TrimSpace(term))
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		clean = append(clean, term)
	}
	if len(clean) == 0 {
		return nil
	}
	return &keywordMatcher{
		matcher: ahocorasick.NewStringMatcher(clean),
		terms:   clean,
	}
}

func (k *keywordMatcher) detect(text string, emit func(match)) {
	if k == nil {
		return
	}
	// ASCII-only folding keeps byte offsets aligned with text.
	lower := lowerASCII(text)
	hits := k.matcher.MatchThreadSafe([]byte(lower))
	if len(hits) == 0 {
		return
	}
	seen := make(map[int]bool, len(hits))
	for _, idx := range hits {
		if idx < 0 || idx >= len(k.terms) || seen[idx] {
			continue
		}
		seen[idx] = true
		term := k.terms[idx]
		for offset := 0; offset < len(lower); {
			pos := strings.Index(lower[offset:], term)
			if pos < 0 {
				break
			}
			start := offset + pos
			end := start + len(term)
			if (start == 0 || !isWordByte(lower[start-1])) && (end == len(lower) || !isWordByte(lower[end])) {
				emit(match{category: model.CategoryGenericSensitive, start: start, end: end, confidence: 0.6})
			}
			offset = start + 1
		}
	}
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, ch := range b {
		if ch >= 'A' && ch <= 'Z' {
			b[i] = ch + ('a' - 'A')
		}
	}
	return string(b)
}
