// Package extract implements the local PII extractor: deterministic,
// structurally validated pattern matching over document text.
package extract

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/model"
)

// Options configures an Extractor.
type Options struct {
	// PhonePlans names the numbering plans to recognise ("in", "us", "e164").
	PhonePlans []string
	// Keywords extends DefaultKeywords for generic-sensitive matches.
	Keywords []string
	// DisableDefaultKeywords drops DefaultKeywords, leaving only Keywords.
	DisableDefaultKeywords bool
}

// DefaultOptions recognises Indian mobile numbers and the default keyword list.
func DefaultOptions() Options {
	return Options{PhonePlans: []string{"in"}}
}

// match is a detector hit in byte offsets.
type match struct {
	category   model.Category
	start      int
	end        int
	confidence float64
}

type detector func(text string, emit func(match))

// Extractor finds PII in text. It holds only immutable compiled state and is
// safe for concurrent use.
type Extractor struct {
	detectors []detector
}

// New builds an Extractor from options.
func New(opts Options) (*Extractor, error) {
	plans, err := LookupPhonePlans(opts.PhonePlans)
	if err != nil {
		return nil, err
	}

	terms := slices.Clone(opts.Keywords)
	if !opts.DisableDefaultKeywords {
		terms = append(terms, DefaultKeywords...)
	}

	return &Extractor{
		detectors: []detector{
			detectAadhaar,
			detectPAN,
			detectCreditCards,
			detectIFSC,
			detectBankAccounts,
			detectPhones(plans),
			detectEmails,
			detectPassport,
			detectGSTIN,
			detectVoterID,
			detectLicence,
			detectIMEI,
			newKeywordMatcher(terms).detect,
		},
	}, nil
}

var defaultExtractor = func() *Extractor {
	e, err := New(DefaultOptions())
	if err != nil {
		panic(err)
	}
	return e
}()

// Extract runs the default extractor over text.
func Extract(text string) ([]model.Finding, error) {
	return defaultExtractor.Extract(text)
}

// Extract returns every finding in text, sorted by offset. An empty result is
// not an error; undecodable text is reported as common.ErrExtraction.
func (e *Extractor) Extract(text string) ([]model.Finding, error) {
	if err := Validate(text); err != nil {
		return nil, err
	}

	type key struct {
		category model.Category
		start    int
	}
	best := make(map[key]match)
	emit := func(m match) {
		if m.end <= m.start {
			return
		}
		k := key{m.category, m.start}
		cur, ok := best[k]
		if !ok || m.end > cur.end || (m.end == cur.end && m.confidence > cur.confidence) {
			best[k] = m
		}
	}
	for _, d := range e.detectors {
		d(text, emit)
	}
	if len(best) == 0 {
		return []model.Finding{}, nil
	}

	matches := make([]match, 0, len(best))
	for _, m := range best {
		matches = append(matches, m)
	}
	slices.SortFunc(matches, func(a, b match) int {
		return cmp.Or(
			cmp.Compare(a.start, b.start),
			cmp.Compare(a.category, b.category),
			cmp.Compare(a.end, b.end),
		)
	})

	toRune := runeOffsets(text, matches)
	findings := make([]model.Finding, 0, len(matches))
	for _, m := range matches {
		findings = append(findings, model.Finding{
			Category:   m.category,
			Value:      text[m.start:m.end],
			Method:     model.MethodLocalRegex,
			Start:      toRune(m.start),
			End:        toRune(m.end),
			Confidence: m.confidence,
		})
	}
	return findings, nil
}

// Validate rejects text that cannot be treated as a decoded document.
func Validate(text string) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: text is not valid UTF-8", common.ErrExtraction)
	}
	if strings.IndexByte(text, 0) >= 0 {
		return fmt.Errorf("%w: text contains NUL bytes", common.ErrExtraction)
	}
	return nil
}

// runeOffsets returns a converter from byte offsets to character offsets for
// the boundaries of matches.
func runeOffsets(text string, matches []match) func(int) int {
	ascii := true
	for i := 0; i < len(text); i++ {
		if text[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return func(b int) int { return b }
	}

	offsets := make([]int, 0, 2*len(matches))
	for _, m := range matches {
		offsets = append(offsets, m.start, m.end)
	}
	slices.Sort(offsets)
	offsets = slices.Compact(offsets)

	index := make(map[int]int, len(offsets))
	runes, pos := 0, 0
	for _, off := range offsets {
		runes += utf8.RuneCountInString(text[pos:off])
		pos = off
		index[off] = runes
	}
	return func(b int) int { return index[b] }
}
