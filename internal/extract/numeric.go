package extract

import (
	"regexp"
	"strings"

	"github.com/decimal-labs/leakwatch/internal/model"
)

var (
	aadhaarRe     = regexp.MustCompile(`\b[2-9]\d{3}[ -]?\d{4}[ -]?\d{4}\b`)
	digitRunRe    = regexp.MustCompile(`\b\d(?:[ -]?\d)*\b`)
	bankAccountRe = regexp.MustCompile(`(?i)\b(?:account|a/c|acct)(?:\s*(?:no|number|num))?\.?\s*[:#-]?\s*(\d{9,18})\b`)
	imeiRe        = regexp.MustCompile(`(?i)\bimei(?:\s*(?:no|number))?\.?\s*[:#-]?\s*(\d{15})\b`)
)

// bounded reports whether text[start:end] is not glued to a letter, digit
// or underscore on either side.
func bounded(text string, start, end int) bool {
	if start > 0 && isWordByte(text[start-1]) {
		return false
	}
	return end >= len(text) || !isWordByte(text[end])
}

// digitGroupLen counts the digits of the group that starts at i and runs in
// direction step (+1 or -1). It returns 0 when that group is glued to a
// letter or underscore, since then it is not a free-standing number.
func digitGroupLen(text string, i, step int) int {
	n := 0
	for ; i >= 0 && i < len(text) && isDigit(text[i]); i += step {
		n++
	}
	if i >= 0 && i < len(text) && isWordByte(text[i]) {
		return 0
	}
	return n
}

// continuesCardGrouping reports whether a 4-4-4 grouped match is really
// three groups of a longer card number: a 4 digit group before it, or a
// 1 to 4 digit tail group after it, joined by the same separator.
func continuesCardGrouping(text string, start, end int) bool {
	m := text[start:end]
	if len(m) != 14 || m[4] != m[9] {
		return false
	}
	sep := m[4]
	if start >= 2 && text[start-1] == sep && digitGroupLen(text, start-2, -1) == 4 {
		return true
	}
	if end+1 < len(text) && text[end] == sep {
		if n := digitGroupLen(text, end+1, 1); n >= 1 && n <= 4 {
			return true
		}
	}
	return false
}

func detectAadhaar(text string, emit func(match)) {
	for _, loc := range aadhaarRe.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if !bounded(text, start, end) || continuesCardGrouping(text, start, end) {
			continue
		}
		if verhoeffValid(digitsOnly(text[start:end])) {
			emit(match{category: model.CategoryAadhaar, start: start, end: end, confidence: 0.95})
		}
	}
}

// Card issuer prefixes accepted ahead of the Luhn check.
var cardPrefixes = []struct {
	prefix string
	minLen int
	maxLen int
}{
	{"4", 13, 19},  // Visa
	{"51", 16, 16}, // Mastercard
	{"52", 16, 16},
	{"53", 16, 16},
	{"54", 16, 16},
	{"55", 16, 16},
	{"22", 16, 16}, // Mastercard 2-series
	{"23", 16, 16},
	{"24", 16, 16},
	{"25", 16, 16},
	{"26", 16, 16},
	{"27", 16, 16},
	{"34", 15, 15}, // Amex
	{"37", 15, 15},
	{"6011", 16, 19}, // Discover
	{"65", 16, 19},   // Discover / RuPay
	{"60", 16, 16},   // RuPay
	{"81", 16, 16},
	{"82", 16, 16},
	{"35", 16, 19}, // JCB
	{"36", 14, 19}, // Diners
	{"38", 14, 19},
}

func knownCardPrefix(digits string) bool {
	for _, p := range cardPrefixes {
		if strings.HasPrefix(digits, p.prefix) && len(digits) >= p.minLen && len(digits) <= p.maxLen {
			return true
		}
	}
	return false
}

// digitGroup is a maximal run of digits inside a separated digit run.
type digitGroup struct{ start, end int }

func splitGroups(text string, start, end int) []digitGroup {
	var groups []digitGroup
	for i := start; i < end; {
		if !isDigit(text[i]) {
			i++
			continue
		}
		j := i
		for j < end && isDigit(text[j]) {
			j++
		}
		groups = append(groups, digitGroup{i, j})
		i = j
	}
	return groups
}

// detectCreditCards scans runs of digit groups and accepts, left to right,
// the shortest span of whole groups that holds 13 to 19 digits with a known
// issuer prefix and a valid Luhn checksum. Trailing groups such as an expiry
// date or a CVV therefore neither hide the card nor join it.
func detectCreditCards(text string, emit func(match)) {
	for _, loc := range digitRunRe.FindAllStringIndex(text, -1) {
		groups := splitGroups(text, loc[0], loc[1])
		for i := 0; i < len(groups); {
			j, ok := cardSpan(text, groups, i)
			if !ok {
				i++
				continue
			}
			emit(match{category: model.CategoryCreditCard, start: groups[i].start, end: groups[j].end, confidence: 0.95})
			i = j + 1
		}
	}
}

// cardSpan returns the index of the last group of the card number starting
// at groups[i].
func cardSpan(text string, groups []digitGroup, i int) (int, bool) {
	digits := 0
	for j := i; j < len(groups); j++ {
		digits += groups[j].end - groups[j].start
		if digits > 19 {
			break
		}
		if digits < 13 {
			continue
		}
		d := digitsOnly(text[groups[i].start:groups[j].end])
		if knownCardPrefix(d) && luhnValid(d) {
			return j, true
		}
	}
	return 0, false
}

func detectBankAccounts(text string, emit func(match)) {
	for _, loc := range bankAccountRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2], loc[3]
		if !bounded(text, start, end) {
			continue
		}
		emit(match{category: model.CategoryBankAccount, start: start, end: end, confidence: 0.7})
	}
}

func detectIMEI(text string, emit func(match)) {
	for _, loc := range imeiRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2], loc[3]
		if luhnValid(text[start:end]) {
			emit(match{category: model.CategoryGenericSensitive, start: start, end: end, confidence: 0.7})
		}
	}
}
