package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/decimal-labs/leakwatch/internal/model"
)

// PhonePlan is a country-specific numbering plan.
type PhonePlan struct {
	re *regexp.Regexp
	// valid checks the national significant number (digits only, no prefix).
	valid func(digits string) bool
	Name  string
}

var phonePlans = map[string]PhonePlan{
	"in": {
		Name: "in",
		re:   regexp.MustCompile(`(?:\+91[\s-]?|\b91[\s-]|\b0)?[6-9]\d{4}[\s-]?\d{5}\b`),
		valid: func(d string) bool {
			d = trimPrefix(d, "91", 10)
			d = trimPrefix(d, "0", 10)
			return len(d) == 10 && d[0] >= '6'
		},
	},
	"us": {
		Name: "us",
		re:   regexp.MustCompile(`(?:\+1[\s.-]?)?\(?[2-9]\d{2}\)?[\s.-]?[2-9]\d{2}[\s.-]\d{4}\b`),
		valid: func(d string) bool {
			d = trimPrefix(d, "1", 10)
			return len(d) == 10
		},
	},
	"e164": {
		Name: "e164",
		re:   regexp.MustCompile(`\+[1-9]\d{7,14}\b`),
		valid: func(d string) bool {
			return len(d) >= 8 && len(d) <= 15
		},
	},
}

// trimPrefix removes prefix from d when what remains has exactly want digits.
func trimPrefix(d, prefix string, want int) string {
	if len(d) == want+len(prefix) && strings.HasPrefix(d, prefix) {
		return d[len(prefix):]
	}
	return d
}

// LookupPhonePlans resolves plan names.
func LookupPhonePlans(names []string) ([]PhonePlan, error) {
	plans := make([]PhonePlan, 0, len(names))
	for _, name := range names {
		plan, ok := phonePlans[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown phone numbering plan %q", name)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func detectPhones(plans []PhonePlan) func(string, func(match)) {
	return func(text string, emit func(match)) {
		for _, plan := range plans {
			for _, loc := range plan.re.FindAllStringIndex(text, -1) {
				start, end := loc[0], loc[1]
				if !bounded(text, start, end) {
					continue
				}
				if !plan.valid(digitsOnly(text[start:end])) {
					continue
				}
				emit(match{category: model.CategoryPhone, start: start, end: end, confidence: 0.8})
			}
		}
	}
}

// detectEmails scans around each '@' rather than running a regex, so long
// runs of address-like characters cost one pass.
func detectEmails(text string, emit func(match)) {
	for i := 0; i < len(text); i++ {
		if text[i] != '@' {
			continue
		}
		start, end, ok := emailAround(text, i)
		if !ok {
			continue
		}
		emit(match{category: model.CategoryEmail, start: start, end: end, confidence: 0.8})
		i = end - 1
	}
}

func emailAround(text string, at int) (start, end int, ok bool) {
	start = at - 1
	for start >= 0 && isEmailLocal(text[start]) {
		start--
	}
	start++
	// local part may not start with a dot
	for start < at && text[start] == '.' {
		start++
	}
	end = at + 1
	for end < len(text) && isEmailDomain(text[end]) {
		end++
	}
	// trailing punctuation belongs to the sentence
	for end > at+1 && (text[end-1] == '.' || text[end-1] == '-') {
		end--
	}
	if start >= at || end <= at+1 {
		return 0, 0, false
	}
	domain := text[at+1 : end]
	dot := strings.LastIndexByte(domain, '.')
	if dot <= 0 || dot >= len(domain)-2 {
		return 0, 0, false
	}
	if !isAlphabetic(domain[dot+1:]) {
		return 0, 0, false
	}
	return start, end, true
}

func isEmailLocal(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || isUpper(ch) || isDigit(ch) ||
		ch == '.' || ch == '_' || ch == '%' || ch == '+' || ch == '-'
}

func isEmailDomain(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || isUpper(ch) || isDigit(ch) ||
		ch == '.' || ch == '-'
}

func isAlphabetic(value string) bool {
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if !((ch >= 'a' && ch <= 'z') || isUpper(ch)) {
			return false
		}
	}
	return len(value) > 0
}
