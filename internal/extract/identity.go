package extract

import (
	"regexp"
	"strconv"

	"github.com/decimal-labs/leakwatch/internal/model"
)

// The fourth PAN character encodes the holder type.
var (
	panRe   = regexp.MustCompile(`\b[A-Z]{3}[ABCFGHJLPT][A-Z]\d{4}[A-Z]\b`)
	ifscRe  = regexp.MustCompile(`\b[A-Z]{4}0[A-Z0-9]{6}\b`)
	gstinRe = regexp.MustCompile(`\b\d{2}[A-Z]{5}\d{4}[A-Z][1-9A-Z]Z[0-9A-Z]\b`)

	passportRe = regexp.MustCompile(`\b(?i:passport(?:\s*(?:no|number|num))?)\.?\s*[:#-]?\s*([A-Z]\d{7})\b`)
	voterIDRe  = regexp.MustCompile(`\b(?i:(?:voter\s*id|epic)(?:\s*(?:no|number))?)\.?\s*[:#-]?\s*([A-Z]{3}\d{7})\b`)
	licenceRe  = regexp.MustCompile(`\b(?i:(?:driving\s*licen[cs]e|dl)(?:\s*(?:no|number))?)\.?\s*[:#-]?\s*([A-Z]{2}\d{2}[ -]?\d{11})\b`)
)

func detectPAN(text string, emit func(match)) {
	for _, loc := range panRe.FindAllStringIndex(text, -1) {
		emit(match{category: model.CategoryPAN, start: loc[0], end: loc[1], confidence: 0.9})
	}
}

func detectIFSC(text string, emit func(match)) {
	for _, loc := range ifscRe.FindAllStringIndex(text, -1) {
		emit(match{category: model.CategoryBankAccount, start: loc[0], end: loc[1], confidence: 0.9})
	}
}

func detectGSTIN(text string, emit func(match)) {
	for _, loc := range gstinRe.FindAllStringIndex(text, -1) {
		id := text[loc[0]:loc[1]]
		state, err := strconv.Atoi(id[:2])
		if err != nil || state < 1 || state > 38 {
			continue
		}
		if gstinValid(id) {
			emit(match{category: model.CategoryOtherGovID, start: loc[0], end: loc[1], confidence: 0.95})
		}
	}
}

// keywordAnchored emits the first capture group of every match of re.
func keywordAnchored(re *regexp.Regexp, category model.Category) func(string, func(match)) {
	return func(text string, emit func(match)) {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			emit(match{category: category, start: loc[2], end: loc[3], confidence: 0.7})
		}
	}
}

var (
	detectPassport = keywordAnchored(passportRe, model.CategoryPassport)
	detectVoterID  = keywordAnchored(voterIDRe, model.CategoryOtherGovID)
	detectLicence  = keywordAnchored(licenceRe, model.CategoryOtherGovID)
)
