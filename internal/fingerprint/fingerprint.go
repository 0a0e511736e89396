// Package fingerprint computes the content-addressed dedup key of a document.
package fingerprint

import (
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"lukechampine.com/blake3"

	"github.com/decimal-labs/leakwatch/internal/model"
)

var folder = cases.Fold()

// Normalize canonicalises text so that trivial reformatting does not change
// the fingerprint: compatibility composition, Unicode case folding, and every
// run of whitespace collapsed to a single space with the ends trimmed.
func Normalize(text string) string {
	folded := folder.String(norm.NFKC.String(text))

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// Compute returns the hex BLAKE3-256 digest of the normalized text.
func Compute(text string) model.Fingerprint {
	sum := blake3.Sum256([]byte(Normalize(text)))
	return model.Fingerprint(hex.EncodeToString(sum[:]))
}

// Valid reports whether fp looks like a digest produced by Compute.
func Valid(fp model.Fingerprint) bool {
	if len(fp) != 64 {
		return false
	}
	_, err := hex.DecodeString(string(fp))
	return err == nil
}
