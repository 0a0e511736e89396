package engine

import (
	"fmt"
	"strings"

	"github.com/h2non/filetype"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/model"
)

// sniffLen is the number of leading bytes filetype needs to match a signature.
const sniffLen = 261

// validateDocument performs the received-stage checks and returns the reason
// code for a rejected document.
func validateDocument(doc model.Document) (model.Reason, error) {
	if strings.TrimSpace(doc.Source) == "" {
		return model.ReasonInvalidDocument, fmt.Errorf("%w: document has no source identifier", common.ErrInvalidInput)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return model.ReasonInvalidDocument, fmt.Errorf("%w: document has no text", common.ErrInvalidInput)
	}
	if doc.ByteLength > 0 && doc.ByteLength != len(doc.Text) {
		return model.ReasonExtractionError, fmt.Errorf("%w: declared %d bytes, received %d",
			common.ErrExtraction, doc.ByteLength, len(doc.Text))
	}
	if doc.Binary || isBinaryPayload(doc.Text) {
		return model.ReasonExtractionError, fmt.Errorf("%w: binary payload", common.ErrExtraction)
	}
	return model.ReasonNone, nil
}

// isBinaryPayload reports whether text starts with the signature of a
// non-text file format, meaning upstream OCR or decoding was skipped.
func isBinaryPayload(text string) bool {
	head := text
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	kind, err := filetype.Match([]byte(head))
	if err != nil || kind == filetype.Unknown {
		return false
	}
	mime := kind.MIME.Value
	return !strings.HasPrefix(mime, "text/") &&
		!strings.Contains(mime, "json") &&
		!strings.Contains(mime, "xml") &&
		!strings.Contains(mime, "html")
}
