package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/fingerprint"
	"github.com/decimal-labs/leakwatch/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrInvalidDateRange = errors.New("since must be before until")
	ErrInvalidStatus    = errors.New("invalid record status")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateFingerprint(fp model.Fingerprint) error {
	if !fingerprint.Valid(fp) {
		return fmt.Errorf("%w: malformed fingerprint %q", common.ErrInvalidInput, fp.Short())
	}
	return nil
}

func validateSighting(s model.Sighting) error {
	if err := validateFingerprint(s.Fingerprint); err != nil {
		return err
	}
	if !s.Severity.Valid() {
		return fmt.Errorf("%w: severity %d", common.ErrInvalidInput, s.Severity)
	}
	if s.SeenAt.IsZero() {
		return fmt.Errorf("%w: sighting time is required", common.ErrInvalidInput)
	}
	return nil
}

func validateStatus(status model.Status) error {
	if _, err := model.ParseStatus(string(status)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStatus, err)
	}
	return nil
}

func validateQuery(q model.SearchQuery) error {
	if q.Since != nil && q.Until != nil && q.Until.Before(*q.Since) {
		return ErrInvalidDateRange
	}
	if q.Category != "" && !q.Category.Valid() {
		return fmt.Errorf("%w: category %q", common.ErrInvalidInput, q.Category)
	}
	if q.Status != "" {
		if err := validateStatus(q.Status); err != nil {
			return err
		}
	}
	if q.MinSeverity != 0 && !q.MinSeverity.Valid() {
		return fmt.Errorf("%w: min severity %d", common.ErrInvalidInput, q.MinSeverity)
	}
	if q.MaxSeverity != 0 && !q.MaxSeverity.Valid() {
		return fmt.Errorf("%w: max severity %d", common.ErrInvalidInput, q.MaxSeverity)
	}
	if q.PageSize < 0 || q.Limit < 0 {
		return fmt.Errorf("%w: negative page size or limit", common.ErrInvalidInput)
	}
	return nil
}
