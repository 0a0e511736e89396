// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/decimal-labs/leakwatch/internal/model"
)

// Pipeline error taxonomy.
var (
	// ErrExtraction marks malformed or undecodable document text.
	ErrExtraction = errors.New("extraction error")

	// Classifier errors. All three are recoverable: the pipeline degrades to
	// a local-only verdict.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	ErrClassifierTimeout     = errors.New("classifier timeout")
	ErrClassifierRateLimited = errors.New("classifier rate limited")

	// ErrDedupConflict is an optimistic-update race on a fingerprint. It is
	// resolved by retrying inside the store and never returned to callers.
	ErrDedupConflict = errors.New("dedup conflict")

	// ErrStorage marks a persistence layer failure.
	ErrStorage = errors.New("storage error")
)

// Common application errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// IsClassifierError reports whether err is one of the recoverable classifier failures.
func IsClassifierError(err error) bool {
	return errors.Is(err, ErrClassifierUnavailable) ||
		errors.Is(err, ErrClassifierTimeout) ||
		errors.Is(err, ErrClassifierRateLimited)
}

// RateLimitError reports a throttled request. RetryAfter is the
// server-suggested delay, zero when the server gave none.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	msg := "rate limited"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", msg, e.RetryAfter)
	}
	return msg
}

// Unwrap lets errors.Is match both ErrRateLimit and the underlying cause.
func (e *RateLimitError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRateLimit}
	}
	return []error{ErrRateLimit, e.Err}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return errors.Is(err, ErrRateLimit) || errors.Is(err, context.DeadlineExceeded)
}

// StageError records the pipeline stage and reason code at which a document
// failed or degraded.
type StageError struct {
	Err    error
	Stage  model.Stage
	Reason model.Reason
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Stage, e.Reason, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with its stage and reason.
func NewStageError(stage model.Stage, reason model.Reason, err error) error {
	return &StageError{Stage: stage, Reason: reason, Err: err}
}
