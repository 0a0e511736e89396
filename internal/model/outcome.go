package model

import "time"

// Stage is a step in a document's processing state machine.
type Stage string

// Pipeline stages in order. StageDegraded sits between classifying and scored
// when the AI classifier failed.
const (
	StageReceived    Stage = "received"
	StageExtracted   Stage = "extracted"
	StageClassifying Stage = "classifying"
	StageDegraded    Stage = "degraded"
	StageScored      Stage = "scored"
	StageDeduped     Stage = "deduped"
	StagePersisted   Stage = "persisted"
	StageFailed      Stage = "failed"
)

// Outcome is the terminal state of a document.
type Outcome string

// Terminal outcomes.
const (
	OutcomePersisted         Outcome = "persisted"
	OutcomeDegradedPersisted Outcome = "degraded-persisted"
	OutcomeFailed            Outcome = "failed"
)

// AllOutcomes lists the terminal outcomes.
var AllOutcomes = []Outcome{OutcomePersisted, OutcomeDegradedPersisted, OutcomeFailed}

// Reason is a machine-readable explanation attached to degraded and failed outcomes.
type Reason string

// Outcome reasons.
const (
	ReasonNone                  Reason = ""
	ReasonExtractionError       Reason = "extraction_error"
	ReasonInvalidDocument       Reason = "invalid_document"
	ReasonClassifierUnavailable Reason = "classifier_unavailable"
	ReasonClassifierTimeout     Reason = "classifier_timeout"
	ReasonClassifierRateLimited Reason = "classifier_rate_limited"
	ReasonStorageError          Reason = "storage_error"
	ReasonDeadlineExceeded      Reason = "deadline_exceeded"
	ReasonCanceled              Reason = "canceled"
)

// SightingLog is an audit entry for one processed document.
type SightingLog struct {
	SeenAt      time.Time   `json:"seen_at"`
	ID          string      `json:"id"`
	RunID       string      `json:"run_id"`
	Source      string      `json:"source"`
	Fingerprint Fingerprint `json:"fingerprint"`
	Outcome     Outcome     `json:"outcome"`
	Stage       Stage       `json:"stage"`
	Reason      Reason      `json:"reason,omitempty"`
	Degraded    bool        `json:"degraded"`
}
