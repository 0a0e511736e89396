package model

import "time"

// SearchQuery filters leak records. Zero values disable a filter.
type SearchQuery struct {
	Since       *time.Time
	Until       *time.Time
	Category    Category
	Source      string
	Identifier  string
	Status      Status
	Cursor      string
	MinSeverity Severity
	MaxSeverity Severity
	// PageSize bounds how many rows are fetched per round trip.
	PageSize int
	// Limit caps the total number of records yielded; zero is unbounded.
	Limit int
}

// Stats are aggregate counts exposed to read-only consumers.
type Stats struct {
	BySeverity       map[Severity]int `json:"by_severity"`
	ByCategory       map[Category]int `json:"by_category"`
	ByStatus         map[Status]int   `json:"by_status"`
	ByOutcome        map[Outcome]int  `json:"by_outcome"`
	FailuresByReason map[Reason]int   `json:"failures_by_reason"`
	TotalRecords     int              `json:"total_records"`
	DegradedRecords  int              `json:"degraded_records"`
	AIEnriched       int              `json:"ai_enriched_records"`
}

// NewStats returns Stats with all maps allocated.
func NewStats() *Stats {
	return &Stats{
		BySeverity:       make(map[Severity]int),
		ByCategory:       make(map[Category]int),
		ByStatus:         make(map[Status]int),
		ByOutcome:        make(map[Outcome]int),
		FailuresByReason: make(map[Reason]int),
	}
}
