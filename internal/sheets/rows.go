package sheets

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/decimal-labs/leakwatch/internal/model"
)

const timeLayout = "2006-01-02 15:04"

var leakHeader = []any{
	"Fingerprint",
	"Severity",
	"Status",
	"Categories",
	"Identifiers",
	"Sources",
	"Sightings",
	"First Seen",
	"Last Seen",
	"AI Enriched",
	"Degraded",
	"Rationale",
}

// prepareLeakRows renders one row per record, highest severity first and
// most recently seen first within a severity. Identifier values are masked.
func prepareLeakRows(records []*model.LeakRecord, loc *time.Location) [][]any {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b *model.LeakRecord) int {
		if a.Severity != b.Severity {
			return int(b.Severity) - int(a.Severity)
		}
		return b.LastSeen.Compare(a.LastSeen)
	})

	values := make([][]any, 0, len(sorted)+1)
	values = append(values, leakHeader)
	for _, rec := range sorted {
		categories := make([]string, 0, len(rec.Findings))
		for _, c := range rec.Categories() {
			categories = append(categories, string(c))
		}
		identifiers := make([]string, 0, len(rec.Findings))
		for _, f := range rec.Findings {
			identifiers = append(identifiers, fmt.Sprintf("%s: %s", f.Category, model.MaskValue(f.Value)))
		}
		values = append(values, []any{
			string(rec.Fingerprint),
			rec.Severity.String(),
			string(rec.Status),
			strings.Join(categories, ", "),
			strings.Join(identifiers, "\n"),
			strings.Join(rec.Sources, "\n"),
			rec.SightingCount,
			rec.FirstSeen.In(loc).Format(timeLayout),
			rec.LastSeen.In(loc).Format(timeLayout),
			rec.AIEnriched,
			rec.Degraded,
			rec.Rationale,
		})
	}
	return values
}

// prepareSummaryRows renders the aggregate counts.
func prepareSummaryRows(stats *model.Stats, exported int, generated time.Time) [][]any {
	if stats == nil {
		stats = model.NewStats()
	}
	values := [][]any{
		{"Leak Summary", generated.Format(timeLayout)},
		{},
		{"Total Records", stats.TotalRecords},
		{"Exported Records", exported},
		{"AI Enriched", stats.AIEnriched},
		{"Degraded", stats.DegradedRecords},
		{},
		{"Severity", "Records"},
	}
	for _, sev := range slices.Backward(model.AllSeverities) {
		values = append(values, []any{sev.String(), stats.BySeverity[sev]})
	}

	values = append(values, []any{}, []any{"Category", "Records"})
	for _, c := range model.AllCategories {
		if n := stats.ByCategory[c]; n > 0 {
			values = append(values, []any{string(c), n})
		}
	}

	values = append(values, []any{}, []any{"Status", "Records"})
	for _, st := range []model.Status{model.StatusNew, model.StatusReviewed, model.StatusArchived} {
		values = append(values, []any{string(st), stats.ByStatus[st]})
	}

	if len(stats.FailuresByReason) > 0 {
		values = append(values, []any{}, []any{"Failure Reason", "Documents"})
		reasons := make([]string, 0, len(stats.FailuresByReason))
		for r := range stats.FailuresByReason {
			reasons = append(reasons, string(r))
		}
		slices.Sort(reasons)
		for _, r := range reasons {
			values = append(values, []any{r, stats.FailuresByReason[model.Reason(r)]})
		}
	}
	return values
}
