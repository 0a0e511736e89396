package cli

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/decimal-labs/leakwatch/internal/engine"
	"github.com/decimal-labs/leakwatch/internal/model"
)

const timeLayout = "2006-01-02 15:04"

// column is one table column; style, when set, is applied after padding so
// ANSI sequences do not disturb alignment.
type column struct {
	style func(row int) lipgloss.Style
	title string
	cells []string
}

func renderTable(cols []column) string {
	if len(cols) == 0 {
		return ""
	}
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = lipgloss.Width(c.title)
		for _, cell := range c.cells {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	for i, c := range cols {
		b.WriteString(TableHeaderStyle.Render(pad(c.title, widths[i])))
	}
	b.WriteString("\n")
	for row := range cols[0].cells {
		for i, c := range cols {
			cell := pad(c.cells[row], widths[i])
			style := TableCellStyle
			if c.style != nil {
				style = c.style(row).PaddingRight(2)
			}
			b.WriteString(style.Render(cell))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func pad(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

func categoryList(rec *model.LeakRecord) string {
	cats := rec.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ",")
}

// RenderRecordTable renders one line per record.
func RenderRecordTable(records []*model.LeakRecord) string {
	if len(records) == 0 {
		return SubtleStyle.Render("No leak records match.") + "\n"
	}
	n := len(records)
	cols := []column{
		{title: "FINGERPRINT", cells: make([]string, n)},
		{title: "SEVERITY", cells: make([]string, n)},
		{title: "STATUS", cells: make([]string, n)},
		{title: "CATEGORIES", cells: make([]string, n)},
		{title: "SEEN", cells: make([]string, n)},
		{title: "LAST SEEN", cells: make([]string, n)},
		{title: "SOURCE", cells: make([]string, n)},
	}
	cols[1].style = func(row int) lipgloss.Style { return SeverityStyle(records[row].Severity) }

	for i, rec := range records {
		source := ""
		if len(rec.Sources) > 0 {
			source = truncate(rec.Sources[0], 48)
			if extra := len(rec.Sources) - 1; extra > 0 {
				source += fmt.Sprintf(" (+%d)", extra)
			}
		}
		status := string(rec.Status)
		if rec.Degraded {
			status += "*"
		}
		cols[0].cells[i] = rec.Fingerprint.Short()
		cols[1].cells[i] = rec.Severity.String()
		cols[2].cells[i] = status
		cols[3].cells[i] = categoryList(rec)
		cols[4].cells[i] = fmt.Sprintf("%d", rec.SightingCount)
		cols[5].cells[i] = rec.LastSeen.Local().Format(timeLayout)
		cols[6].cells[i] = source
	}
	return renderTable(cols)
}

// RenderRecordDetail renders a full record and its audit history.
func RenderRecordDetail(rec *model.LeakRecord, history []model.SightingLog, mask bool) string {
	if mask {
		rec = rec.Masked()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Fingerprint:"), rec.Fingerprint)
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Severity:   "), FormatSeverity(rec.Severity))
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Status:     "), rec.Status)
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("First seen: "), rec.FirstSeen.Local().Format(time.RFC3339))
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Last seen:  "), rec.LastSeen.Local().Format(time.RFC3339))
	fmt.Fprintf(&b, "%s %d\n", BoldStyle.Render("Sightings:  "), rec.SightingCount)
	flags := []string{}
	if rec.AIEnriched {
		flags = append(flags, RobotIcon+" ai-enriched")
	}
	if rec.Degraded {
		flags = append(flags, WarningStyle.Render("degraded"))
	}
	if len(flags) > 0 {
		fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Flags:      "), strings.Join(flags, "  "))
	}
	if rec.Rationale != "" {
		fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Rationale:  "), rec.Rationale)
	}

	b.WriteString("\n" + TitleStyle.Render("Sources") + "\n")
	for _, s := range rec.Sources {
		b.WriteString("  " + s + "\n")
	}

	b.WriteString("\n" + TitleStyle.Render("Findings") + "\n")
	if len(rec.Findings) == 0 {
		b.WriteString(SubtleStyle.Render("  none") + "\n")
	} else {
		n := len(rec.Findings)
		cols := []column{
			{title: "CATEGORY", cells: make([]string, n)},
			{title: "VALUE", cells: make([]string, n)},
			{title: "METHOD", cells: make([]string, n)},
			{title: "OFFSET", cells: make([]string, n)},
			{title: "CONFIDENCE", cells: make([]string, n)},
		}
		for i, f := range rec.Findings {
			cols[0].cells[i] = string(f.Category)
			cols[1].cells[i] = f.Value
			cols[2].cells[i] = string(f.Method)
			cols[3].cells[i] = fmt.Sprintf("%d-%d", f.Start, f.End)
			cols[4].cells[i] = fmt.Sprintf("%.2f", f.Confidence)
		}
		b.WriteString(renderTable(cols))
	}

	if len(history) > 0 {
		b.WriteString("\n" + TitleStyle.Render("History") + "\n")
		n := len(history)
		cols := []column{
			{title: "SEEN AT", cells: make([]string, n)},
			{title: "OUTCOME", cells: make([]string, n)},
			{title: "STAGE", cells: make([]string, n)},
			{title: "REASON", cells: make([]string, n)},
			{title: "SOURCE", cells: make([]string, n)},
		}
		for i, h := range history {
			cols[0].cells[i] = h.SeenAt.Local().Format(timeLayout)
			cols[1].cells[i] = string(h.Outcome)
			cols[2].cells[i] = string(h.Stage)
			cols[3].cells[i] = string(h.Reason)
			cols[4].cells[i] = truncate(h.Source, 60)
		}
		b.WriteString(renderTable(cols))
	}
	return b.String()
}

// RenderStats renders aggregate counts.
func RenderStats(stats *model.Stats) string {
	var b strings.Builder
	b.WriteString(FormatTitle("Leak statistics") + "\n")
	fmt.Fprintf(&b, "%s %d\n", BoldStyle.Render("Records:    "), stats.TotalRecords)
	fmt.Fprintf(&b, "%s %d\n", BoldStyle.Render("AI enriched:"), stats.AIEnriched)
	fmt.Fprintf(&b, "%s %d\n\n", BoldStyle.Render("Degraded:   "), stats.DegradedRecords)

	b.WriteString(TitleStyle.Render("By severity") + "\n")
	for _, sev := range slices.Backward(model.AllSeverities) {
		fmt.Fprintf(&b, "  %s %d\n", SeverityStyle(sev).Render(pad(sev.String(), 10)), stats.BySeverity[sev])
	}

	b.WriteString("\n" + TitleStyle.Render("By category") + "\n")
	for _, c := range model.AllCategories {
		if n := stats.ByCategory[c]; n > 0 {
			fmt.Fprintf(&b, "  %s %d\n", pad(string(c), 20), n)
		}
	}

	b.WriteString("\n" + TitleStyle.Render("By status") + "\n")
	for _, st := range []model.Status{model.StatusNew, model.StatusReviewed, model.StatusArchived} {
		fmt.Fprintf(&b, "  %s %d\n", pad(string(st), 10), stats.ByStatus[st])
	}

	if len(stats.ByOutcome) > 0 {
		b.WriteString("\n" + TitleStyle.Render("Processing outcomes") + "\n")
		for _, o := range []model.Outcome{model.OutcomePersisted, model.OutcomeDegradedPersisted, model.OutcomeFailed} {
			fmt.Fprintf(&b, "  %s %d\n", pad(string(o), 20), stats.ByOutcome[o])
		}
		writeReasons(&b, stats.FailuresByReason)
	}
	return b.String()
}

// RenderRunSummary renders the result of an ingest run.
func RenderRunSummary(s *engine.Summary) string {
	var b strings.Builder
	b.WriteString(FormatTitle("Ingest complete") + "\n")
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Run:         "), s.RunID)
	fmt.Fprintf(&b, "%s %d in %s\n", BoldStyle.Render("Processed:   "), s.Processed, s.ProcessingTime.Round(time.Millisecond))
	fmt.Fprintf(&b, "%s %d new, %d rediscovered\n", BoldStyle.Render("Records:     "), s.Created, s.Rediscovered)
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Persisted:   "), SuccessStyle.Render(fmt.Sprintf("%d", s.Persisted)))
	if s.DegradedPersist > 0 {
		fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Degraded:    "), WarningStyle.Render(fmt.Sprintf("%d", s.DegradedPersist)))
		writeReasons(&b, s.DegradedByReason)
	}
	if s.Failed > 0 {
		fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Failed:      "), ErrorStyle.Render(fmt.Sprintf("%d", s.Failed)))
		writeReasons(&b, s.FailuresByReason)
	}
	return b.String()
}

func writeReasons(b *strings.Builder, reasons map[model.Reason]int) {
	keys := make([]string, 0, len(reasons))
	for r := range reasons {
		keys = append(keys, string(r))
	}
	slices.Sort(keys)
	for _, r := range keys {
		fmt.Fprintf(b, "    %s %d\n", SubtleStyle.Render(pad(r, 24)), reasons[model.Reason(r)])
	}
}
