package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/decimal-labs/leakwatch/internal/cli"
	"github.com/decimal-labs/leakwatch/internal/model"
)

// View renders the model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader() + "\n")

	switch {
	case m.loading && len(m.records) == 0:
		b.WriteString(m.theme.Subtitle.Render("Loading leak records...") + "\n")
	case len(m.records) == 0:
		b.WriteString(m.theme.Subtitle.Render("No leak records match this query.") + "\n")
	default:
		b.WriteString(m.renderList())
	}

	if m.showDetail {
		if rec := m.selected(); rec != nil {
			var history []model.SightingLog
			if m.historyFor == rec.Fingerprint {
				history = m.history
			}
			detail := cli.RenderRecordDetail(rec, history, m.mask)
			b.WriteString(m.theme.RoundedBox.Width(max(20, m.width-4)).Render(strings.TrimRight(detail, "\n")) + "\n")
		}
	}

	b.WriteString(m.renderStatusLine() + "\n")
	b.WriteString(m.help.View(m.keymap))
	return b.String()
}

func (m Model) renderHeader() string {
	counts := map[model.Status]int{}
	for _, rec := range m.records {
		counts[rec.Status]++
	}
	title := m.theme.Title.Render(cli.ShieldIcon + " Leak triage")
	sub := m.theme.Subtitle.Render(fmt.Sprintf("%d records  %d new  %d reviewed  %d archived",
		len(m.records), counts[model.StatusNew], counts[model.StatusReviewed], counts[model.StatusArchived]))
	return title + "\n" + sub
}

func (m Model) renderList() string {
	const (
		fpWidth   = 14
		sevWidth  = 10
		stWidth   = 10
		catWidth  = 28
		seenWidth = 6
	)
	row := func(fp, sev, st, cats, seen, src string) string {
		return fmt.Sprintf("%-*s%-*s%-*s%-*s%-*s%s", fpWidth, fp, sevWidth, sev, stWidth, st, catWidth, cats, seenWidth, seen, src)
	}

	var b strings.Builder
	b.WriteString(m.theme.Header.Render(row("FINGERPRINT", "SEVERITY", "STATUS", "CATEGORIES", "SEEN", "SOURCE")) + "\n")

	end := min(len(m.records), m.offset+m.listHeight())
	srcWidth := max(10, m.width-fpWidth-sevWidth-stWidth-catWidth-seenWidth)
	for i := m.offset; i < end; i++ {
		rec := m.records[i]
		status := string(rec.Status)
		if rec.Degraded {
			status += "*"
		}
		source := ""
		if len(rec.Sources) > 0 {
			source = rec.Sources[0]
		}
		line := row(
			rec.Fingerprint.Short(),
			rec.Severity.String(),
			status,
			clip(categoryNames(rec), catWidth-1),
			fmt.Sprintf("%d", rec.SightingCount),
			clip(source, srcWidth),
		)
		if i == m.cursor {
			b.WriteString(m.theme.Selected.Render(line) + "\n")
			continue
		}
		// Color only the severity column so padding stays aligned.
		sevCell := fmt.Sprintf("%-*s", sevWidth, rec.Severity.String())
		line = line[:fpWidth] + m.theme.Severity(rec.Severity).Render(sevCell) + line[fpWidth+sevWidth:]
		b.WriteString(m.theme.Normal.Render(line) + "\n")
	}
	return b.String()
}

func (m Model) renderStatusLine() string {
	switch {
	case m.lastError != nil:
		return m.theme.StatusError.Render(cli.ErrorIcon + " " + m.lastError.Error())
	case m.flash != "":
		return m.theme.StatusInfo.Render(cli.SuccessIcon + " " + m.flash)
	}
	mask := "masked"
	if !m.mask {
		mask = "unmasked"
	}
	pos := 0
	if len(m.records) > 0 {
		pos = m.cursor + 1
	}
	return lipgloss.NewStyle().Foreground(m.theme.Muted).Render(fmt.Sprintf("%d/%d  identifiers %s", pos, len(m.records), mask))
}

func categoryNames(rec *model.LeakRecord) string {
	cats := rec.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ",")
}

func clip(s string, limit int) string {
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
