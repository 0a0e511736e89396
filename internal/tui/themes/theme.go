// Package themes holds the color schemes for the triage TUI.
package themes

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/decimal-labs/leakwatch/internal/model"
)

// Theme defines the visual style for the TUI.
type Theme struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Normal      lipgloss.Style
	Selected    lipgloss.Style
	Header      lipgloss.Style
	RoundedBox  lipgloss.Style
	StatusError lipgloss.Style
	StatusInfo  lipgloss.Style
	severity    map[model.Severity]lipgloss.Style
	Muted       lipgloss.Color
}

// Severity returns the style for a severity label.
func (t Theme) Severity(s model.Severity) lipgloss.Style {
	if style, ok := t.severity[s]; ok {
		return style
	}
	return lipgloss.NewStyle().Foreground(t.Muted)
}

// palette is the handful of colors a theme is derived from.
type palette struct {
	accent, onAccent, text, dim, muted, border, info lipgloss.Color
	critical, high, medium, low                      lipgloss.Color
}

func (p palette) theme() Theme {
	fg := lipgloss.NewStyle().Foreground
	return Theme{
		Title:       fg(p.text).Bold(true),
		Subtitle:    fg(p.dim),
		Normal:      fg(p.text),
		Selected:    fg(p.onAccent).Background(p.accent).Bold(true),
		Header:      fg(p.accent).Bold(true),
		RoundedBox:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.border).Padding(0, 1),
		StatusError: fg(p.critical).Bold(true),
		StatusInfo:  fg(p.info),
		Muted:       p.muted,
		severity: map[model.Severity]lipgloss.Style{
			model.SeverityCritical: fg(p.critical).Bold(true),
			model.SeverityHigh:     fg(p.high),
			model.SeverityMedium:   fg(p.medium),
			model.SeverityLow:      fg(p.low),
		},
	}
}

var (
	// Default is a neutral dark theme.
	Default = palette{
		accent: "#7c3aed", onAccent: "#fafafa", text: "#fafafa", dim: "#a3a3a3",
		muted: "#737373", border: "#404040", info: "#3b82f6",
		critical: "#ef4444", high: "#f97316", medium: "#f59e0b", low: "#10b981",
	}.theme()

	// CatppuccinMocha follows the Catppuccin Mocha palette.
	CatppuccinMocha = palette{
		accent: "#cba6f7", onAccent: "#1e1e2e", text: "#cdd6f4", dim: "#a6adc8",
		muted: "#6c7086", border: "#45475a", info: "#89dceb",
		critical: "#f38ba8", high: "#fab387", medium: "#f9e2af", low: "#a6e3a1",
	}.theme()
)

// ByName returns the named theme, falling back to Default.
func ByName(name string) Theme {
	switch name {
	case "catppuccin", "catppuccin-mocha":
		return CatppuccinMocha
	default:
		return Default
	}
}
