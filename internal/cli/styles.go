// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/decimal-labs/leakwatch/internal/model"
)

// Palette.
var (
	accent = lipgloss.Color("#7AA2F7")
	muted  = lipgloss.Color("#666666")
	green  = lipgloss.Color("#4ECDC4")
	amber  = lipgloss.Color("#FFE66D")
	orange = lipgloss.Color("#FF9F43")
	red    = lipgloss.Color("#FF6B6B")
	alarm  = lipgloss.Color("#FF3B3B")
)

var (
	// TitleStyle renders section titles.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1)
	// SubtleStyle renders secondary text such as timestamps.
	SubtleStyle = lipgloss.NewStyle().Foreground(muted)
	// BoldStyle renders labels.
	BoldStyle = lipgloss.NewStyle().Bold(true)

	SuccessStyle = lipgloss.NewStyle().Foreground(green)
	WarningStyle = lipgloss.NewStyle().Foreground(amber)
	ErrorStyle   = lipgloss.NewStyle().Foreground(red)
	InfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1D3"))

	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).PaddingRight(2)
	TableCellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

var severityStyles = map[model.Severity]lipgloss.Style{
	model.SeverityCritical: lipgloss.NewStyle().Bold(true).Foreground(alarm),
	model.SeverityHigh:     lipgloss.NewStyle().Foreground(orange),
	model.SeverityMedium:   lipgloss.NewStyle().Foreground(amber),
	model.SeverityLow:      lipgloss.NewStyle().Foreground(green),
}

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	ShieldIcon  = "🛡️"
	RobotIcon   = "🤖"
)

// SeverityStyle returns the color for a severity level; none is muted.
func SeverityStyle(s model.Severity) lipgloss.Style {
	if style, ok := severityStyles[s]; ok {
		return style
	}
	return SubtleStyle
}

// FormatSeverity renders a severity label in its color.
func FormatSeverity(s model.Severity) string {
	return SeverityStyle(s).Render(s.String())
}

func FormatSuccess(message string) string { return SuccessStyle.Render(SuccessIcon + " " + message) }
func FormatError(message string) string   { return ErrorStyle.Render(ErrorIcon + " " + message) }
func FormatWarning(message string) string { return WarningStyle.Render(WarningIcon + " " + message) }
func FormatInfo(message string) string    { return InfoStyle.Render(InfoIcon + " " + message) }

// FormatTitle prefixes title with the shield icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(ShieldIcon + " " + title)
}
