package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vulnscan/vulnscan/pkg/finding"
)

// Color palette
var (
	Primary   = lipgloss.Color("#7D56F4") // Purple - brand color
	Secondary = lipgloss.Color("#00D4AA") // Cyan/Teal

	// Severity colors
	Critical = lipgloss.Color("#FF0000")
	High     = lipgloss.Color("#FF6B6B")
	Medium   = lipgloss.Color("#FFD93D")
	Low      = lipgloss.Color("#4DD0E1")
	Info     = lipgloss.Color("#E5E7EB")

	Warning = lipgloss.Color("#FFB800")
	Error   = lipgloss.Color("#FF3838")
	Muted   = lipgloss.Color("#6B7280")
)

// Pre-configured styles
var (
	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	// Module headings: [XSS] running module...
	HeadingStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true).
			MarginTop(1)

	NoteStyle = lipgloss.NewStyle().
			Foreground(Muted)

	AdaptStyle = lipgloss.NewStyle().
			Foreground(Warning)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true).
			MarginTop(1)
)

// SeverityStyle returns the style a finding line of severity s is
// rendered in. Unknown severities render like info.
func SeverityStyle(s finding.Severity) lipgloss.Style {
	base := lipgloss.NewStyle()
	switch s {
	case finding.Critical:
		return base.Foreground(Critical).Bold(true)
	case finding.High:
		return base.Foreground(High).Bold(true)
	case finding.Medium:
		return base.Foreground(Medium)
	case finding.Low:
		return base.Foreground(Low)
	default:
		return base.Foreground(Info)
	}
}
