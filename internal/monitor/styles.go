package monitor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/vibesense/phmwatch/internal/alerts"
	"github.com/vibesense/phmwatch/internal/realtime"
)

// Dashboard color palette
const (
	ColorDarkBg    = lipgloss.Color("#0A0A0F")
	ColorSurfaceBg = lipgloss.Color("#12121A")
	ColorBorder    = lipgloss.Color("#2A2A4A")

	// Semantic colors
	ColorHealthy  = lipgloss.Color("#39FF14")
	ColorWarning  = lipgloss.Color("#FFAA00")
	ColorCritical = lipgloss.Color("#FF0055")

	// Text colors
	ColorTextPrimary   = lipgloss.Color("#FFFFFF")
	ColorTextSecondary = lipgloss.Color("#B4B4D0")
	ColorTextMuted     = lipgloss.Color("#6B6B8D")

	ColorAccent    = lipgloss.Color("#FF2E97")
	ColorAccentDim = lipgloss.Color("#BF40FF")

	ColorGraph = lipgloss.Color("#00FFFF")
)

// Base styles for the dashboard
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Background(ColorSurfaceBg).
			Bold(true).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Padding(0, 1)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1).
			MarginRight(1)

	CardSelectedStyle = CardStyle.
				BorderForeground(ColorAccent)

	FeatureNameStyle = lipgloss.NewStyle().
				Foreground(ColorTextPrimary).
				Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(ColorHealthy)

	NoticeErrorStyle = lipgloss.NewStyle().
				Foreground(ColorCritical)
)

// Status indicator glyphs
const (
	StatusGlyphConnected    = "◉"
	StatusGlyphConnecting   = "◐"
	StatusGlyphDisconnected = "◌"
	StatusGlyphFailed       = "✗"
)

// StatusColor returns the indicator color for a connection status.
func StatusColor(s realtime.Status) lipgloss.Color {
	switch s {
	case realtime.StatusConnected:
		return ColorHealthy
	case realtime.StatusConnecting, realtime.StatusReconnecting:
		return ColorWarning
	case realtime.StatusError, realtime.StatusFailed:
		return ColorCritical
	default:
		return ColorTextMuted
	}
}

// StatusGlyph returns the indicator character for a connection status.
func StatusGlyph(s realtime.Status) string {
	switch s {
	case realtime.StatusConnected:
		return StatusGlyphConnected
	case realtime.StatusConnecting, realtime.StatusReconnecting:
		return StatusGlyphConnecting
	case realtime.StatusError, realtime.StatusFailed:
		return StatusGlyphFailed
	default:
		return StatusGlyphDisconnected
	}
}

// SeverityColor returns the color for an alert severity.
func SeverityColor(severity string) lipgloss.Color {
	switch strings.ToLower(severity) {
	case alerts.SeverityCritical:
		return ColorCritical
	case alerts.SeverityWarning:
		return ColorWarning
	case alerts.SeverityInfo:
		return ColorGraph
	default:
		return ColorTextSecondary
	}
}

// SeverityStyle returns a bold style colored for the severity.
func SeverityStyle(severity string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(SeverityColor(severity)).Bold(true)
}

// SectionHeader renders a section header with the title on the left and value on the right.
// Format: ╭─ Title ────────────────────────────────────── Value ╮
func SectionHeader(title, value string, width int) string {
	if width < 10 {
		width = 10
	}

	leftWidth := 3 + lipgloss.Width(title) + 1
	rightWidth := 1 + lipgloss.Width(value) + 2

	fillWidth := width - leftWidth - rightWidth
	if fillWidth < 1 {
		fillWidth = 1
	}
	middle := strings.Repeat("─", fillWidth)

	borderStyle := lipgloss.NewStyle().Foreground(ColorBorder)
	titleStyle := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(ColorGraph).Bold(true)

	return borderStyle.Render("╭─ ") +
		titleStyle.Render(title) +
		borderStyle.Render(" "+middle+" ") +
		valueStyle.Render(value) +
		borderStyle.Render(" ╮")
}

// SectionFooter renders the bottom border of a section.
func SectionFooter(width int) string {
	if width < 2 {
		width = 2
	}
	middle := strings.Repeat("─", width-2)
	return lipgloss.NewStyle().Foreground(ColorBorder).Render("╰" + middle + "╯")
}

// SectionContentLine renders a content line with left and right borders, padded to width.
func SectionContentLine(content string, width int) string {
	if width < 4 {
		width = 4
	}

	borderStyle := lipgloss.NewStyle().Foreground(ColorBorder)
	padding := width - 4 - lipgloss.Width(content)
	if padding < 0 {
		padding = 0
	}

	return borderStyle.Render("│") + " " + content + strings.Repeat(" ", padding) + " " + borderStyle.Render("│")
}
