package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/vibesense/phmwatch/internal/alerts"
	"github.com/vibesense/phmwatch/internal/realtime"
	"github.com/vibesense/phmwatch/internal/series"
)

const (
	defaultWidth  = 80
	detailHeight  = 4
	maxAlertLines = 8
)

// renderDashboard renders the complete dashboard view.
func (m Model) renderDashboard() string {
	window := m.store.CurrentWindow()

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderFeatureCards(window))
	b.WriteString("\n")
	b.WriteString(m.renderDetail(window))
	b.WriteString("\n\n")
	b.WriteString(m.renderAlerts())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the title bar with sensor and connection state.
func (m Model) renderHeader() string {
	status := m.store.ConnectionStatus()

	title := lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Render("phmwatch")

	glyph := StatusGlyph(status)
	if status == realtime.StatusConnecting || status == realtime.StatusReconnecting {
		glyph = m.spinner.View()
	}
	indicator := lipgloss.NewStyle().Foreground(StatusColor(status)).Render(glyph + " " + string(status))

	sensor := m.store.Sensor()
	if sensor == "" {
		sensor = m.sensor
	}

	parts := []string{
		"sensor " + sensor,
		indicator,
	}
	if attempts := m.store.Attempts(); attempts > 0 {
		parts = append(parts, fmt.Sprintf("attempt %d", attempts))
	}
	start, end := m.store.WindowBounds()
	parts = append(parts, fmt.Sprintf("%d samples | window %d-%d", m.store.FeatureCount(), start, end))

	stats := lipgloss.NewStyle().
		Foreground(ColorTextSecondary).
		Render(" | " + strings.Join(parts, " | "))

	header := HeaderStyle.Render(title + stats)
	if status == realtime.StatusError || status == realtime.StatusFailed {
		if err := m.store.LastError(); err != nil {
			header += "\n" + NoticeErrorStyle.Render("  "+errorSummary(err))
		} else if status == realtime.StatusFailed {
			header += "\n" + NoticeErrorStyle.Render("  gave up reconnecting, press r to retry")
		}
	}
	return header
}

// renderFeatureCards renders one card per feature channel.
func (m Model) renderFeatureCards(window series.Snapshot) string {
	cardWidth := m.calculateCardWidth()

	cards := make([]string, 0, len(series.FeatureChannels))
	for i, name := range series.FeatureChannels {
		cards = append(cards, m.renderCard(name, window.Channel(name), cardWidth, i == m.selected))
	}
	return m.layoutCards(cards, cardWidth)
}

// renderCard renders a single feature card.
func (m Model) renderCard(name string, data []float64, width int, selected bool) string {
	inner := width - 4
	if inner < 8 {
		inner = 8
	}

	value := m.store.FormatFeature(name)
	label := FeatureNameStyle.Render(name)
	gap := inner - lipgloss.Width(label) - lipgloss.Width(value)
	if gap < 1 {
		gap = 1
	}
	top := label + strings.Repeat(" ", gap) + ValueStyle.Render(value)

	spark := RenderColoredMiniSparkline(data, inner, ColorGraph)
	if spark == "" {
		spark = MutedStyle.Render("waiting for data")
	}

	style := CardStyle
	if selected {
		style = CardSelectedStyle
	}
	return style.Width(width - 2).Render(top + "\n" + spark)
}

// calculateCardWidth determines the card width based on terminal width.
func (m Model) calculateCardWidth() int {
	switch {
	case m.width == 0:
		return 28
	case m.width >= BreakpointStandard:
		return 28
	case m.width >= BreakpointCompact:
		return 26
	default:
		return m.width - 2
	}
}

// layoutCards arranges cards in rows based on terminal width.
func (m Model) layoutCards(cards []string, cardWidth int) string {
	if len(cards) == 0 {
		return ""
	}

	cardsPerRow := 1
	if m.width > 0 {
		cardsPerRow = m.width / (cardWidth + 1)
		if cardsPerRow < 1 {
			cardsPerRow = 1
		}
	} else {
		cardsPerRow = 2
	}

	var rows []string
	for i := 0; i < len(cards); i += cardsPerRow {
		end := i + cardsPerRow
		if end > len(cards) {
			end = len(cards)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[i:end]...))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderDetail renders a taller graph of the selected feature.
func (m Model) renderDetail(window series.Snapshot) string {
	width := m.width
	if width == 0 {
		width = defaultWidth
	}

	name := series.FeatureChannels[m.selected]
	lines := []string{SectionHeader(name, m.store.FormatFeature(name), width)}

	graph := RenderBrailleSparkline(window.Channel(name), width-4, detailHeight, ColorGraph)
	if graph == "" {
		lines = append(lines, SectionContentLine(MutedStyle.Render("no samples in window"), width))
	} else {
		for _, line := range strings.Split(graph, "\n") {
			lines = append(lines, SectionContentLine(line, width))
		}
	}
	lines = append(lines, SectionFooter(width))

	return strings.Join(lines, "\n")
}

// renderAlerts renders the alert ledger, newest first.
func (m Model) renderAlerts() string {
	list := m.store.Alerts()

	title := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true).Render("Alerts")
	lines := []string{title + LabelStyle.Render(fmt.Sprintf(" (%d)", len(list)))}

	if len(list) == 0 {
		lines = append(lines, MutedStyle.Render("  no alerts"))
		return strings.Join(lines, "\n")
	}

	for i, a := range list {
		if i == maxAlertLines {
			lines = append(lines, MutedStyle.Render(fmt.Sprintf("  ... %d more", len(list)-maxAlertLines)))
			break
		}
		lines = append(lines, "  "+formatAlert(a))
	}
	return strings.Join(lines, "\n")
}

// formatAlert renders one alert line.
func formatAlert(a alerts.Alert) string {
	severity := a.Severity
	if severity == "" {
		severity = "alert"
	}

	var b strings.Builder
	b.WriteString(SeverityStyle(a.Severity).Render(fmt.Sprintf("%-8s", strings.ToUpper(severity))))
	b.WriteString(" ")
	if !a.ReceivedAt.IsZero() {
		b.WriteString(MutedStyle.Render(a.ReceivedAt.Format("15:04:05")))
		b.WriteString(" ")
	}
	b.WriteString(ValueStyle.Render(a.Message))
	if a.FeatureName != "" && a.CurrentValue != nil {
		detail := fmt.Sprintf(" %s=%s", a.FeatureName, realtime.FormatValue(*a.CurrentValue, true))
		if a.ThresholdValue != nil {
			detail += " > " + realtime.FormatValue(*a.ThresholdValue, true)
		}
		b.WriteString(LabelStyle.Render(detail))
	}
	b.WriteString(MutedStyle.Render(" #" + a.ID))
	return b.String()
}

// renderFooter renders the status line and keyboard hints.
func (m Model) renderFooter() string {
	hints := []string{
		"q quit",
		"a ack",
		"c clear",
		"p ping",
		"r reconnect",
		"d disconnect",
		"←→ feature",
		"? help",
	}

	footer := FooterStyle.Render(strings.Join(hints, " | "))
	if m.notice == "" {
		return footer
	}

	style := NoticeStyle
	if m.noticeErr {
		style = NoticeErrorStyle
	}
	return style.Padding(0, 1).Render(m.notice) + "\n" + footer
}
