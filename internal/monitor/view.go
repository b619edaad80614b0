package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/boincwatch/pkg/guirpc"
)

const defaultWidth = 100

// renderDashboard renders the list view.
func (m Model) renderDashboard() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderHosts())
	if m.ShowFooter() {
		b.WriteString("\n")
		b.WriteString(m.renderFooter())
	}
	return b.String()
}

// renderHeader renders the title line with summary stats.
func (m Model) renderHeader() string {
	var updateText string
	switch since := m.SecondsSinceUpdate(); {
	case m.lastUpdate.IsZero():
		updateText = "waiting"
	case since == 0:
		updateText = "just now"
	default:
		updateText = fmt.Sprintf("%ds ago", since)
	}

	title := lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Render("boincwatch monitor")

	summary := fmt.Sprintf(" | %d hosts | %d online | %d running | last update %s",
		len(m.hostOrder), m.OnlineCount(), m.RunningCount(), updateText)
	if m.detached {
		summary += " | stream closed"
	}
	stats := lipgloss.NewStyle().Foreground(ColorTextSecondary).Render(summary)

	return HeaderStyle.Render(title + stats)
}

func (m Model) contentWidth() int {
	if m.width == 0 {
		return defaultWidth
	}
	return m.width
}

// renderHosts renders one section per host.
func (m Model) renderHosts() string {
	if len(m.hostOrder) == 0 {
		return LabelStyle.Render("No clients configured")
	}

	width := m.contentWidth()
	now := m.now()
	var sections []string
	idx := 0
	for _, name := range m.hostOrder {
		hv := m.hosts[name]
		status := hv.Status(now, m.staleAfter)

		title := StatusGlyph(status, m.spinnerFrame) + " " + name
		value := fmt.Sprintf("%d/%d running", hv.Running(), len(hv.Results))
		lines := []string{SectionHeader(title, value, width)}

		switch {
		case status == StatusWaitingState:
			lines = append(lines, SectionContentLine(MutedStyle.Render("waiting for first snapshot"), width))
		case len(hv.Results) == 0:
			lines = append(lines, SectionContentLine(MutedStyle.Render("no tasks"), width))
		}
		if status == StatusStaleState {
			lines = append(lines, SectionContentLine(
				StatusStaleStyle.Render("no update for "+formatDuration(now.Sub(hv.LastUpdate))), width))
		}

		for range hv.Results {
			lines = append(lines, SectionContentLine(m.renderRow(m.rows[idx], idx == m.selected, width-4, now), width))
			idx++
		}
		lines = append(lines, SectionFooter(width))
		sections = append(sections, strings.Join(lines, "\n"))
	}
	return strings.Join(sections, "\n")
}

// renderRow renders one result line inside a host section.
func (m Model) renderRow(r row, selected bool, width int, now time.Time) string {
	res := r.result
	marker := "  "
	nameStyle := ValueStyle
	if selected {
		marker = SelectedRowStyle.Render("▸ ")
		nameStyle = SelectedRowStyle
	}

	state := lipgloss.NewStyle().Foreground(StateColor(res)).Width(15).Render(StateLabel(res))
	percent := res.ActiveTask.FractionDone * 100

	if m.LayoutMode() == LayoutMinimal {
		nameWidth := width - 2 - 15 - 8
		if nameWidth < 8 {
			nameWidth = 8
		}
		name := nameStyle.Width(nameWidth).Render(truncateWithEllipsis(res.Name, nameWidth-1))
		return marker + name + state + fmt.Sprintf("%6.1f%%", percent)
	}

	// marker, state, bar, percent, elapsed, remaining, deadline
	fixed := 2 + 15 + 21 + 8 + 10 + 10 + 12
	nameWidth := width - fixed
	if nameWidth < 12 {
		nameWidth = 12
	}
	name := nameStyle.Width(nameWidth).Render(truncateWithEllipsis(res.Name, nameWidth-1))

	return marker + name + state +
		ProgressBar(20, percent) + " " +
		ValueStyle.Render(fmt.Sprintf("%6.1f%% ", percent)) +
		LabelStyle.Width(10).Render(formatDuration(seconds(res.ActiveTask.ElapsedTime))) +
		LabelStyle.Width(10).Render(formatDuration(Remaining(res))) +
		deadlineStyle(res, now).Render(formatDeadline(res.ReportDeadline, now))
}

// deadlineStyle warns about deadlines within a day and flags missed ones.
func deadlineStyle(r guirpc.Result, now time.Time) lipgloss.Style {
	left := r.ReportDeadline.Sub(now)
	switch {
	case r.ReportDeadline.IsZero():
		return MutedStyle
	case left <= 0:
		return lipgloss.NewStyle().Foreground(ColorCritical)
	case left < 24*time.Hour:
		return lipgloss.NewStyle().Foreground(ColorWarning)
	}
	return LabelStyle
}

// renderFooter renders the keyboard help footer.
func (m Model) renderFooter() string {
	hints := []string{
		"q quit",
		"↑↓ select",
		"tab next host",
		"enter details",
		"s sort: " + m.sortOrder.String(),
		"? help",
	}
	return FooterStyle.Render(strings.Join(hints, " | "))
}

// formatDuration renders d compactly: 45s, 5m30s, 2h05m, 3d04h.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		days := int(d.Hours()) / 24
		return fmt.Sprintf("%dd%02dh", days, int(d.Hours())%24)
	}
}

// formatDeadline renders a report deadline relative to now.
func formatDeadline(deadline, now time.Time) string {
	if deadline.IsZero() {
		return "-"
	}
	if !deadline.After(now) {
		return "overdue"
	}
	return "in " + formatDuration(deadline.Sub(now))
}

// truncateWithEllipsis shortens s to maxLen runes, ending in "…".
func truncateWithEllipsis(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen == 1 {
		return "…"
	}
	return string(runes[:maxLen-1]) + "…"
}
