package monitor

import (
	"fmt"
	"strings"
	"time"
)

// renderDetailView renders the header, the scrollable detail pane and the
// footer.
func (m Model) renderDetailView() string {
	host, res, ok := m.Selected()
	if !ok {
		return m.renderDashboard()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(SelectedRowStyle.Render(host+" / "+res.Name) + "\n\n")
	if m.viewportReady {
		b.WriteString(m.detailViewport.View())
	} else {
		b.WriteString(m.renderDetailContent())
	}
	b.WriteString("\n")
	b.WriteString(FooterStyle.Render("esc back | ↑↓ scroll | q quit"))
	return b.String()
}

// updateDetailViewportContent refreshes the detail pane for the selected result.
func (m *Model) updateDetailViewportContent() {
	if !m.viewportReady {
		return
	}
	m.detailViewport.SetContent(m.renderDetailContent())
}

// renderDetailContent lists every field of the selected result with its
// progress history.
func (m Model) renderDetailContent() string {
	host, res, ok := m.Selected()
	if !ok {
		return ""
	}
	width := m.contentWidth()
	now := m.now()
	percent := res.ActiveTask.FractionDone * 100

	field := func(label, value string) string {
		return SectionContentLine(LabelStyle.Width(22).Render(label)+ValueStyle.Render(value), width)
	}

	lines := []string{
		SectionHeader("Task", StateLabel(res), width),
		field("Name", res.Name),
		field("Workunit", res.WUName),
		field("Project", res.ProjectURL),
		field("Platform", res.Platform),
		field("Host", host),
		field("Result state", res.State.String()),
		field("Task state", res.ActiveTask.ActiveTaskState.String()),
		SectionFooter(width),
		SectionHeader("Progress", fmt.Sprintf("%.2f%%", percent), width),
		SectionContentLine(ProgressBar(width-4, percent), width),
	}

	samples := m.history.Get(resultKey(host, res.Name), width-4)
	if len(samples) > 1 {
		lines = append(lines, SectionContentLine(RenderSparkline(samples, width-4, ColorGraph), width))
	}
	lines = append(lines,
		field("Elapsed", formatDuration(seconds(res.ActiveTask.ElapsedTime))),
		field("Remaining (est.)", formatDuration(Remaining(res))),
		field("CPU time remaining", formatDuration(seconds(res.EstimatedCPUTimeRemaining))),
		field("Final CPU time", formatDuration(seconds(res.FinalCPUTime))),
		field("Final elapsed time", formatDuration(seconds(res.FinalElapsedTime))),
		SectionFooter(width),
		SectionHeader("Deadlines", formatDeadline(res.ReportDeadline, now), width),
		field("Received", formatTimestamp(res.ReceivedTime)),
		field("Report deadline", formatTimestamp(res.ReportDeadline)),
		SectionFooter(width),
	)
	return strings.Join(lines, "\n")
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
