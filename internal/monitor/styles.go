package monitor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/boincwatch/pkg/guirpc"
)

// Dashboard color palette
const (
	ColorDarkBg    = lipgloss.Color("#0A0A0F")
	ColorSurfaceBg = lipgloss.Color("#12121A")
	ColorBorder    = lipgloss.Color("#2A2A4A")

	ColorHealthy  = lipgloss.Color("#39FF14")
	ColorWarning  = lipgloss.Color("#FFAA00")
	ColorCritical = lipgloss.Color("#FF0055")

	ColorTextPrimary   = lipgloss.Color("#FFFFFF")
	ColorTextSecondary = lipgloss.Color("#B4B4D0")
	ColorTextMuted     = lipgloss.Color("#6B6B8D")

	ColorAccent    = lipgloss.Color("#FF2E97")
	ColorAccentDim = lipgloss.Color("#BF40FF")

	ColorGraph = lipgloss.Color("#00FFFF")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Background(ColorSurfaceBg).
			Bold(true).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Padding(0, 1)

	HostNameStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	SelectedRowStyle = lipgloss.NewStyle().
				Foreground(ColorAccent).
				Bold(true)

	StatusWaitingStyle = lipgloss.NewStyle().
				Foreground(ColorTextSecondary)

	StatusOnlineStyle = lipgloss.NewStyle().
				Foreground(ColorHealthy)

	StatusStaleStyle = lipgloss.NewStyle().
				Foreground(ColorCritical)
)

// Status indicator glyphs
const (
	StatusWaiting = "◐"
	StatusOnline  = "◉"
	StatusStale   = "◌"
)

// WaitingSpinnerFrames animate hosts that have not reported yet.
var WaitingSpinnerFrames = []string{"◐", "◓", "◑", "◒"}

// StatusGlyph returns the styled indicator for s.
func StatusGlyph(s HostStatus, frame int) string {
	switch s {
	case StatusOnlineState:
		return StatusOnlineStyle.Render(StatusOnline)
	case StatusStaleState:
		return StatusStaleStyle.Render(StatusStale)
	default:
		return StatusWaitingStyle.Render(WaitingSpinnerFrames[frame%len(WaitingSpinnerFrames)])
	}
}

// StateLabel describes what a result is doing, combining the result state
// with its task state.
func StateLabel(r guirpc.Result) string {
	if r.State == guirpc.ResultFilesDownloaded {
		switch r.ActiveTask.ActiveTaskState {
		case guirpc.TaskExecuting:
			return "running"
		case guirpc.TaskSuspended:
			return "suspended"
		case guirpc.TaskAbortPending:
			return "aborting"
		case guirpc.TaskQuitPending:
			return "quitting"
		case guirpc.TaskCopyPending:
			return "copying"
		}
		return "ready"
	}

	switch r.State {
	case guirpc.ResultNew:
		return "new"
	case guirpc.ResultFilesDownloading:
		return "downloading"
	case guirpc.ResultComputeError:
		return "error"
	case guirpc.ResultFilesUploading:
		return "uploading"
	case guirpc.ResultFilesUploaded:
		return "ready to report"
	case guirpc.ResultAborted:
		return "aborted"
	case guirpc.ResultUploadFailed:
		return "upload failed"
	}
	return strings.ToLower(r.State.String())
}

// StateColor picks the color for a result's state label.
func StateColor(r guirpc.Result) lipgloss.Color {
	switch r.State {
	case guirpc.ResultComputeError, guirpc.ResultAborted, guirpc.ResultUploadFailed:
		return ColorCritical
	case guirpc.ResultFilesUploaded, guirpc.ResultFilesUploading:
		return ColorGraph
	}
	switch {
	case IsRunning(r):
		return ColorHealthy
	case r.ActiveTask.ActiveTaskState == guirpc.TaskSuspended:
		return ColorWarning
	}
	return ColorTextSecondary
}

// ProgressBar renders percent (0-100) as a bar width cells wide.
func ProgressBar(width int, percent float64) string {
	if width < 1 {
		width = 1
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := int(percent / 100.0 * float64(width))
	if filled > width {
		filled = width
	}

	color := ColorGraph
	if percent >= 100 {
		color = ColorHealthy
	}
	return lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("▰", filled)) +
		lipgloss.NewStyle().Foreground(ColorBorder).Render(strings.Repeat("▱", width-filled))
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

	borderStyle := lipgloss.NewStyle().Foreground(ColorBorder)
	titleStyle := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(ColorGraph).Bold(true)

	return borderStyle.Render("╭─ ") +
		titleStyle.Render(title) +
		borderStyle.Render(" "+strings.Repeat("─", fillWidth)+" ") +
		valueStyle.Render(value) +
		borderStyle.Render(" ╮")
}

// SectionFooter renders the bottom border of a section.
func SectionFooter(width int) string {
	if width < 2 {
		width = 2
	}
	return lipgloss.NewStyle().Foreground(ColorBorder).Render("╰" + strings.Repeat("─", width-2) + "╯")
}

// SectionContentLine renders content between side borders, padded to width.
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
