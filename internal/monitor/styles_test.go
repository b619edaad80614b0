package monitor

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rileyhilliard/boincwatch/pkg/guirpc"
	"github.com/stretchr/testify/assert"
)

func TestStateLabel(t *testing.T) {
	tests := []struct {
		state guirpc.ResultState
		task  guirpc.ActiveTaskState
		want  string
	}{
		{guirpc.ResultFilesDownloaded, guirpc.TaskExecuting, "running"},
		{guirpc.ResultFilesDownloaded, guirpc.TaskSuspended, "suspended"},
		{guirpc.ResultFilesDownloaded, guirpc.TaskAbortPending, "aborting"},
		{guirpc.ResultFilesDownloaded, guirpc.TaskQuitPending, "quitting"},
		{guirpc.ResultFilesDownloaded, guirpc.TaskCopyPending, "copying"},
		{guirpc.ResultFilesDownloaded, guirpc.TaskUninitialized, "ready"},
		{guirpc.ResultNew, guirpc.TaskUninitialized, "new"},
		{guirpc.ResultFilesDownloading, guirpc.TaskUninitialized, "downloading"},
		{guirpc.ResultComputeError, guirpc.TaskUninitialized, "error"},
		{guirpc.ResultFilesUploading, guirpc.TaskUninitialized, "uploading"},
		{guirpc.ResultFilesUploaded, guirpc.TaskUninitialized, "ready to report"},
		{guirpc.ResultAborted, guirpc.TaskUninitialized, "aborted"},
		{guirpc.ResultUploadFailed, guirpc.TaskUninitialized, "upload failed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, StateLabel(result("r", tt.state, tt.task, 0)))
		})
	}
}

func TestStateColor(t *testing.T) {
	assert.Equal(t, ColorHealthy, StateColor(result("r", guirpc.ResultFilesDownloaded, guirpc.TaskExecuting, 0)))
	assert.Equal(t, ColorWarning, StateColor(result("r", guirpc.ResultFilesDownloaded, guirpc.TaskSuspended, 0)))
	assert.Equal(t, ColorCritical, StateColor(result("r", guirpc.ResultComputeError, guirpc.TaskUninitialized, 0)))
	assert.Equal(t, ColorGraph, StateColor(result("r", guirpc.ResultFilesUploaded, guirpc.TaskUninitialized, 1)))
	assert.Equal(t, ColorTextSecondary, StateColor(result("r", guirpc.ResultNew, guirpc.TaskUninitialized, 0)))
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		percent float64
		cells   int
		filled  int
	}{
		{name: "half", width: 10, percent: 50, cells: 10, filled: 5},
		{name: "clamped high", width: 10, percent: 150, cells: 10, filled: 10},
		{name: "clamped low", width: 10, percent: -5, cells: 10, filled: 0},
		{name: "minimum width", width: 0, percent: 50, cells: 1, filled: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := ProgressBar(tt.width, tt.percent)
			assert.Equal(t, tt.cells, lipgloss.Width(bar))
			assert.Equal(t, tt.filled, countRune(bar, '▰'))
		})
	}
}

func countRune(s string, r rune) int {
	n := 0
	for _, c := range s {
		if c == r {
			n++
		}
	}
	return n
}

func TestSectionLines(t *testing.T) {
	assert.Equal(t, 40, lipgloss.Width(SectionHeader("alpha", "1/2 running", 40)))
	assert.Equal(t, 40, lipgloss.Width(SectionFooter(40)))
	assert.Equal(t, 40, lipgloss.Width(SectionContentLine("hello", 40)))
}

func TestStatusGlyph(t *testing.T) {
	assert.Contains(t, StatusGlyph(StatusOnlineState, 0), StatusOnline)
	assert.Contains(t, StatusGlyph(StatusStaleState, 0), StatusStale)
	assert.Contains(t, StatusGlyph(StatusWaitingState, 1), WaitingSpinnerFrames[1])
}

func TestProgressBar_ColorProfile(t *testing.T) {
	prev := lipgloss.ColorProfile()
	defer lipgloss.SetColorProfile(prev)

	lipgloss.SetColorProfile(termenv.TrueColor)
	colored := ProgressBar(10, 50)
	assert.Contains(t, colored, "\x1b[")
	assert.Equal(t, 10, lipgloss.Width(colored), "escape codes take no cells")

	lipgloss.SetColorProfile(termenv.Ascii)
	assert.NotContains(t, ProgressBar(10, 50), "\x1b[")
}
