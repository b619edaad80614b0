package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// NewTable creates a non-interactive Bubbles table with default styling.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{
			Title: c.Title,
			Width: c.Width,
		}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1), // +1 for header
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.
		Foreground(ColorPrimary)
	// Nothing is focused, so the selected row must look like any other.
	s.Selected = s.Cell

	t.SetStyles(s)
	return t
}

// RenderSimpleTable renders rows as a table string for CLI output.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}
	return NewTable(columns, tableRows).View()
}

// PollTableRow is one client's line in the poll summary.
type PollTableRow struct {
	OK      bool
	Client  string
	Tasks   int
	Running int
	Took    string
	Detail  string // projects on success, error summary on failure
}

// RenderPollTable renders the per-client outcome of a poll.
func RenderPollTable(rows []PollTableRow) string {
	if len(rows) == 0 {
		return "No clients configured"
	}

	successStyle := lipgloss.NewStyle().Foreground(ColorSuccess)
	errorStyle := lipgloss.NewStyle().Foreground(ColorError)
	mutedStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(ColorMuted)

	var b strings.Builder
	b.WriteString(headerStyle.Render("  " +
		padRight("", 3) +
		padRight("CLIENT", 24) +
		padRight("TASKS", 7) +
		padRight("RUNNING", 9) +
		padRight("TIME", 9) +
		"DETAIL"))
	b.WriteString("\n")

	for _, row := range rows {
		icon := successStyle.Render(SymbolSuccess)
		tasks := fmt.Sprintf("%d", row.Tasks)
		running := fmt.Sprintf("%d", row.Running)
		detail := mutedStyle.Render(row.Detail)
		if !row.OK {
			icon = errorStyle.Render(SymbolFail)
			tasks, running = "-", "-"
			detail = errorStyle.Render(row.Detail)
		}

		b.WriteString("  " +
			padRight(icon, 3) +
			padRight(row.Client, 24) +
			padRight(tasks, 7) +
			padRight(running, 9) +
			padRight(mutedStyle.Render(row.Took), 9) +
			detail)
		b.WriteString("\n")
	}
	return b.String()
}

// padRight pads s to width visible cells. ANSI codes don't count.
func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s + " "
	}
	return s + strings.Repeat(" ", width-visible)
}
