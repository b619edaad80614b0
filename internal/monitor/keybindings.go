package monitor

import tea "github.com/charmbracelet/bubbletea"

// SortOrder defines how results are sorted within each host.
type SortOrder int

const (
	SortByName SortOrder = iota
	SortByProgress
	SortByDeadline
	SortByRemaining
)

// String returns a human-readable label for the sort order.
func (s SortOrder) String() string {
	switch s {
	case SortByProgress:
		return "progress"
	case SortByDeadline:
		return "deadline"
	case SortByRemaining:
		return "remaining"
	default:
		return "name"
	}
}

// Next cycles to the next sort order.
func (s SortOrder) Next() SortOrder {
	return SortOrder((int(s) + 1) % 4)
}

// ViewMode defines the current display mode of the dashboard.
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
)

// Key bindings as constants for consistency.
const (
	KeyQuit        = "q"
	KeyQuitAlt     = "ctrl+c"
	KeyCycleSort   = "s"
	KeySelectPrev  = "up"
	KeySelectPrevK = "k"
	KeySelectNext  = "down"
	KeySelectNextJ = "j"
	KeySelectFirst = "home"
	KeySelectLast  = "end"
	KeyNextHost    = "tab"
	KeyExpand      = "enter"
	KeyCollapse    = "esc"
	KeyToggleHelp  = "?"
)

// HandleKeyMsg processes keyboard input. It returns true if the key was
// handled.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	if key == KeyToggleHelp {
		m.showHelp = !m.showHelp
		return true, nil
	}

	if m.showHelp && key == KeyCollapse {
		m.showHelp = false
		return true, nil
	}

	if m.viewMode == ViewDetail {
		switch key {
		case KeyCollapse:
			m.viewMode = ViewList
			return true, nil
		case KeyQuit, KeyQuitAlt:
		default:
			// Everything else scrolls the detail pane.
			var cmd tea.Cmd
			m.detailViewport, cmd = m.detailViewport.Update(msg)
			return true, cmd
		}
	}

	switch key {
	case KeyQuit, KeyQuitAlt:
		m.quitting = true
		return true, tea.Quit

	case KeyCycleSort:
		m.sortOrder = m.sortOrder.Next()
		m.rebuildRows()
		return true, nil

	case KeySelectPrev, KeySelectPrevK:
		if m.selected > 0 {
			m.selected--
		}
		return true, nil

	case KeySelectNext, KeySelectNextJ:
		if m.selected < len(m.rows)-1 {
			m.selected++
		}
		return true, nil

	case KeySelectFirst:
		m.selected = 0
		return true, nil

	case KeySelectLast:
		if len(m.rows) > 0 {
			m.selected = len(m.rows) - 1
		}
		return true, nil

	case KeyNextHost:
		m.selectNextHost()
		return true, nil

	case KeyExpand:
		if m.viewMode == ViewList && len(m.rows) > 0 {
			m.viewMode = ViewDetail
			m.updateDetailViewportContent()
			m.detailViewport.GotoTop()
		}
		return true, nil

	case KeyCollapse:
		m.viewMode = ViewList
		return true, nil
	}

	return false, nil
}

// selectNextHost moves the selection to the first result of the next host
// that has any, wrapping around.
func (m *Model) selectNextHost() {
	if len(m.rows) == 0 {
		return
	}
	current := m.rows[m.selected].host
	for i := 1; i <= len(m.rows); i++ {
		idx := (m.selected + i) % len(m.rows)
		if m.rows[idx].host != current {
			m.selected = idx
			return
		}
	}
}
