package monitor

import (
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/boincwatch/pkg/guirpc"
)

// LayoutMode represents the responsive layout mode based on terminal width.
type LayoutMode int

const (
	// LayoutMinimal drops the progress bar and timing columns.
	LayoutMinimal LayoutMode = iota
	// LayoutStandard shows every column.
	LayoutStandard
)

// BreakpointStandard is the width at which every column fits.
const BreakpointStandard = 100

// HeightMinimal is the height below which the footer is hidden.
const HeightMinimal = 12

// tickInterval drives the "last update" clock and spinner.
const tickInterval = time.Second

// minStaleAfter keeps fast poll intervals from flagging hosts on a single
// slow poll.
const minStaleAfter = 5 * time.Second

// Source delivers snapshots. broadcast.Queue satisfies it; the channel is
// closed when the queue is detached.
type Source interface {
	C() <-chan *guirpc.SimpleGuiInfo
}

// row is one result line in the list, in display order.
type row struct {
	host   string
	result guirpc.Result
}

func (r row) key() string {
	return resultKey(r.host, r.result.Name)
}

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	source     Source
	hostOrder  []string
	hosts      map[string]*HostView
	rows       []row
	selected   int
	history    *History
	staleAfter time.Duration
	now        func() time.Time

	width      int
	height     int
	lastUpdate time.Time
	sortOrder  SortOrder
	viewMode   ViewMode
	showHelp   bool
	quitting   bool
	detached   bool

	spinnerFrame int

	detailViewport viewport.Model
	viewportReady  bool
}

// tickMsg signals a periodic redraw.
type tickMsg time.Time

// snapshotMsg carries one snapshot from the source.
type snapshotMsg struct {
	info *guirpc.SimpleGuiInfo
	at   time.Time
}

// detachedMsg reports that the source closed.
type detachedMsg struct{}

// NewModel creates a dashboard fed by source. hostOrder lists the configured
// clients in display order; hosts first seen in a snapshot are appended.
// interval is the pool's poll interval, used to decide when a host is stale.
func NewModel(source Source, hostOrder []string, interval time.Duration) Model {
	staleAfter := 3 * interval
	if staleAfter < minStaleAfter {
		staleAfter = minStaleAfter
	}

	m := Model{
		source:     source,
		hosts:      make(map[string]*HostView),
		history:    NewHistory(DefaultHistorySize),
		staleAfter: staleAfter,
		now:        time.Now,
	}
	for _, name := range hostOrder {
		m.addHost(name)
	}
	return m
}

// Init starts listening for snapshots and the redraw clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForSnapshot(), m.tickCmd())
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.HandleKeyMsg(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight, footerHeight := 3, 2
		viewportHeight := m.height - headerHeight - footerHeight
		if viewportHeight < 1 {
			viewportHeight = 1
		}
		if !m.viewportReady {
			m.detailViewport = viewport.New(m.width, viewportHeight)
			m.detailViewport.YPosition = headerHeight
			m.viewportReady = true
		} else {
			m.detailViewport.Width = m.width
			m.detailViewport.Height = viewportHeight
		}
		if m.viewMode == ViewDetail {
			m.updateDetailViewportContent()
		}

	case tickMsg:
		m.spinnerFrame++
		return m, m.tickCmd()

	case snapshotMsg:
		m.apply(msg.info, msg.at)
		if m.viewMode == ViewDetail {
			m.updateDetailViewportContent()
		}
		return m, m.waitForSnapshot()

	case detachedMsg:
		m.detached = true
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	if m.viewMode == ViewDetail {
		return m.renderDetailView()
	}
	return m.renderDashboard()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForSnapshot blocks on the source for the next snapshot.
func (m Model) waitForSnapshot() tea.Cmd {
	ch := m.source.C()
	return func() tea.Msg {
		info, ok := <-ch
		if !ok {
			return detachedMsg{}
		}
		return snapshotMsg{info: info, at: time.Now()}
	}
}

func (m *Model) addHost(name string) *HostView {
	if hv, ok := m.hosts[name]; ok {
		return hv
	}
	hv := &HostView{Name: name}
	m.hosts[name] = hv
	m.hostOrder = append(m.hostOrder, name)
	return hv
}

// apply merges one snapshot into the host it came from.
func (m *Model) apply(info *guirpc.SimpleGuiInfo, at time.Time) {
	if info == nil {
		return
	}
	hv := m.addHost(info.Host.Name)
	_, removed := hv.Merge(info, at)
	for _, name := range removed {
		m.history.Forget(resultKey(hv.Name, name))
	}
	for _, r := range hv.Results {
		m.history.Push(resultKey(hv.Name, r.Name), r.ActiveTask.FractionDone*100)
	}
	m.lastUpdate = at
	m.rebuildRows()
}

// rebuildRows lays out every result, grouped by host in host order and
// sorted within each host. The selection follows the selected result.
func (m *Model) rebuildRows() {
	selectedKey := ""
	if m.selected >= 0 && m.selected < len(m.rows) {
		selectedKey = m.rows[m.selected].key()
	}

	rows := make([]row, 0, len(m.rows))
	for _, name := range m.hostOrder {
		hv := m.hosts[name]
		start := len(rows)
		for _, r := range hv.Results {
			rows = append(rows, row{host: name, result: r})
		}
		m.sortRows(rows[start:])
	}
	m.rows = rows

	m.selected = 0
	for i, r := range rows {
		if r.key() == selectedKey {
			m.selected = i
			break
		}
	}
}

func (m *Model) sortRows(rows []row) {
	less := func(a, b guirpc.Result) bool { return a.Name < b.Name }
	switch m.sortOrder {
	case SortByProgress:
		less = func(a, b guirpc.Result) bool {
			return a.ActiveTask.FractionDone > b.ActiveTask.FractionDone
		}
	case SortByDeadline:
		less = func(a, b guirpc.Result) bool { return a.ReportDeadline.Before(b.ReportDeadline) }
	case SortByRemaining:
		less = func(a, b guirpc.Result) bool { return Remaining(a) < Remaining(b) }
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i].result, rows[j].result) })
}

// Hosts returns the host names in display order.
func (m Model) Hosts() []string {
	return append([]string(nil), m.hostOrder...)
}

// Host returns the view of the named host, or nil.
func (m Model) Host(name string) *HostView {
	return m.hosts[name]
}

// OnlineCount returns the number of hosts with a recent snapshot.
func (m Model) OnlineCount() int {
	now := m.now()
	count := 0
	for _, hv := range m.hosts {
		if hv.Status(now, m.staleAfter) == StatusOnlineState {
			count++
		}
	}
	return count
}

// RunningCount returns the number of executing tasks across hosts.
func (m Model) RunningCount() int {
	count := 0
	for _, hv := range m.hosts {
		count += hv.Running()
	}
	return count
}

// Selected returns the host and result under the cursor.
func (m Model) Selected() (string, guirpc.Result, bool) {
	if m.selected < 0 || m.selected >= len(m.rows) {
		return "", guirpc.Result{}, false
	}
	r := m.rows[m.selected]
	return r.host, r.result, true
}

// SecondsSinceUpdate returns how many seconds have passed since the last snapshot.
func (m Model) SecondsSinceUpdate() int {
	if m.lastUpdate.IsZero() {
		return 0
	}
	return int(m.now().Sub(m.lastUpdate).Seconds())
}

// LayoutMode returns the current layout mode based on terminal width.
func (m Model) LayoutMode() LayoutMode {
	if m.width > 0 && m.width < BreakpointStandard {
		return LayoutMinimal
	}
	return LayoutStandard
}

// ShowFooter returns true if the terminal is tall enough to show the footer.
func (m Model) ShowFooter() bool {
	return m.height == 0 || m.height >= HeightMinimal
}
