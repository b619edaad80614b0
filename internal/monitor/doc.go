// Package monitor implements a terminal dashboard over the snapshot stream.
//
// The dashboard attaches one queue to the broadcast pool and renders the
// latest picture of every configured BOINC client: its tasks, their state,
// progress and deadlines.
//
// # Architecture
//
// The package uses the Bubble Tea framework (Model-Update-View):
//
//   - Model: hosts, their merged results, selection and layout
//   - Update: keystrokes, redraw ticks, and snapshots from the queue
//   - View: the host list, the task detail pane or the help overlay
//
// # Message Flow
//
//  1. waitForSnapshot blocks on the queue and returns a snapshotMsg
//  2. Update merges it into that host's HostView and re-arms the wait
//  3. A closed queue yields detachedMsg; the last picture stays on screen
//  4. tickMsg fires every second to refresh ages and mark stale hosts
//
// # Merge Semantics
//
// Each snapshot is the complete task list of one host. Results are keyed by
// name: known ones are replaced, new ones added, and ones absent from the
// snapshot removed along with their progress history.
//
// # Keyboard Shortcuts
//
//	q, Ctrl+C   - Quit
//	s           - Cycle sort order (name/progress/deadline/remaining)
//	j/k, ↑/↓    - Move selection
//	Tab         - Jump to the next host
//	Enter       - Task details
//	Esc         - Back
//	?           - Toggle help overlay
package monitor
