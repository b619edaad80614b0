package monitor

import (
	"sort"
	"time"

	"github.com/rileyhilliard/boincwatch/pkg/guirpc"
)

// HostStatus represents how current a host's picture is.
type HostStatus int

const (
	// StatusWaitingState means no snapshot has arrived yet.
	StatusWaitingState HostStatus = iota
	// StatusOnlineState means a snapshot arrived recently.
	StatusOnlineState
	// StatusStaleState means snapshots stopped arriving, typically because
	// polls of that client are failing.
	StatusStaleState
)

// String returns a human-readable status string.
func (s HostStatus) String() string {
	switch s {
	case StatusWaitingState:
		return "waiting"
	case StatusOnlineState:
		return "online"
	case StatusStaleState:
		return "stale"
	default:
		return "unknown"
	}
}

// HostView is the dashboard's picture of one BOINC client, built from
// successive snapshots.
type HostView struct {
	Name       string
	Results    []guirpc.Result
	LastUpdate time.Time
	Updates    int
}

// Merge applies snap: results are keyed by name, known ones are replaced,
// new ones are added and ones missing from snap are removed. It returns the
// names that were added and removed, each sorted.
func (h *HostView) Merge(snap *guirpc.SimpleGuiInfo, at time.Time) (added, removed []string) {
	current := make(map[string]bool, len(h.Results))
	for _, r := range h.Results {
		current[r.Name] = true
	}

	next := make([]guirpc.Result, 0, len(snap.Results))
	seen := make(map[string]bool, len(snap.Results))
	for _, r := range snap.Results {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		next = append(next, r)
		if !current[r.Name] {
			added = append(added, r.Name)
		}
	}
	for name := range current {
		if !seen[name] {
			removed = append(removed, name)
		}
	}

	sort.Slice(next, func(i, j int) bool { return next[i].Name < next[j].Name })
	sort.Strings(added)
	sort.Strings(removed)

	h.Results = next
	h.LastUpdate = at
	h.Updates++
	return added, removed
}

// Status reports whether the host is current at now. A host is stale once
// nothing arrived for staleAfter.
func (h *HostView) Status(now time.Time, staleAfter time.Duration) HostStatus {
	switch {
	case h.Updates == 0:
		return StatusWaitingState
	case now.Sub(h.LastUpdate) > staleAfter:
		return StatusStaleState
	default:
		return StatusOnlineState
	}
}

// Running returns the number of results whose task is executing.
func (h *HostView) Running() int {
	n := 0
	for _, r := range h.Results {
		if IsRunning(r) {
			n++
		}
	}
	return n
}

// IsRunning reports whether r's task is executing right now.
func IsRunning(r guirpc.Result) bool {
	return r.State == guirpc.ResultFilesDownloaded && r.ActiveTask.ActiveTaskState == guirpc.TaskExecuting
}

// Remaining estimates the wall time left for r from its elapsed time and
// fraction done. It falls back to the client's CPU estimate before any
// progress is reported.
func Remaining(r guirpc.Result) time.Duration {
	f := r.ActiveTask.FractionDone
	if f <= 0 || f >= 1 || r.ActiveTask.ElapsedTime <= 0 {
		return seconds(r.EstimatedCPUTimeRemaining)
	}
	return seconds(r.ActiveTask.ElapsedTime * (1 - f) / f)
}

func seconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// resultKey identifies a result across hosts.
func resultKey(host, result string) string {
	return host + "/" + result
}
