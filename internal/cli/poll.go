package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/boincwatch/internal/errors"
	"github.com/rileyhilliard/boincwatch/internal/monitor"
	"github.com/rileyhilliard/boincwatch/internal/ui"
	"github.com/rileyhilliard/boincwatch/pkg/guirpc"
	"golang.org/x/term"
)

// PollOptions holds options for the poll command.
type PollOptions struct {
	Clients string // comma-separated client names; empty polls all
	JSON    bool   // force JSON even on a terminal
}

// ClientPoll is the outcome of polling one client.
type ClientPoll struct {
	Client   string                `json:"client"`
	OK       bool                  `json:"ok"`
	Took     string                `json:"took"`
	Snapshot *guirpc.SimpleGuiInfo `json:"snapshot,omitempty"`
	Error    *JSONError            `json:"error,omitempty"`

	err error
}

// PollOutput is the JSON payload of the poll command.
type PollOutput struct {
	Clients []ClientPoll `json:"clients"`
	Failed  int          `json:"failed"`
}

// pollCommand polls every selected client once and writes the outcome to w.
// It fails with an ExitError when any client failed.
func pollCommand(ctx context.Context, w io.Writer, opts PollOptions) error {
	asJSON := opts.JSON || !isTerminal(w)

	out, err := runPoll(ctx, opts.Clients)
	if err != nil {
		if !asJSON {
			return err
		}
		if werr := WriteJSONFromError(w, err); werr != nil {
			return werr
		}
		return errors.NewExitError(1)
	}

	if asJSON {
		if err := WriteJSONResult(w, out.Failed == 0, out); err != nil {
			return err
		}
	} else {
		fmt.Fprint(w, renderPollText(out, time.Now()))
	}
	if out.Failed > 0 {
		return errors.NewExitError(1)
	}
	return nil
}

func runPoll(ctx context.Context, filter string) (PollOutput, error) {
	cfg, err := loadConfig()
	if err != nil {
		return PollOutput{}, err
	}
	entries, err := selectClients(cfg, filter)
	if err != nil {
		return PollOutput{}, err
	}

	set := newClientSet(cfg, entries)
	defer set.Close()
	return pollAll(ctx, set.clients), nil
}

// pollAll polls clients in parallel. Results keep the clients' order.
func pollAll(ctx context.Context, clients []*guirpc.Client) PollOutput {
	out := PollOutput{Clients: make([]ClientPoll, len(clients))}

	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c *guirpc.Client) {
			defer wg.Done()

			start := time.Now()
			snap, err := c.Poll(ctx)
			out.Clients[i] = ClientPoll{
				Client:   c.HostInfo().Name,
				OK:       err == nil,
				Took:     time.Since(start).Round(time.Millisecond).String(),
				Snapshot: snap,
				Error:    ErrorToJSON(err),
				err:      err,
			}
		}(i, c)
	}
	wg.Wait()

	for _, c := range out.Clients {
		if !c.OK {
			out.Failed++
		}
	}
	return out
}

// renderPollText renders the summary table followed by one task table per
// client that has tasks, and the suggestions for failed clients.
func renderPollText(out PollOutput, now time.Time) string {
	var b strings.Builder

	rows := make([]ui.PollTableRow, len(out.Clients))
	for i, c := range out.Clients {
		row := ui.PollTableRow{OK: c.OK, Client: c.Client, Took: c.Took}
		if c.OK {
			row.Tasks = len(c.Snapshot.Results)
			row.Running = countRunning(c.Snapshot.Results)
			row.Detail = projectSummary(c.Snapshot.Results)
		} else {
			row.Detail = errors.Summary(c.err)
		}
		rows[i] = row
	}
	b.WriteString(ui.RenderPollTable(rows))

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ui.ColorSecondary)
	for _, c := range out.Clients {
		if !c.OK || len(c.Snapshot.Results) == 0 {
			continue
		}
		b.WriteString("\n")
		b.WriteString(headerStyle.Render(c.Client))
		b.WriteString("\n")
		b.WriteString(ui.RenderSimpleTable(taskColumns, taskRows(c.Snapshot.Results, now)))
		b.WriteString("\n")
	}

	mutedStyle := lipgloss.NewStyle().Foreground(ui.ColorMuted)
	for _, c := range out.Clients {
		if c.OK || c.Error == nil || c.Error.Suggestion == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%s: %s", c.Client, c.Error.Suggestion)))
		b.WriteString("\n")
	}
	return b.String()
}

var taskColumns = []ui.TableColumn{
	{Title: "Task", Width: 40},
	{Title: "State", Width: 16},
	{Title: "Progress", Width: 9},
	{Title: "Elapsed", Width: 10},
	{Title: "Deadline", Width: 20},
}

func taskRows(results []guirpc.Result, now time.Time) [][]string {
	rows := make([][]string, len(results))
	for i, r := range results {
		deadline := "-"
		if !r.ReportDeadline.IsZero() {
			deadline = r.ReportDeadline.Local().Format("2006-01-02 15:04")
			if !r.ReportDeadline.After(now) {
				deadline += " !"
			}
		}
		rows[i] = []string{
			r.Name,
			monitor.StateLabel(r),
			fmt.Sprintf("%.1f%%", r.ActiveTask.FractionDone*100),
			seconds(r.ActiveTask.ElapsedTime).String(),
			deadline,
		}
	}
	return rows
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Second)
}

func countRunning(results []guirpc.Result) int {
	n := 0
	for _, r := range results {
		if monitor.IsRunning(r) {
			n++
		}
	}
	return n
}

// projectSummary lists the distinct project URLs of results, stripped of
// scheme and trailing slash.
func projectSummary(results []guirpc.Result) string {
	seen := make(map[string]bool)
	var projects []string
	for _, r := range results {
		p := strings.TrimSuffix(r.ProjectURL, "/")
		p = strings.TrimPrefix(strings.TrimPrefix(p, "https://"), "http://")
		if p != "" && !seen[p] {
			seen[p] = true
			projects = append(projects, p)
		}
	}
	if len(projects) == 0 {
		return "idle"
	}
	return strings.Join(projects, ", ")
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
