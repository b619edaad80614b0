package cli

import (
	"context"
	stderrors "errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/boincwatch/internal/broadcast"
	"github.com/rileyhilliard/boincwatch/internal/logger"
	"github.com/rileyhilliard/boincwatch/internal/monitor"
)

// MonitorOptions holds options for the monitor command.
type MonitorOptions struct {
	Clients  string
	Interval string
}

// monitorCommand runs the terminal dashboard over a live snapshot stream.
func monitorCommand(ctx context.Context, opts MonitorOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	interval, err := ParseInterval(opts.Interval, cfg.PollInterval)
	if err != nil {
		return err
	}
	entries, err := selectClients(cfg, opts.Clients)
	if err != nil {
		return err
	}

	// The alt screen owns the terminal; pool warnings would tear it.
	if !debugFlag {
		logger.SetLevel(logger.LevelError)
	}

	set := newClientSet(cfg, entries)
	defer set.Close()

	pool := broadcast.New(set.loaders(),
		broadcast.WithInterval(interval),
		broadcast.WithQueueSize(cfg.QueueSize),
	)
	return runMonitor(ctx, pool, set.names(), interval, tea.WithAltScreen())
}

// runMonitor shows the dashboard over a queue attached to pool until the
// user quits or ctx is cancelled. The pool is stopped before it returns.
func runMonitor(ctx context.Context, pool *broadcast.Pool, names []string, interval time.Duration, opts ...tea.ProgramOption) error {
	queue := pool.Attach()
	defer pool.Detach(queue)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	pool.Start(ctx)

	model := monitor.NewModel(queue, names, interval)
	p := tea.NewProgram(model, append(opts, tea.WithContext(ctx))...)
	_, err := p.Run()

	// Cancel in-flight polls before waiting on them.
	cancel()
	pool.Stop()

	// Killed means ctx was cancelled, e.g. by SIGINT.
	if stderrors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
