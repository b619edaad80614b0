package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rileyhilliard/boincwatch/internal/errors"
	"github.com/spf13/cobra"
)

// Command-specific flags
var (
	pollClientsFlag     string
	pollJSONFlag        bool
	serveHostFlag       string
	servePortFlag       int
	serveNoMetricsFlag  bool
	monitorClientsFlag  string
	monitorIntervalFlag string
	initOpts            InitOptions
)

// pollCmd polls every client once
var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll every client once",
	Long: `Fetch a snapshot from every configured client in parallel and print it.

On a terminal the result is a table. When piped, or with --json, it is a
JSON envelope holding each client's snapshot. Exits non-zero if any client
could not be polled.

Examples:
  boincwatch poll
  boincwatch poll --clients cruncher,laptop
  boincwatch poll --json | jq '.data.clients[].snapshot.results'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		return pollCommand(ctx, cmd.OutOrStdout(), PollOptions{
			Clients: pollClientsFlag,
			JSON:    pollJSONFlag,
		})
	},
}

// serveCmd streams snapshots over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Stream snapshots over HTTP",
	Long: `Serve the live snapshot stream to browsers and scripts.

Clients are only polled while at least one stream is open.

Endpoints:
  GET /results        Server-sent events, one JSON snapshot per event
  GET /ws             The same stream over a websocket
  GET /api/v1/health  Listener and source counts
  GET /metrics        Prometheus metrics (unless --no-metrics)
  GET /               The static_dir contents, if configured

Examples:
  boincwatch serve
  boincwatch serve --host 0.0.0.0 --port 9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		return serveCommand(ctx, ServeOptions{
			Host:      serveHostFlag,
			Port:      servePortFlag,
			NoMetrics: serveNoMetricsFlag,
		})
	},
}

// monitorCmd runs the terminal dashboard
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch tasks in a terminal dashboard",
	Long: `Show every client's tasks in a live terminal dashboard.

Keys: arrows select, tab jumps to the next client, enter opens details,
s cycles the sort order, ? shows help, q quits.

Examples:
  boincwatch monitor
  boincwatch monitor --interval 5s
  boincwatch monitor --clients cruncher`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		return monitorCommand(ctx, MonitorOptions{
			Clients:  monitorClientsFlag,
			Interval: monitorIntervalFlag,
		})
	},
}

// initCmd creates or extends the config file
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .boincwatch.yaml",
	Long: `Add a BOINC client to .boincwatch.yaml, creating the file if needed.

Prompts for anything not given as a flag, offering the hosts in
~/.ssh/config for clients that only listen on localhost. The client is
polled once before the config is saved.

Examples:
  boincwatch init
  boincwatch init --host 192.168.1.20 --password secret --non-interactive
  boincwatch init --ssh gpu-box --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := initOpts
		opts.Path = Config()
		return Init(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for boincwatch.

Examples:
  # Bash
  boincwatch completion bash > /etc/bash_completion.d/boincwatch

  # Zsh
  boincwatch completion zsh > "${fpath[1]}/_boincwatch"

  # Fish
  boincwatch completion fish > ~/.config/fish/completions/boincwatch.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(out)
		default:
			return errors.New(errors.ErrConfig,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	// poll command flags
	pollCmd.Flags().StringVar(&pollClientsFlag, "clients", "", "poll only these clients (comma-separated names)")
	pollCmd.Flags().BoolVar(&pollJSONFlag, "json", false, "output in JSON format")

	// serve command flags
	serveCmd.Flags().StringVar(&serveHostFlag, "host", "", "listen address (overrides listen.host)")
	serveCmd.Flags().IntVar(&servePortFlag, "port", 0, "listen port (overrides listen.port)")
	serveCmd.Flags().BoolVar(&serveNoMetricsFlag, "no-metrics", false, "don't serve /metrics")

	// monitor command flags
	monitorCmd.Flags().StringVar(&monitorClientsFlag, "clients", "", "show only these clients (comma-separated names)")
	monitorCmd.Flags().StringVar(&monitorIntervalFlag, "interval", "", "poll interval (default: poll_interval from config)")

	// init command flags
	initCmd.Flags().StringVar(&initOpts.Name, "name", "", "display name for the client")
	initCmd.Flags().StringVar(&initOpts.Host, "host", "", "BOINC client host")
	initCmd.Flags().IntVar(&initOpts.Port, "port", 0, "GUI RPC port (default 31416)")
	initCmd.Flags().StringVar(&initOpts.Password, "password", "", "GUI RPC password")
	initCmd.Flags().StringVar(&initOpts.SSH, "ssh", "", "reach the client through this SSH host")
	initCmd.Flags().BoolVarP(&initOpts.Overwrite, "force", "f", false, "replace an existing config")
	initCmd.Flags().BoolVar(&initOpts.NonInteractive, "non-interactive", false, "don't prompt; use flags only")
	initCmd.Flags().BoolVar(&initOpts.SkipCheck, "no-check", false, "save without polling the client first")

	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(completionCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
