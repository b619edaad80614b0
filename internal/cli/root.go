package cli

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rileyhilliard/boincwatch/internal/config"
	"github.com/rileyhilliard/boincwatch/internal/errors"
	"github.com/rileyhilliard/boincwatch/internal/logger"
	"github.com/spf13/cobra"
)

// Global flags
var (
	cfgFile     string
	debugFlag   bool
	noColorFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "boincwatch",
	Short: "Watch BOINC clients over GUI RPC",
	Long: `boincwatch polls BOINC clients over their GUI RPC port and shows what
they are computing.

Poll once, stream live snapshots to a browser, or watch them in the terminal.
Clients come from .boincwatch.yaml or the BOINCWATCH_CLIENTS environment
variable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugFlag {
			logger.SetLevel(logger.LevelDebug)
		}
		if noColor() {
			lipgloss.SetColorProfile(termenv.Ascii)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./.boincwatch.yaml or ~/.config/boincwatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "disable colored output")
}

// noColor honours --no-color and the NO_COLOR convention.
func noColor() bool {
	return noColorFlag || os.Getenv("NO_COLOR") != ""
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(handleError(err))
	}
}

// handleError prints err unless the command already reported it, and returns
// the exit code.
func handleError(err error) int {
	var exitErr *errors.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintln(os.Stderr, err)
	return 1
}

// Config returns the --config flag value.
func Config() string {
	return cfgFile
}

// loadConfig finds, loads and validates config, then applies its log level.
func loadConfig() (*config.Config, error) {
	cfg, _, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	applyLogLevel(cfg.LogLevel)
	return cfg, nil
}

// applyLogLevel sets the process log level unless --debug already forced it.
func applyLogLevel(name string) {
	if debugFlag {
		return
	}
	// Validate has already rejected unknown names.
	level, _ := logger.ParseLevel(name)
	logger.SetLevel(level)
}
