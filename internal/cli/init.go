package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/boincwatch/internal/config"
	"github.com/rileyhilliard/boincwatch/internal/errors"
	"github.com/rileyhilliard/boincwatch/internal/ui"
	"github.com/rileyhilliard/boincwatch/pkg/guirpc"
	"github.com/rileyhilliard/boincwatch/pkg/sshutil"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Path           string // Config file to write; defaults to ./.boincwatch.yaml
	Name           string
	Host           string
	Port           int
	Password       string
	SSH            string // SSH host to tunnel through
	Overwrite      bool   // Replace an existing config instead of adding to it
	NonInteractive bool   // Skip prompts, use flags
	SkipCheck      bool   // Save without polling the client first
}

// checkTimeout bounds the test poll init runs before saving.
const checkTimeout = 10 * time.Second

// Init writes a config with one client, or adds the client to an existing
// config file.
func Init(ctx context.Context, w io.Writer, opts InitOptions) error {
	configPath := opts.Path
	if configPath == "" {
		configPath = filepath.Join(".", config.ConfigFileName)
	}
	if !opts.NonInteractive && nonInteractiveEnv() {
		opts.NonInteractive = true
	}

	_, statErr := os.Stat(configPath)
	exists := statErr == nil

	if exists && !opts.Overwrite && !opts.NonInteractive {
		add := true
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("'%s' already exists. Add a client to it?", configPath)).
					Description("Choose No to cancel, or rerun with --force to replace it.").
					Value(&add),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --non-interactive")
		}
		if !add {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	if !opts.NonInteractive {
		if err := promptClient(&opts); err != nil {
			return err
		}
	}

	client, err := buildClient(opts)
	if err != nil {
		return err
	}

	if !opts.SkipCheck {
		if err := checkClient(ctx, w, client); err != nil {
			return err
		}
	}

	if exists && !opts.Overwrite {
		if err := config.AddClient(configPath, client); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s Added %s to %s\n", ui.SymbolSuccess, client.DisplayName(), configPath)
		return nil
	}

	cfg := config.DefaultConfig()
	cfg.Clients = []config.ClientConfig{client}
	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s Created %s\n\n", ui.SymbolSuccess, configPath)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintln(w, "  boincwatch poll     - Poll every client once")
	fmt.Fprintln(w, "  boincwatch monitor  - Watch tasks in the terminal")
	fmt.Fprintln(w, "  boincwatch serve    - Stream snapshots over HTTP")
	return nil
}

// buildClient turns the collected answers into a validated client entry.
func buildClient(opts InitOptions) (config.ClientConfig, error) {
	client := config.ClientConfig{
		Name:     strings.TrimSpace(opts.Name),
		Host:     strings.TrimSpace(opts.Host),
		Port:     opts.Port,
		Password: opts.Password,
		SSH:      strings.TrimSpace(opts.SSH),
	}
	if client.Host == "" && client.SSH != "" {
		client.Host = "127.0.0.1"
	}
	if client.Host == "" {
		return client, errors.New(errors.ErrConfig,
			"Client host is required",
			"Provide --host, or run without --non-interactive to be prompted")
	}
	if client.Name == client.Host {
		client.Name = ""
	}

	cfg := config.DefaultConfig()
	cfg.Clients = []config.ClientConfig{client}
	if err := config.Validate(cfg); err != nil {
		return client, err
	}
	return client, nil
}

// checkClient polls the new client once so typos surface before saving.
func checkClient(ctx context.Context, w io.Writer, client config.ClientConfig) error {
	fmt.Fprintf(w, "%s Testing connection to %s\n", ui.SymbolPending, client.Source().Address())

	cfg := config.DefaultConfig()
	set := newClientSet(cfg, []config.ClientConfig{client})
	defer set.Close()

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	info, err := set.clients[0].Poll(ctx)
	if err != nil {
		fmt.Fprintf(w, "%s %s\n", ui.SymbolFail, errors.Summary(err))
		return err
	}
	fmt.Fprintf(w, "%s Connected, %d tasks\n", ui.SymbolSuccess, len(info.Results))
	return nil
}

// promptClient asks for whatever the flags left empty.
func promptClient(opts *InitOptions) error {
	direct := "(connect directly)"
	if opts.SSH == "" {
		if options := sshOptions(direct); len(options) > 1 {
			choice := direct
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewSelect[string]().
						Title("Reach the client through SSH?").
						Description("Needed when the BOINC client only listens on localhost").
						Options(options...).
						Value(&choice),
				),
			)
			if err := form.Run(); err != nil {
				return errors.WrapWithCode(err, errors.ErrConfig,
					"Failed to get user input",
					"Try running with --non-interactive")
			}
			if choice != direct {
				opts.SSH = choice
			}
		}
	}

	host := opts.Host
	if host == "" && opts.SSH != "" {
		host = "127.0.0.1"
	}
	port := ""
	if opts.Port != 0 {
		port = strconv.Itoa(opts.Port)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("BOINC client host").
				Description(hostDescription(opts.SSH)).
				Placeholder("192.168.1.20").
				Value(&host).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("host is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("GUI RPC port").
				Placeholder(strconv.Itoa(guirpc.DefaultPort)).
				Value(&port).
				Validate(validatePort),
			huh.NewInput().
				Title("GUI RPC password").
				Description("From gui_rpc_auth.cfg; leave empty if the client has none").
				EchoMode(huh.EchoModePassword).
				Value(&opts.Password),
			huh.NewInput().
				Title("Display name (optional)").
				Placeholder("defaults to the host").
				Value(&opts.Name),
		),
	)
	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Check terminal compatibility or use --non-interactive")
	}

	opts.Host = host
	opts.Port, _ = strconv.Atoi(strings.TrimSpace(port))
	return nil
}

func hostDescription(ssh string) string {
	if ssh == "" {
		return "Hostname or IP of the machine running BOINC"
	}
	return "Resolved from " + ssh + ", so 127.0.0.1 is that machine"
}

func validatePort(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}

// sshOptions offers the concrete aliases from ~/.ssh/config after the
// direct option.
func sshOptions(direct string) []huh.Option[string] {
	options := []huh.Option[string]{huh.NewOption(direct, direct)}
	hosts, err := sshutil.ParseSSHConfig()
	if err != nil {
		return options
	}
	for _, h := range hosts {
		options = append(options, huh.NewOption(h.Alias+"  "+h.Description(), h.Alias))
	}
	return options
}

// nonInteractiveEnv reports whether the environment rules out prompts.
func nonInteractiveEnv() bool {
	if os.Getenv("CI") != "" {
		return true
	}
	v := strings.ToLower(os.Getenv(config.EnvPrefix + "_NON_INTERACTIVE"))
	return v == "1" || v == "true" || v == "yes"
}
