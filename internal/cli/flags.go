package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/boincwatch/internal/config"
	"github.com/rileyhilliard/boincwatch/internal/errors"
)

// minInterval matches the smallest poll interval config accepts.
const minInterval = 100 * time.Millisecond

// ParseInterval parses a refresh interval flag. An empty flag returns
// fallback.
func ParseInterval(flag string, fallback time.Duration) (time.Duration, error) {
	if flag == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid interval", flag),
			"Try something like 1s, 5s, or 500ms.")
	}
	if d < minInterval {
		return 0, errors.New(errors.ErrConfig,
			fmt.Sprintf("Interval %s is too short", d),
			"Use at least 100ms so clients aren't flooded with requests.")
	}
	return d, nil
}

// parseNames splits a comma-separated --clients value.
func parseNames(flag string) []string {
	var names []string
	for _, name := range strings.Split(flag, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// selectClients narrows cfg's clients to the --clients filter.
func selectClients(cfg *config.Config, flag string) ([]config.ClientConfig, error) {
	selected, unknown := cfg.Select(parseNames(flag))
	if len(unknown) > 0 {
		known := make([]string, len(cfg.Clients))
		for i, c := range cfg.Clients {
			known[i] = c.DisplayName()
		}
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("No client named %s", strings.Join(unknown, ", ")),
			"Configured clients: "+strings.Join(known, ", "))
	}
	return selected, nil
}
