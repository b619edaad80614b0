package config

import (
	"fmt"
	"time"

	"github.com/rileyhilliard/boincwatch/internal/errors"
	"github.com/rileyhilliard/boincwatch/internal/logger"
)

// MinPollInterval keeps a misconfigured pool from hammering its clients.
const MinPollInterval = 100 * time.Millisecond

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but boincwatch only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Grab the latest boincwatch release.")
	}

	if len(cfg.Clients) == 0 {
		return errors.New(errors.ErrConfig,
			"No BOINC clients configured",
			"Run 'boincwatch init', add a 'clients' entry to .boincwatch.yaml, or set "+ClientsEnv+"=host")
	}

	seen := make(map[string]int, len(cfg.Clients))
	for i, c := range cfg.Clients {
		if err := validateClient(i, c); err != nil {
			return err
		}
		name := c.DisplayName()
		if prev, dup := seen[name]; dup {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Clients %d and %d are both named '%s'", prev+1, i+1, name),
				"Give each client a unique 'name'.")
		}
		seen[name] = i
	}

	if cfg.Listen.Port < 1 || cfg.Listen.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Listen port %d is out of range", cfg.Listen.Port),
			"Use a port between 1 and 65535.")
	}

	if cfg.PollInterval < MinPollInterval {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("poll_interval %s is too short", cfg.PollInterval),
			fmt.Sprintf("Use at least %s, e.g. poll_interval: 1s", MinPollInterval))
	}

	if cfg.QueueSize < 1 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("queue_size must be at least 1, got %d", cfg.QueueSize),
			"The default of 5 suits most setups.")
	}

	if cfg.DialTimeout <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("dial_timeout must be positive, got %s", cfg.DialTimeout),
			"Try dial_timeout: 10s")
	}

	if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Unknown log_level '%s'", cfg.LogLevel),
			"Use one of debug, info, warn, error.")
	}

	return nil
}

func validateClient(i int, c ClientConfig) error {
	label := fmt.Sprintf("Client %d", i+1)
	if c.Name != "" {
		label = fmt.Sprintf("Client '%s'", c.Name)
	}

	if c.Host == "" {
		return errors.New(errors.ErrConfig,
			label+" has no host",
			"Set 'host' to the machine running the BOINC client, e.g. 127.0.0.1")
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%s has port %d, which is out of range", label, c.Port),
			"Leave 'port' unset for the default 31416.")
	}
	return nil
}
