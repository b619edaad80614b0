package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rileyhilliard/boincwatch/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".boincwatch.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/boincwatch"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "BOINCWATCH"
	// ClientsEnv holds extra clients as a comma list of [password@]host[:port].
	ClientsEnv = EnvPrefix + "_CLIENTS"
)

// Load reads config from the specified path. Environment overrides apply on
// top of the file.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'boincwatch init' to create a config file, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .boincwatch.yaml in current directory
// 3. ~/.config/boincwatch/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadOrDefault loads config from the found path. With no file it returns
// defaults plus whatever the environment supplies, so a bare
// BOINCWATCH_CLIENTS=host is enough to run.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		cfg, err := parseConfig(newViper(), "environment")
		return cfg, "", err
	}

	cfg, err := Load(path)
	return cfg, path, err
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults := DefaultConfig()
	v.SetDefault("version", defaults.Version)
	v.SetDefault("listen.host", defaults.Listen.Host)
	v.SetDefault("listen.port", defaults.Listen.Port)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("poll_interval", defaults.PollInterval)
	v.SetDefault("queue_size", defaults.QueueSize)
	v.SetDefault("dial_timeout", defaults.DialTimeout)
	v.SetDefault("static_dir", "")

	// Keys are bound one by one rather than with AutomaticEnv so that
	// BOINCWATCH_CLIENTS never shadows the file's clients list.
	_ = v.BindEnv("listen.host", EnvPrefix+"_HOST", EnvPrefix+"_LISTEN_HOST")
	_ = v.BindEnv("listen.port", EnvPrefix+"_PORT", EnvPrefix+"_LISTEN_PORT")
	for _, key := range []string{"log_level", "poll_interval", "queue_size", "dial_timeout", "static_dir"} {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key))
	}
	_ = v.BindEnv("env_clients", ClientsEnv)
	return v
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, source string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+source)
	}
	if cfg.Clients == nil {
		cfg.Clients = []ClientConfig{}
	}
	cfg.StaticDir = ExpandTilde(cfg.StaticDir)

	extra, err := ParseClientList(v.GetString("env_clients"))
	if err != nil {
		return nil, err
	}
	cfg.Clients = append(cfg.Clients, extra...)

	return cfg, nil
}

// ParseClientList parses a comma-separated list of [password@]host[:port]
// entries. Blank entries are skipped. IPv6 hosts need brackets when a port
// is given.
func ParseClientList(s string) ([]ClientConfig, error) {
	var clients []ClientConfig
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		c, err := parseClient(entry)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Bad client entry '%s' in %s", redact(entry), ClientsEnv),
				"Use [password@]host[:port], e.g. mypassword@192.168.1.20:31416")
		}
		clients = append(clients, c)
	}
	return clients, nil
}

func parseClient(entry string) (ClientConfig, error) {
	var c ClientConfig
	if at := strings.LastIndex(entry, "@"); at >= 0 {
		c.Password = entry[:at]
		entry = entry[at+1:]
	}

	host := entry
	if strings.HasPrefix(entry, "[") || strings.Count(entry, ":") == 1 {
		h, p, err := net.SplitHostPort(entry)
		if err != nil {
			if strings.HasPrefix(entry, "[") && strings.HasSuffix(entry, "]") {
				h = strings.Trim(entry, "[]")
			} else {
				return c, err
			}
		} else {
			port, err := strconv.Atoi(p)
			if err != nil {
				return c, fmt.Errorf("invalid port %q", p)
			}
			c.Port = port
		}
		host = h
	}
	if host == "" {
		return c, fmt.Errorf("missing host")
	}

	c.Host = host
	c.Name = host
	if c.Port != 0 {
		c.Name = net.JoinHostPort(host, strconv.Itoa(c.Port))
	}
	return c, nil
}

// redact hides the password part of a client entry.
func redact(entry string) string {
	if at := strings.LastIndex(entry, "@"); at >= 0 {
		return "***@" + entry[at+1:]
	}
	return entry
}
