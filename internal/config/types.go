package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete .boincwatch.yaml configuration file.
type Config struct {
	Version      int            `yaml:"version" mapstructure:"version"`
	Listen       ListenConfig   `yaml:"listen" mapstructure:"listen"`
	LogLevel     string         `yaml:"log_level" mapstructure:"log_level"`
	PollInterval time.Duration  `yaml:"poll_interval" mapstructure:"poll_interval"`
	QueueSize    int            `yaml:"queue_size" mapstructure:"queue_size"`
	DialTimeout  time.Duration  `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	StaticDir    string         `yaml:"static_dir,omitempty" mapstructure:"static_dir"`
	Clients      []ClientConfig `yaml:"clients" mapstructure:"clients"`
}

// ListenConfig is where `boincwatch serve` binds.
type ListenConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// ClientConfig is one BOINC client to poll.
type ClientConfig struct {
	// Name shown in output. Defaults to Host.
	Name string `yaml:"name,omitempty" mapstructure:"name"`

	// Host running the BOINC client. With SSH set this is resolved on the
	// far side of the tunnel, so 127.0.0.1 reaches a loopback-only daemon.
	Host string `yaml:"host" mapstructure:"host"`

	// Port of the GUI RPC listener. Zero means 31416.
	Port int `yaml:"port,omitempty" mapstructure:"port"`

	// Password from gui_rpc_auth.cfg. Empty skips authentication.
	Password string `yaml:"password,omitempty" mapstructure:"password"`

	// SSH tunnels the connection through this host: an ssh_config alias,
	// hostname or user@hostname[:port].
	SSH string `yaml:"ssh,omitempty" mapstructure:"ssh"`
}

// DisplayName returns Name, falling back to Host.
func (c ClientConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Host
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Listen: ListenConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		LogLevel:     "info",
		PollInterval: time.Second,
		QueueSize:    5,
		DialTimeout:  10 * time.Second,
		Clients:      []ClientConfig{},
	}
}
