package config

import "github.com/rileyhilliard/boincwatch/pkg/guirpc"

// Source converts the client entry to a dialable GUI RPC source.
func (c ClientConfig) Source() guirpc.Source {
	return guirpc.Source{
		Host:     c.Host,
		Port:     c.Port,
		Password: c.Password,
		Name:     c.DisplayName(),
	}
}

// Select returns the clients whose display names are in names, in config
// order. An empty names list selects every client. Unknown names are
// returned separately.
func (cfg *Config) Select(names []string) (selected []ClientConfig, unknown []string) {
	if len(names) == 0 {
		return cfg.Clients, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	for _, c := range cfg.Clients {
		if want[c.DisplayName()] {
			selected = append(selected, c)
			delete(want, c.DisplayName())
		}
	}
	for _, n := range names {
		if want[n] {
			unknown = append(unknown, n)
			delete(want, n)
		}
	}
	return selected, unknown
}
