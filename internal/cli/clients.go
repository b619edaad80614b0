package cli

import (
	"github.com/rileyhilliard/boincwatch/internal/broadcast"
	"github.com/rileyhilliard/boincwatch/internal/config"
	"github.com/rileyhilliard/boincwatch/internal/logger"
	"github.com/rileyhilliard/boincwatch/pkg/guirpc"
	"github.com/rileyhilliard/boincwatch/pkg/sshutil"
)

// clientSet owns the GUI RPC clients built from config along with the SSH
// tunnels some of them dial through.
type clientSet struct {
	clients []*guirpc.Client
	tunnels map[string]*sshutil.Tunnel
}

// newClientSet builds one client per entry. Entries that name the same SSH
// host share a tunnel.
func newClientSet(cfg *config.Config, entries []config.ClientConfig) *clientSet {
	s := &clientSet{tunnels: make(map[string]*sshutil.Tunnel)}
	log := logger.NewEnvLogger("[rpc]")

	for _, entry := range entries {
		opts := []guirpc.Option{
			guirpc.WithDialTimeout(cfg.DialTimeout),
			guirpc.WithLogger(log),
		}
		if entry.SSH != "" {
			opts = append(opts, guirpc.WithDialer(s.tunnel(entry.SSH, cfg)))
		}
		s.clients = append(s.clients, guirpc.NewClient(entry.Source(), opts...))
	}
	return s
}

func (s *clientSet) tunnel(host string, cfg *config.Config) *sshutil.Tunnel {
	if t, ok := s.tunnels[host]; ok {
		return t
	}
	t := sshutil.NewTunnel(host, sshutil.Options{Timeout: cfg.DialTimeout})
	s.tunnels[host] = t
	return t
}

// loaders adapts the clients for the broadcast pool.
func (s *clientSet) loaders() []broadcast.Loader {
	loaders := make([]broadcast.Loader, len(s.clients))
	for i, c := range s.clients {
		loaders[i] = broadcast.ClientLoader(c)
	}
	return loaders
}

// names returns the display names in config order.
func (s *clientSet) names() []string {
	names := make([]string, len(s.clients))
	for i, c := range s.clients {
		names[i] = c.HostInfo().Name
	}
	return names
}

// Close tears down every tunnel and the shared agent connection.
func (s *clientSet) Close() {
	for _, t := range s.tunnels {
		_ = t.Close()
	}
	if len(s.tunnels) > 0 {
		sshutil.CloseAgent()
	}
}
