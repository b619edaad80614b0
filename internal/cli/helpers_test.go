package cli

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/boincwatch/internal/config"
	"github.com/rileyhilliard/boincwatch/internal/logger"
	rpctesting "github.com/rileyhilliard/boincwatch/pkg/guirpc/testing"
	"github.com/stretchr/testify/require"
)

func startPeer(t *testing.T, handler rpctesting.Handler) *rpctesting.Peer {
	t.Helper()
	p, err := rpctesting.StartPeer(handler)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func peerClient(name string, p *rpctesting.Peer, password string) config.ClientConfig {
	src := p.Source(password)
	return config.ClientConfig{Name: name, Host: src.Host, Port: src.Port, Password: password}
}

// deadClient points at a port nothing listens on.
func deadClient(t *testing.T, name string) config.ClientConfig {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return config.ClientConfig{Name: name, Host: "127.0.0.1", Port: port}
}

// useConfig writes a config holding clients and points --config at it.
func useConfig(t *testing.T, clients ...config.ClientConfig) *config.Config {
	t.Helper()
	t.Setenv(config.ClientsEnv, "")

	cfg := config.DefaultConfig()
	cfg.Clients = clients
	cfg.DialTimeout = 2 * time.Second
	cfg.PollInterval = 20 * time.Millisecond
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.Save(path, cfg))

	prev := cfgFile
	cfgFile = path
	t.Cleanup(func() {
		cfgFile = prev
		logger.SetLevel(logger.LevelInfo)
	})
	return cfg
}
