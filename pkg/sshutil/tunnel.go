package sshutil

import (
	"context"
	"net"
	"sync"
)

// Tunnel is a guirpc.Dialer that reaches BOINC clients through one SSH
// host. The SSH connection is opened on first use and kept between polls;
// a dead connection is replaced on the next dial.
type Tunnel struct {
	host string
	opts Options

	mu     sync.Mutex
	client *Client
	dial   func(ctx context.Context, host string, opts Options) (*Client, error)
}

// NewTunnel returns a tunnel through host. Nothing is dialed yet.
func NewTunnel(host string, opts Options) *Tunnel {
	return &Tunnel{host: host, opts: opts, dial: Dial}
}

// Host returns the SSH host the tunnel goes through.
func (t *Tunnel) Host() string {
	return t.host
}

// DialContext opens address from the SSH host's side.
func (t *Tunnel) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	client, err := t.get(ctx)
	if err != nil {
		return nil, err
	}

	conn, err := client.DialContext(ctx, network, address)
	if err == nil {
		return conn, nil
	}

	// The cached connection may have died between polls; retry once on a
	// fresh one unless the server is plainly alive and refused the target.
	if client.Alive() {
		return nil, err
	}
	t.drop(client)
	client, dialErr := t.get(ctx)
	if dialErr != nil {
		return nil, dialErr
	}
	return client.DialContext(ctx, network, address)
}

// Close closes the SSH connection if one is open.
func (t *Tunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

func (t *Tunnel) get(ctx context.Context) (*Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return t.client, nil
	}
	client, err := t.dial(ctx, t.host, t.opts)
	if err != nil {
		return nil, err
	}
	t.client = client
	return client, nil
}

func (t *Tunnel) drop(client *Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == client {
		_ = t.client.Close()
		t.client = nil
	}
}
