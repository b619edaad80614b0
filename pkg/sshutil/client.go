package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"time"

	"github.com/rileyhilliard/boincwatch/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Client wraps an SSH connection with additional metadata.
type Client struct {
	*ssh.Client
	Host    string // The original host/alias used to connect
	Address string // The resolved address (host:port)
}

// Options tunes how Dial resolves and authenticates. The zero value reads
// ~/.ssh/config and ~/.ssh/known_hosts and tries the agent and default keys.
type Options struct {
	// Timeout bounds the TCP connect and handshake. Zero means 10s.
	Timeout time.Duration

	// ConfigPath overrides ~/.ssh/config.
	ConfigPath string

	// KnownHostsPath overrides ~/.ssh/known_hosts.
	KnownHostsPath string

	// InsecureIgnoreHostKey skips host key verification.
	InsecureIgnoreHostKey bool

	// Signers are tried before the agent and key files.
	Signers []ssh.Signer

	// SkipAgent and SkipDefaultKeys narrow auth to Signers and IdentityFile.
	SkipAgent       bool
	SkipDefaultKeys bool
}

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return 10 * time.Second
}

// Dial establishes an SSH connection to the specified host.
// The host can be:
//   - An SSH config alias (e.g., "myserver")
//   - A hostname (e.g., "192.168.1.100")
//   - A user@hostname (e.g., "user@192.168.1.100")
//   - A hostname:port (e.g., "192.168.1.100:2222")
//
// Connection settings are resolved from ~/.ssh/config when available.
func Dial(ctx context.Context, host string, opts Options) (*Client, error) {
	settings := resolveSSHSettings(host, opts.ConfigPath)

	config, err := buildSSHConfig(settings, opts)
	if err != nil {
		var bwErr *errors.Error
		if stderrors.As(err, &bwErr) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't set up SSH for '%s'", host),
			"Check your keys are loaded: ssh-add -l")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	address := settings.address()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", host, address),
			suggestionForDialError(err))
	}

	// The handshake has no context of its own.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.WrapWithCode(hostKeyErr, errors.ErrSSH,
				hostKeyErr.Error(),
				hostKeyErr.Suggestion())
		}

		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", host),
			suggestionForHandshakeError(err, settings.encryptedKeys))
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    host,
		Address: address,
	}, nil
}

// DialContext opens a TCP connection from the far side of the SSH link.
// It satisfies guirpc.Dialer, so a GUI RPC client bound to 127.0.0.1 on the
// SSH host can be reached through it.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := c.Client.DialContext(ctx, network, address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("'%s' couldn't open a tunnel to %s", c.Host, address),
			"Check the BOINC client is listening there: ssh "+c.Host+" boinccmd --get_state")
	}
	return conn, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// Alive sends a keepalive request and reports whether the server answered.
func (c *Client) Alive() bool {
	if c == nil || c.Client == nil {
		return false
	}
	_, _, err := c.Client.SendRequest("keepalive@openssh.com", true, nil)
	return err == nil
}
