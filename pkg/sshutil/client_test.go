package sshutil

import (
	"context"
	"crypto/ed25519"
	"encoding/pem"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/boincwatch/internal/errors"
	"github.com/rileyhilliard/boincwatch/internal/logger"
	"github.com/rileyhilliard/boincwatch/pkg/guirpc"
	rpctesting "github.com/rileyhilliard/boincwatch/pkg/guirpc/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Timeout:         5 * time.Second,
		ConfigPath:      filepath.Join(t.TempDir(), "no-config"),
		KnownHostsPath:  filepath.Join(t.TempDir(), "known_hosts"),
		Signers:         []ssh.Signer{newSigner(t)},
		SkipAgent:       true,
		SkipDefaultKeys: true,
	}
}

func trust(t *testing.T, opts Options, addr string, key ssh.PublicKey) {
	t.Helper()
	line := knownhosts.Line([]string{knownhosts.Normalize(addr)}, key)
	require.NoError(t, os.WriteFile(opts.KnownHostsPath, []byte(line+"\n"), 0o600))
}

func TestResolveSSHSettings(t *testing.T) {
	t.Setenv("USER", "alice")
	configPath := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(configPath, []byte(`
Host lab
    HostName 10.0.0.5
    User boinc
    Port 2222
    IdentityFile ~/.ssh/id_lab
`), 0o600))

	tests := []struct {
		name     string
		host     string
		hostname string
		port     string
		user     string
	}{
		{name: "plain host", host: "example.com", hostname: "example.com", port: "22", user: "alice"},
		{name: "user at host", host: "bob@example.com", hostname: "example.com", port: "22", user: "bob"},
		{name: "host with port", host: "example.com:2200", hostname: "example.com", port: "2200", user: "alice"},
		{name: "full form", host: "admin@server.example.com:2222", hostname: "server.example.com", port: "2222", user: "admin"},
		{name: "ipv6 with port", host: "[::1]:2222", hostname: "::1", port: "2222", user: "alice"},
		{name: "alias from config", host: "lab", hostname: "10.0.0.5", port: "2222", user: "boinc"},
		{name: "explicit values beat config", host: "root@lab:22", hostname: "10.0.0.5", port: "22", user: "root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := resolveSSHSettings(tt.host, configPath)
			assert.Equal(t, tt.hostname, s.hostname)
			assert.Equal(t, tt.port, s.port)
			assert.Equal(t, tt.user, s.user)
		})
	}

	assert.Contains(t, resolveSSHSettings("lab", configPath).identityFile, "id_lab")
}

func TestPreprocessSSHConfig_StopsAtMatch(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(configPath, []byte("Host a\n  HostName 1.2.3.4\nMatch host b\n  User x\n"), 0o600))

	content, line, err := preprocessSSHConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, 3, line)
	assert.NotContains(t, string(content), "Match")
}

func TestDial_KnownHost(t *testing.T) {
	srv := startTestServer(t)
	opts := testOptions(t)
	trust(t, opts, srv.Addr(), srv.hostKey.PublicKey())

	client, err := Dial(context.Background(), "boinc@"+srv.Addr(), opts)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, srv.Addr(), client.Address)
	assert.Equal(t, "boinc", client.User())
	assert.True(t, client.Alive())
}

func TestDial_HostKeyMismatch(t *testing.T) {
	srv := startTestServer(t)
	opts := testOptions(t)
	trust(t, opts, srv.Addr(), newSigner(t).PublicKey())

	_, err := Dial(context.Background(), srv.Addr(), opts)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSSH))

	var mismatch *HostKeyMismatchError
	require.True(t, stderrors.As(err, &mismatch))
	assert.Equal(t, "ssh-ed25519", mismatch.ReceivedType)
	assert.Contains(t, mismatch.Suggestion(), "ssh-keygen -R 127.0.0.1")
}

func TestDial_UnknownHost(t *testing.T) {
	srv := startTestServer(t)
	opts := testOptions(t)

	_, err := Dial(context.Background(), srv.Addr(), opts)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSSH))
	assert.Contains(t, err.Error(), "known_hosts")
}

func TestDial_InsecureIgnoreHostKey(t *testing.T) {
	srv := startTestServer(t)
	opts := testOptions(t)
	opts.InsecureIgnoreHostKey = true

	client, err := Dial(context.Background(), srv.Addr(), opts)
	require.NoError(t, err)
	client.Close()
}

func TestDial_NoAuthMethods(t *testing.T) {
	opts := testOptions(t)
	opts.Signers = nil

	_, err := Dial(context.Background(), "127.0.0.1:1", opts)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSSH))
	assert.Contains(t, err.Error(), "No SSH auth methods")
}

func TestDial_Refused(t *testing.T) {
	srv := startTestServer(t)
	addr := srv.Addr()
	srv.Close()

	opts := testOptions(t)
	_, err := Dial(context.Background(), addr, opts)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSSH))
	assert.Contains(t, err.Error(), "Is SSH running")
}

func TestKeyFileAuth(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dir := t.TempDir()

	plain, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	plainPath := filepath.Join(dir, "id_plain")
	require.NoError(t, os.WriteFile(plainPath, pem.EncodeToMemory(plain), 0o600))

	encrypted, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("hunter2"))
	require.NoError(t, err)
	encPath := filepath.Join(dir, "id_enc")
	require.NoError(t, os.WriteFile(encPath, pem.EncodeToMemory(encrypted), 0o600))

	auth, err := keyFileAuth(plainPath)
	require.NoError(t, err)
	assert.NotNil(t, auth)

	_, err = keyFileAuth(encPath)
	var encErr *EncryptedKeyError
	require.True(t, stderrors.As(err, &encErr))
	assert.Equal(t, encPath, encErr.Path)

	_, err = keyFileAuth(filepath.Join(dir, "missing"))
	assert.True(t, os.IsNotExist(err))
}

func TestBuildSSHConfig_EncryptedIdentityOnly(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	encrypted, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("hunter2"))
	require.NoError(t, err)
	encPath := filepath.Join(t.TempDir(), "id_enc")
	require.NoError(t, os.WriteFile(encPath, pem.EncodeToMemory(encrypted), 0o600))

	opts := testOptions(t)
	opts.Signers = nil
	_, err = buildSSHConfig(&sshSettings{identityFile: encPath}, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encrypted")
	assert.Contains(t, err.Error(), "ssh-add")
}

func TestSuggestions(t *testing.T) {
	dial := []struct {
		errMsg   string
		contains string
	}{
		{"dial tcp: connection refused", "Is SSH running"},
		{"connect: no route to host", "Can't route"},
		{"i/o timeout", "timed out"},
		{"something else", "ping <host>"},
	}
	for _, tt := range dial {
		assert.Contains(t, suggestionForDialError(stderrors.New(tt.errMsg)), tt.contains)
	}

	handshake := []struct {
		errMsg   string
		keys     []string
		contains string
	}{
		{"ssh: unable to authenticate", nil, "ssh-add -l"},
		{"ssh: unable to authenticate", []string{"/k/id"}, "ssh-add"},
		{"knownhosts: key is unknown", nil, "known_hosts"},
		{"ssh: host key mismatch", nil, "Host key issue"},
		{"eof", nil, "Something went wrong"},
	}
	for _, tt := range handshake {
		assert.Contains(t, suggestionForHandshakeError(stderrors.New(tt.errMsg), tt.keys), tt.contains)
	}
}

func TestTunnel_PollsThroughSSH(t *testing.T) {
	srv := startTestServer(t)
	peer, err := rpctesting.StartPeer(rpctesting.AuthHandler("pw", "n0nce",
		rpctesting.StaticHandler(rpctesting.SampleResult("r1"))))
	require.NoError(t, err)
	defer peer.Close()

	opts := testOptions(t)
	opts.InsecureIgnoreHostKey = true
	tunnel := NewTunnel("boinc@"+srv.Addr(), opts)
	defer tunnel.Close()

	client := guirpc.NewClient(peer.Source("pw"), guirpc.WithDialer(tunnel), guirpc.WithLogger(logger.Noop()))

	for i := 0; i < 3; i++ {
		info, err := client.Poll(context.Background())
		require.NoError(t, err)
		require.Len(t, info.Results, 1)
	}
	assert.Equal(t, 1, srv.Handshakes(), "one SSH connection serves every poll")

	// A dropped SSH connection is replaced on the next poll.
	srv.DropConnections()
	_, err = client.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Handshakes())
}

func TestTunnel_TargetRefused(t *testing.T) {
	srv := startTestServer(t)
	opts := testOptions(t)
	opts.InsecureIgnoreHostKey = true
	tunnel := NewTunnel(srv.Addr(), opts)
	defer tunnel.Close()

	_, err := tunnel.DialContext(context.Background(), "tcp", "127.0.0.1:1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSSH))
	assert.Equal(t, 1, srv.Handshakes(), "a refused target doesn't cost a reconnect")
}

func TestTunnel_DialFailure(t *testing.T) {
	tunnel := NewTunnel("unreachable", Options{})
	tunnel.dial = func(context.Context, string, Options) (*Client, error) {
		return nil, errors.New(errors.ErrSSH, "boom", "")
	}

	_, err := tunnel.DialContext(context.Background(), "tcp", "127.0.0.1:31416")
	assert.True(t, errors.IsCode(err, errors.ErrSSH))
	assert.NoError(t, tunnel.Close())
	assert.Equal(t, "unreachable", tunnel.Host())
}
