package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/boincwatch/internal/config"
	"github.com/rileyhilliard/boincwatch/internal/errors"
	rpctesting "github.com/rileyhilliard/boincwatch/pkg/guirpc/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initPath(t *testing.T) string {
	t.Helper()
	t.Setenv(config.ClientsEnv, "")
	return filepath.Join(t.TempDir(), config.ConfigFileName)
}

func TestInit_CreatesConfig(t *testing.T) {
	path := initPath(t)

	var out bytes.Buffer
	err := Init(context.Background(), &out, InitOptions{
		Path:           path,
		Name:           "cruncher",
		Host:           "192.168.1.20",
		Password:       "secret",
		NonInteractive: true,
		SkipCheck:      true,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Created "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Clients, 1)
	assert.Equal(t, config.ClientConfig{Name: "cruncher", Host: "192.168.1.20", Password: "secret"}, cfg.Clients[0])
	assert.Equal(t, config.DefaultConfig().PollInterval, cfg.PollInterval)
}

func TestInit_AddsToExistingConfig(t *testing.T) {
	path := initPath(t)
	base := InitOptions{Path: path, NonInteractive: true, SkipCheck: true}

	first := base
	first.Host = "10.0.0.1"
	require.NoError(t, Init(context.Background(), &bytes.Buffer{}, first))

	second := base
	second.Host = "10.0.0.2"
	second.Port = 31417
	var out bytes.Buffer
	require.NoError(t, Init(context.Background(), &out, second))
	assert.Contains(t, out.String(), "Added 10.0.0.2")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Clients, 2)
	assert.Equal(t, 31417, cfg.Clients[1].Port)

	replace := base
	replace.Host = "10.0.0.3"
	replace.Overwrite = true
	require.NoError(t, Init(context.Background(), &bytes.Buffer{}, replace))

	cfg, err = config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Clients, 1)
	assert.Equal(t, "10.0.0.3", cfg.Clients[0].Host)
}

func TestInit_ChecksClientFirst(t *testing.T) {
	p := startPeer(t, rpctesting.AuthHandler("secret", "n0nce", rpctesting.StaticHandler(rpctesting.SampleResult("r1"))))
	src := p.Source("secret")

	t.Run("reachable", func(t *testing.T) {
		path := initPath(t)
		var out bytes.Buffer
		err := Init(context.Background(), &out, InitOptions{
			Path: path, Host: src.Host, Port: src.Port, Password: "secret", NonInteractive: true,
		})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Connected, 1 tasks")
		assert.FileExists(t, path)
	})

	t.Run("wrong password", func(t *testing.T) {
		path := initPath(t)
		err := Init(context.Background(), &bytes.Buffer{}, InitOptions{
			Path: path, Host: src.Host, Port: src.Port, Password: "guess", NonInteractive: true,
		})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrUnauthorized))
		assert.NoFileExists(t, path)
	})
}

func TestBuildClient(t *testing.T) {
	tests := []struct {
		name    string
		opts    InitOptions
		want    config.ClientConfig
		wantErr string
	}{
		{
			name: "host only",
			opts: InitOptions{Host: " 10.0.0.1 "},
			want: config.ClientConfig{Host: "10.0.0.1"},
		},
		{
			name: "ssh defaults to loopback",
			opts: InitOptions{SSH: "gpu-box"},
			want: config.ClientConfig{Host: "127.0.0.1", SSH: "gpu-box"},
		},
		{
			name: "name equal to host is dropped",
			opts: InitOptions{Name: "laptop", Host: "laptop"},
			want: config.ClientConfig{Host: "laptop"},
		},
		{
			name:    "missing host",
			opts:    InitOptions{},
			wantErr: "Client host is required",
		},
		{
			name:    "port out of range",
			opts:    InitOptions{Host: "x", Port: 70000},
			wantErr: "out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildClient(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrConfig))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidatePort(t *testing.T) {
	assert.NoError(t, validatePort(""))
	assert.NoError(t, validatePort(" 31416 "))
	assert.Error(t, validatePort("0"))
	assert.Error(t, validatePort("65536"))
	assert.Error(t, validatePort("http"))
}

func TestNonInteractiveEnv(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("BOINCWATCH_NON_INTERACTIVE", "")
	assert.False(t, nonInteractiveEnv())

	t.Setenv("BOINCWATCH_NON_INTERACTIVE", "true")
	assert.True(t, nonInteractiveEnv())

	t.Setenv("BOINCWATCH_NON_INTERACTIVE", "")
	t.Setenv("CI", "1")
	assert.True(t, nonInteractiveEnv())
}
