package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/boincwatch/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveThenLoad(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", ConfigFileName)

	cfg := validConfig()
	cfg.PollInterval = 3 * time.Second
	require.NoError(t, Save(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "poll_interval: 3s")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestAddClient(t *testing.T) {
	tests := []struct {
		name         string
		initialYAML  string
		client       ClientConfig
		wantContains []string
		wantErr      string
	}{
		{
			name: "append to existing list keeps comments",
			initialYAML: `# home lab
version: 1
clients:
  - name: lab # the big one
    host: 10.0.0.5
`,
			client:       ClientConfig{Name: "attic", Host: "10.0.0.9", Password: "pw"},
			wantContains: []string{"# home lab", "# the big one", "name: attic", "host: 10.0.0.9", "password: pw"},
		},
		{
			name:         "create clients key",
			initialYAML:  "version: 1\nlog_level: debug\n",
			client:       ClientConfig{Host: "cruncher"},
			wantContains: []string{"log_level: debug", "clients:", "host: cruncher"},
		},
		{
			name: "duplicate name",
			initialYAML: `clients:
  - host: cruncher
`,
			client:  ClientConfig{Host: "cruncher"},
			wantErr: "already exists",
		},
		{
			name:        "clients is not a list",
			initialYAML: "clients: nope\n",
			client:      ClientConfig{Host: "cruncher"},
			wantErr:     "not a list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			path := filepath.Join(t.TempDir(), ConfigFileName)
			writeFile(t, path, tt.initialYAML)

			err := AddClient(path, tt.client)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrConfig))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			for _, want := range tt.wantContains {
				assert.Contains(t, string(data), want)
			}

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, tt.client, cfg.Clients[len(cfg.Clients)-1])
		})
	}
}

func TestAddClient_MissingFile(t *testing.T) {
	err := AddClient(filepath.Join(t.TempDir(), "missing.yaml"), ClientConfig{Host: "x"})
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}
