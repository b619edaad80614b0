package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rileyhilliard/boincwatch/internal/config"
	"github.com/rileyhilliard/boincwatch/internal/server"
	rpctesting "github.com/rileyhilliard/boincwatch/pkg/guirpc/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServe(t *testing.T, cfg *config.Config, opts ServeOptions) (string, func() error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, opts, ln) }()

	stop := func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(15 * time.Second):
			return fmt.Errorf("serve did not return")
		}
	}
	t.Cleanup(func() { _ = stop() })
	return "http://" + ln.Addr().String(), stop
}

func TestServe_HealthAndMetrics(t *testing.T) {
	p := startPeer(t, rpctesting.StaticHandler(rpctesting.SampleResult("r1")))
	cfg := useConfig(t, peerClient("cruncher", p, ""))

	base, stop := startServe(t, cfg, ServeOptions{})

	resp, err := http.Get(base + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health server.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, []string{"cruncher"}, health.Sources)
	assert.Equal(t, 0, health.Listeners)

	metricsResp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(metricsResp.Body)
	metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
	assert.Contains(t, string(body), "boincwatch_consumers")

	require.NoError(t, stop())
}

func TestServe_StreamsAndPollsOnlyWhileListening(t *testing.T) {
	p := startPeer(t, rpctesting.StaticHandler(rpctesting.SampleResult("r1")))
	cfg := useConfig(t, peerClient("cruncher", p, ""))

	base, stop := startServe(t, cfg, ServeOptions{NoMetrics: true})

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, p.Requests(), "no polls without a listener")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/results", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	var data string
	for !strings.HasPrefix(data, "data:") {
		data, err = reader.ReadString('\n')
		require.NoError(t, err)
	}
	assert.Contains(t, data, `"name":"cruncher"`)
	assert.NotEmpty(t, p.Requests())

	metricsResp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	metricsResp.Body.Close()
	assert.NotEqual(t, http.StatusOK, metricsResp.StatusCode)

	cancel()
	require.NoError(t, stop())
}

func TestListenAddr(t *testing.T) {
	listen := config.ListenConfig{Host: "127.0.0.1", Port: 8080}

	tests := []struct {
		name string
		opts ServeOptions
		want string
	}{
		{name: "config", want: "127.0.0.1:8080"},
		{name: "host flag", opts: ServeOptions{Host: "0.0.0.0"}, want: "0.0.0.0:8080"},
		{name: "port flag", opts: ServeOptions{Port: 9000}, want: "127.0.0.1:9000"},
		{name: "ipv6", opts: ServeOptions{Host: "::1"}, want: "[::1]:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, listenAddr(listen, tt.opts))
		})
	}
}
