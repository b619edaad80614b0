package cli

import (
	"context"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/boincwatch/internal/broadcast"
	"github.com/rileyhilliard/boincwatch/internal/logger"
	"github.com/rileyhilliard/boincwatch/pkg/guirpc"
	rpctesting "github.com/rileyhilliard/boincwatch/pkg/guirpc/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMonitor_DetachesOnExit(t *testing.T) {
	peer := startPeer(t, rpctesting.StaticHandler(rpctesting.SampleResult("r1")))
	client := guirpc.NewClient(peer.Source(""), guirpc.WithLogger(logger.Noop()))

	pool := broadcast.New([]broadcast.Loader{broadcast.ClientLoader(client)},
		broadcast.WithInterval(10*time.Millisecond),
		broadcast.WithLogger(logger.Noop()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runMonitor(ctx, pool, []string{client.HostInfo().Name}, 10*time.Millisecond,
			tea.WithInput(nil), tea.WithOutput(io.Discard))
	}()

	require.Eventually(t, func() bool {
		return pool.Listeners() == 1 && len(peer.Methods()) > 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not exit after cancel")
	}
	assert.Equal(t, 0, pool.Listeners())

	polls := len(peer.Methods())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, polls, len(peer.Methods()), "no polls after exit")
}
