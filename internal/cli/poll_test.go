package cli

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/rileyhilliard/boincwatch/internal/errors"
	"github.com/rileyhilliard/boincwatch/pkg/guirpc"
	rpctesting "github.com/rileyhilliard/boincwatch/pkg/guirpc/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	return env
}

func TestPollCommand_JSON(t *testing.T) {
	open := startPeer(t, rpctesting.StaticHandler(rpctesting.SampleResult("r1"), rpctesting.SampleResult("r2")))
	locked := startPeer(t, rpctesting.AuthHandler("secret", "n0nce", rpctesting.StaticHandler(rpctesting.SampleResult("r3"))))
	useConfig(t, peerClient("open", open, ""), peerClient("locked", locked, "secret"))

	var buf bytes.Buffer
	err := pollCommand(context.Background(), &buf, PollOptions{})
	require.NoError(t, err)

	env := decodeEnvelope(t, &buf)
	assert.Equal(t, true, env["success"])

	data := env["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["failed"])
	clients := data["clients"].([]interface{})
	require.Len(t, clients, 2)

	first := clients[0].(map[string]interface{})
	assert.Equal(t, "open", first["client"])
	assert.Equal(t, true, first["ok"])
	snapshot := first["snapshot"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"name": "open"}, snapshot["host"])
	assert.Len(t, snapshot["results"], 2)

	second := clients[1].(map[string]interface{})
	assert.Equal(t, "locked", second["client"])
	assert.Len(t, second["snapshot"].(map[string]interface{})["results"], 1)
}

func TestPollCommand_PartialFailure(t *testing.T) {
	good := startPeer(t, rpctesting.StaticHandler(rpctesting.SampleResult("r1")))
	useConfig(t, peerClient("good", good, ""), deadClient(t, "gone"))

	var buf bytes.Buffer
	err := pollCommand(context.Background(), &buf, PollOptions{})

	var exitErr *errors.ExitError
	require.True(t, stderrors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)

	env := decodeEnvelope(t, &buf)
	assert.Equal(t, false, env["success"])
	data := env["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["failed"])

	clients := data["clients"].([]interface{})
	assert.Equal(t, true, clients[0].(map[string]interface{})["ok"])
	gone := clients[1].(map[string]interface{})
	assert.Equal(t, false, gone["ok"])
	assert.NotContains(t, gone, "snapshot")
	assert.Equal(t, errors.ErrConnection, gone["error"].(map[string]interface{})["code"])
}

func TestPollCommand_WrongPassword(t *testing.T) {
	locked := startPeer(t, rpctesting.AuthHandler("secret", "n0nce", rpctesting.StaticHandler()))
	useConfig(t, peerClient("locked", locked, "guess"))

	var buf bytes.Buffer
	err := pollCommand(context.Background(), &buf, PollOptions{JSON: true})
	require.Error(t, err)

	clients := decodeEnvelope(t, &buf)["data"].(map[string]interface{})["clients"].([]interface{})
	assert.Equal(t, errors.ErrUnauthorized, clients[0].(map[string]interface{})["error"].(map[string]interface{})["code"])
}

func TestPollCommand_ClientFilter(t *testing.T) {
	a := startPeer(t, rpctesting.StaticHandler())
	b := startPeer(t, rpctesting.StaticHandler())
	useConfig(t, peerClient("a", a, ""), peerClient("b", b, ""))

	var buf bytes.Buffer
	require.NoError(t, pollCommand(context.Background(), &buf, PollOptions{Clients: "b"}))

	clients := decodeEnvelope(t, &buf)["data"].(map[string]interface{})["clients"].([]interface{})
	require.Len(t, clients, 1)
	assert.Equal(t, "b", clients[0].(map[string]interface{})["client"])
	assert.Empty(t, a.Requests())
}

func TestPollCommand_ConfigErrorAsJSON(t *testing.T) {
	useConfig(t)

	var buf bytes.Buffer
	err := pollCommand(context.Background(), &buf, PollOptions{})

	var exitErr *errors.ExitError
	require.True(t, stderrors.As(err, &exitErr))
	env := decodeEnvelope(t, &buf)
	assert.Equal(t, false, env["success"])
	assert.Equal(t, errors.ErrConfig, env["error"].(map[string]interface{})["code"])
}

func TestRenderPollText(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	running := guirpc.Result{
		Name:           "einstein_O3_1",
		ProjectURL:     "https://einsteinathome.org/",
		State:          guirpc.ResultFilesDownloaded,
		ReportDeadline: now.Add(48 * time.Hour),
		ActiveTask: guirpc.ActiveTask{
			ActiveTaskState: guirpc.TaskExecuting,
			FractionDone:    0.25,
			ElapsedTime:     90,
		},
	}
	late := guirpc.Result{
		Name:           "rosetta_7",
		ProjectURL:     "https://boinc.bakerlab.org/rosetta/",
		State:          guirpc.ResultFilesDownloaded,
		ReportDeadline: now.Add(-time.Hour),
	}

	failure := errors.WrapWithCode(fmt.Errorf("connection refused"), errors.ErrConnection,
		"Cannot connect to laptop:31416", "Check that the BOINC client is running")

	out := PollOutput{
		Clients: []ClientPoll{
			{
				Client: "cruncher", OK: true, Took: "12ms",
				Snapshot: &guirpc.SimpleGuiInfo{Host: guirpc.HostInfo{Name: "cruncher"}, Results: []guirpc.Result{running, late}},
			},
			{Client: "idle", OK: true, Took: "3ms", Snapshot: &guirpc.SimpleGuiInfo{Host: guirpc.HostInfo{Name: "idle"}}},
			{Client: "laptop", Took: "1s", Error: ErrorToJSON(failure), err: failure},
		},
		Failed: 1,
	}

	text := renderPollText(out, now)
	for _, want := range []string{
		"cruncher", "einsteinathome.org, boinc.bakerlab.org/rosetta",
		"idle",
		"Cannot connect to laptop:31416: connection refused",
		"einstein_O3_1", "running", "25.0%", "1m30s",
		"rosetta_7", "ready", " !",
		"laptop: Check that the BOINC client is running",
	} {
		assert.Contains(t, text, want)
	}
}

func TestProjectSummary(t *testing.T) {
	assert.Equal(t, "idle", projectSummary(nil))
	assert.Equal(t, "a.org, b.org/x", projectSummary([]guirpc.Result{
		{ProjectURL: "https://a.org/"},
		{ProjectURL: "http://b.org/x/"},
		{ProjectURL: "https://a.org/"},
	}))
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}
