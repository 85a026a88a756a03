package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-focus/internal/httpc"
	"github.com/teslashibe/go-focus/pkg/focus"
	"github.com/teslashibe/go-focus/pkg/protocol"
	"github.com/teslashibe/go-focus/pkg/session"
	"github.com/teslashibe/go-focus/pkg/web"
)

func simulate(t *testing.T, sim simulation) []byte {
	t.Helper()
	var buf bytes.Buffer
	n, err := writeSimulation(&buf, sim)
	require.NoError(t, err)
	require.Equal(t, sim.Calibrate+sim.Blink+sim.Recover+sim.Away+sim.Absent, n)
	return buf.Bytes()
}

func TestWriteSimulation(t *testing.T) {
	lines := strings.Split(strings.TrimSpace(string(simulate(t, defaultSimulation()))), "\n")
	require.Len(t, lines, 120)

	counts := map[protocol.MessageType]int{}
	for _, line := range lines {
		msg, err := protocol.ParseMessage([]byte(line))
		require.NoError(t, err)
		assert.Zero(t, msg.Timestamp, "unstamped by default")
		counts[msg.Type]++
	}
	assert.Equal(t, 90, counts[protocol.TypeLandmarks])
	assert.Equal(t, 30, counts[protocol.TypeNoFace])
}

func TestWriteSimulation_Stamped(t *testing.T) {
	sim := defaultSimulation()
	sim.Start = 1_700_000_000_000
	sim.FPS = 10
	lines := strings.Split(strings.TrimSpace(string(simulate(t, sim))), "\n")

	first, err := protocol.ParseMessage([]byte(lines[0]))
	require.NoError(t, err)
	second, err := protocol.ParseMessage([]byte(lines[1]))
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000_000), first.Timestamp)
	assert.Equal(t, int64(100), second.Timestamp-first.Timestamp)
}

func TestWriteSimulation_Invalid(t *testing.T) {
	sim := defaultSimulation()
	sim.FPS = 0
	_, err := writeSimulation(&bytes.Buffer{}, sim)
	assert.Error(t, err)

	sim = defaultSimulation()
	sim.Away = -1
	_, err = writeSimulation(&bytes.Buffer{}, sim)
	assert.Error(t, err)
}

func TestReplay_DemoScenario(t *testing.T) {
	data := simulate(t, defaultSimulation())

	result, err := replay(bytes.NewReader(data), focus.PresetDefault, session.DefaultReportInterval, 30)
	require.NoError(t, err)
	assert.Equal(t, 120, result.Frames)
	assert.Zero(t, result.Rejected)

	// Reports at 0s and then the first frame at or past each further second.
	require.Len(t, result.Rows, 4)
	assert.Equal(t, 100, result.Rows[0].State.Score)
	assert.Equal(t, focus.StatusCalibrating, result.Rows[0].State.Status)
	assert.Equal(t, 100, result.Rows[1].State.Score)
	assert.Equal(t, focus.StatusFocused, result.Rows[1].State.Status)
	assert.Equal(t, focus.StatusNoFace, result.Rows[3].State.Status)

	assert.Equal(t, 0, result.Final.Score)
	assert.Equal(t, 120, result.Final.Frame)
	assert.InDelta(t, 3.97, result.Duration.Seconds(), 0.01)

	rewards := result.Rewards()
	assert.Zero(t, rewards.Minutes, "under a minute")
	assert.Zero(t, rewards.Coins)
}

func TestReplay_UsesTimestamps(t *testing.T) {
	sim := defaultSimulation()
	sim.Start = 1_700_000_000_000
	sim.FPS = 10 // 120 frames span 11.9s

	result, err := replay(bytes.NewReader(simulate(t, sim)), focus.PresetDefault, 2*time.Second, 30)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 6)
	assert.InDelta(t, 11.9, result.Duration.Seconds(), 0.001)
	assert.Equal(t, 2*time.Second, result.Rows[1].Offset)
}

func TestReplay_SkipsBadFrames(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"ping","data":{"id":"p"}}`,
		``,
		`{"type":"landmarks","data":{"points":[{"x":0.1,"y":0.1}]}}`,
		`{"type":"landmarks","data":{"points":[]}}`,
		`{"type":"no_face"}`,
	}, "\n")

	result, err := replay(strings.NewReader(input), focus.PresetDefault, time.Second, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Frames)
	assert.Equal(t, 2, result.Rejected)
	assert.Equal(t, 90, result.Final.Score)
}

func TestReplay_Errors(t *testing.T) {
	_, err := replay(strings.NewReader("{\"type\":\"no_face\"}\n{oops\n"), focus.PresetDefault, time.Second, 30)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = replay(strings.NewReader(""), "turbo", time.Second, 30)
	assert.ErrorIs(t, err, focus.ErrInvalidConfig)

	_, err = replay(strings.NewReader(""), focus.PresetDefault, time.Second, 0)
	assert.Error(t, err)
}

func TestPrintReplay(t *testing.T) {
	result, err := replay(bytes.NewReader(simulate(t, defaultSimulation())), focus.PresetDefault, time.Second, 30)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printReplay(&out, result))
	text := out.String()
	assert.Contains(t, strings.ToUpper(text), "SCORE")
	assert.Contains(t, text, "no_face")
	assert.Contains(t, text, "frames: 120")
	assert.Contains(t, text, "rejected: 0")
}

func TestCommands_SimulateThenReplay(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "demo.jsonl")

	sim := newRootCmd()
	sim.SetArgs([]string{"simulate", "--absent", "10", "-o", path})
	sim.SetErr(&bytes.Buffer{})
	require.NoError(t, sim.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 100, bytes.Count(data, []byte("\n")))

	var out bytes.Buffer
	rep := newRootCmd()
	rep.SetArgs([]string{"replay", "--preset", "lenient", path})
	rep.SetOut(&out)
	require.NoError(t, rep.Execute())
	assert.Contains(t, out.String(), "frames: 100")

	bad := newRootCmd()
	bad.SetArgs([]string{"replay", "--preset", "turbo", path})
	bad.SetOut(&bytes.Buffer{})
	assert.Error(t, bad.Execute())
}

func TestStreamReplay(t *testing.T) {
	store, err := session.NewSQLStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	manager, err := session.NewManager(store, session.Options{})
	require.NoError(t, err)
	server := web.NewServer(web.Options{}, manager)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(ctx, ln) }()

	api := httpc.NewAPI("http://"+ln.Addr().String(), "alice")
	var out bytes.Buffer
	data := simulate(t, defaultSimulation())
	require.NoError(t, streamReplay(ctx, bytes.NewReader(data), api, "", true, &out))

	text := out.String()
	assert.Contains(t, text, "started session")
	assert.Contains(t, text, "sent 120 frames")
	assert.Contains(t, text, "(0 rejected)")
	assert.Contains(t, text, "last score: 0")
	assert.Contains(t, text, "coins: 0")

	sessions, err := manager.List("alice")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].Active())

	// Streaming into an ended session is refused at the handshake.
	err = streamReplay(ctx, bytes.NewReader(nil), api, sessions[0].ID, true, &bytes.Buffer{})
	assert.Error(t, err)

	// Another user cannot stream into alice's session.
	live, err := manager.Start("alice")
	require.NoError(t, err)
	bob := httpc.NewAPI("http://"+ln.Addr().String(), "bob")
	err = streamReplay(ctx, bytes.NewReader(data), bob, live.ID, false, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial ingest")
	logs, err := manager.Logs("alice", live.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
