package ariabridge_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aria-bridge/bridge-go/cmd/ariabridge/commands"
	"github.com/aria-bridge/bridge-go/internal/testpeer"
	"github.com/aria-bridge/bridge-go/pkg/bridge"
	"github.com/aria-bridge/bridge-go/pkg/connection"
	"github.com/aria-bridge/bridge-go/pkg/control"
	"github.com/aria-bridge/bridge-go/pkg/log"
	"github.com/aria-bridge/bridge-go/pkg/wire"
)

const waitTimeout = 5 * time.Second

// TestSessionLifecycleWithProtocolLog runs a client through connect,
// control, peer restart and shutdown, then reads back the recorded
// protocol log.
func TestSessionLifecycleWithProtocolLog(t *testing.T) {
	peer := testpeer.New(t, testpeer.WithSecret("it-secret"), testpeer.WithClientID("client-it"))

	logPath := filepath.Join(t.TempDir(), "session.blog")
	plog, err := log.NewFileLogger(logPath)
	require.NoError(t, err)

	client, err := bridge.New(bridge.Config{
		URL:               peer.URL(),
		Secret:            "it-secret",
		ProjectID:         "proj-it",
		HeartbeatInterval: 50 * time.Millisecond,
		HeartbeatTimeout:  time.Second,
		BackoffInitial:    10 * time.Millisecond,
		BackoffMax:        50 * time.Millisecond,
	},
		bridge.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		bridge.WithProtocolLogger(plog),
	)
	require.NoError(t, err)

	client.OnControl(control.HandlerFunc(func(ctx context.Context, req control.Request) (any, error) {
		if req.Action == "fail" {
			return nil, errors.New("nope")
		}
		return map[string]any{"action": req.Action}, nil
	}))

	require.NoError(t, client.Start(context.Background()))
	peer.WaitForType(t, "hello", 1, waitTimeout)
	require.Eventually(t, client.Connected, waitTimeout, 5*time.Millisecond)
	assert.Equal(t, "client-it", client.ClientID())

	require.NoError(t, peer.SendControl("r1", "status", nil))
	require.NoError(t, peer.SendControl("r2", "fail", nil))
	peer.WaitForType(t, "control_result", 2, waitTimeout)

	require.NoError(t, client.SendConsole("first", wire.LevelInfo))
	peer.WaitForType(t, "console", 1, waitTimeout)

	// Drop the session; events sent meanwhile are buffered or delivered on
	// the next session, never lost.
	peer.CloseActive()
	require.Eventually(t, func() bool { return !client.Connected() }, waitTimeout, time.Millisecond)
	require.NoError(t, client.SendError("while reconnecting", "at it()"))
	peer.WaitForConnections(t, 2, waitTimeout)
	peer.WaitForType(t, "error", 1, waitTimeout)
	assert.Equal(t, 2, len(peer.OfType("hello")))

	client.Stop()
	assert.Equal(t, connection.StateStopped, client.State())
	assert.ErrorIs(t, client.SendConsole("late", wire.LevelInfo), bridge.ErrStopped)
	require.NoError(t, plog.Close())

	reader, err := log.NewReader(logPath)
	require.NoError(t, err)
	defer reader.Close()

	stats, err := commands.Collect(reader)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(stats.Sessions), 2, "one session per connection")
	assert.Equal(t, 2, stats.MessagesByType["auth"])
	assert.Equal(t, 2, stats.MessagesByType["hello"])
	assert.Equal(t, 2, stats.MessagesByType["control_request"])
	assert.Equal(t, 2, stats.MessagesByType["control_result"])
	assert.Equal(t, 1, stats.ControlFailures)
	assert.Equal(t, 1, stats.MessagesByType["console"])
	assert.Equal(t, 1, stats.MessagesByType["error"])
	assert.Positive(t, stats.EventsByCategory[log.CategoryState])

	for _, sess := range stats.Sessions {
		if sess.ClientID != "" {
			assert.Equal(t, "client-it", sess.ClientID)
		}
	}
}
