package handler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slashchat/internal/pkg/errs"
	"slashchat/internal/pkg/logx"
)

// newTestWSClient opens a session through the controller and couples it to a
// wsClient without a network connection, which processInbound never touches.
func newTestWSClient(t *testing.T, deps *AppDeps) *wsClient {
	t.Helper()

	sess, customErr := deps.Controller.SignUp(context.Background(), "alice", "pw1", "pw1")
	require.Nil(t, customErr)

	return &wsClient{
		sess:   sess,
		ctrl:   deps.Controller,
		send:   make(chan []byte, sendQueueSize),
		logger: logx.Logger().With().Str("component", "WSClient").Logger(),
	}
}

// queuedFrame pops one frame off the send queue, or fails if none is queued.
func queuedFrame(t *testing.T, c *wsClient) wsFrame {
	t.Helper()

	select {
	case data := <-c.send:
		var frame wsFrame
		require.NoError(t, json.Unmarshal(data, &frame))
		return frame
	default:
		t.Fatal("expected a queued outbound frame")
		return wsFrame{}
	}
}

func assertNoQueuedFrame(t *testing.T, c *wsClient) {
	t.Helper()

	select {
	case data := <-c.send:
		t.Fatalf("unexpected outbound frame: %s", data)
	default:
	}
}

func payloadCode(t *testing.T, frame wsFrame) int {
	t.Helper()

	payload, ok := frame.Payload.(map[string]any)
	require.True(t, ok, "frame payload is not an object")
	code, ok := payload["code"].(float64)
	require.True(t, ok, "frame payload carries no code")
	return int(code)
}

func TestProcessInbound_MessageAnswersWithAward(t *testing.T) {
	deps, _, _ := newTestDeps()
	c := newTestWSClient(t, deps)

	done := c.processInbound([]byte(`{"type":"message","payload":{"text":"hi"}}`))
	assert.False(t, done)

	frame := queuedFrame(t, c)
	require.Equal(t, frameAward, frame.Type)

	payload, ok := frame.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(5), payload["xp"])
	assert.Equal(t, float64(1), payload["level"])
	assert.Equal(t, false, payload["leveledUp"])
}

func TestProcessInbound_EmptyMessageAnswersWithError(t *testing.T) {
	deps, _, _ := newTestDeps()
	c := newTestWSClient(t, deps)

	done := c.processInbound([]byte(`{"type":"message","payload":{"text":"   "}}`))
	assert.False(t, done)

	frame := queuedFrame(t, c)
	require.Equal(t, frameError, frame.Type)
	assert.Equal(t, errs.ErrEmptyMessage, payloadCode(t, frame))
}

func TestProcessInbound_AwardFailureAnswersWithError(t *testing.T) {
	deps, users, _ := newTestDeps()
	c := newTestWSClient(t, deps)

	users.mu.Lock()
	users.addXPErr = errors.New("connection reset")
	users.mu.Unlock()

	done := c.processInbound([]byte(`{"type":"message","payload":{"text":"hi"}}`))
	assert.False(t, done)

	// A failed award must never surface as an award frame.
	frame := queuedFrame(t, c)
	require.Equal(t, frameError, frame.Type)
	assert.Equal(t, errs.ErrRemoteStore, payloadCode(t, frame))
	assertNoQueuedFrame(t, c)
}

func TestProcessInbound_LogoutClosesSession(t *testing.T) {
	deps, _, presence := newTestDeps()
	c := newTestWSClient(t, deps)
	require.True(t, presence.has("alice"))

	done := c.processInbound([]byte(`{"type":"logout"}`))
	assert.True(t, done)
	assert.False(t, presence.has("alice"))

	c.mu.Lock()
	assert.True(t, c.loggedOut)
	c.mu.Unlock()

	// The session is gone; a late message frame yields an error, not an award.
	done = c.processInbound([]byte(`{"type":"message","payload":{"text":"hi"}}`))
	assert.False(t, done)

	frame := queuedFrame(t, c)
	require.Equal(t, frameError, frame.Type)
	assert.Equal(t, errs.ErrNoActiveSession, payloadCode(t, frame))
}

func TestProcessInbound_IgnoresGarbage(t *testing.T) {
	deps, _, _ := newTestDeps()
	c := newTestWSClient(t, deps)

	assert.False(t, c.processInbound([]byte(`{"type":`)))
	assertNoQueuedFrame(t, c)

	assert.False(t, c.processInbound([]byte(`{"type":"subscribe"}`)))
	assertNoQueuedFrame(t, c)
}
