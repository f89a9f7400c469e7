package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testLogger())
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

// newStubClient builds a client without a network connection so hub behavior
// can be tested through the send channel alone.
func newStubClient(hub *Hub, buffer int) *Client {
	return &Client{
		hub:         hub,
		send:        make(chan []byte, buffer),
		id:          uuid.New().String(),
		remoteAddr:  "stub",
		connectedAt: time.Now(),
		logger:      testLogger(),
	}
}

func receiveMessage(t *testing.T, client *Client) map[string]interface{} {
	t.Helper()
	select {
	case payload := <-client.send:
		var message map[string]interface{}
		require.NoError(t, json.Unmarshal(payload, &message))
		return message
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hub message")
		return nil
	}
}

func TestNewHub_Defaults(t *testing.T) {
	hub := NewHub(nil)
	require.NotNil(t, hub)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_RegisterSendsWelcome(t *testing.T) {
	hub := newTestHub(t)
	client := newStubClient(hub, 8)

	hub.register <- client

	welcome := receiveMessage(t, client)
	assert.Equal(t, TypeConnection, welcome["type"])
	assert.NotEmpty(t, welcome["timestamp"])

	data, ok := welcome["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "connected", data["status"])
	assert.Equal(t, client.id, data["client_id"])

	assert.Equal(t, 1, hub.ClientCount())
}

func TestHub_Unregister(t *testing.T) {
	hub := newTestHub(t)
	client := newStubClient(hub, 8)

	hub.register <- client
	receiveMessage(t, client)

	hub.unregister <- client

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastUpdate(t *testing.T) {
	hub := newTestHub(t)
	client := newStubClient(hub, 8)

	hub.register <- client
	receiveMessage(t, client)

	hub.BroadcastUpdate("pipeline:snapshot", "run-1", "update", map[string]string{
		"status": "running",
	})

	message := receiveMessage(t, client)
	assert.Equal(t, "pipeline:snapshot", message["type"])
	assert.Equal(t, "run-1", message["subtype"])
	assert.Equal(t, "update", message["action"])
	assert.NotEmpty(t, message["timestamp"])

	data, ok := message["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "running", data["status"])
}

func TestHub_BroadcastUpdate_OmitsEmptyFields(t *testing.T) {
	hub := newTestHub(t)
	client := newStubClient(hub, 8)

	hub.register <- client
	receiveMessage(t, client)

	hub.BroadcastUpdate("dataset:changed", "", "", nil)

	message := receiveMessage(t, client)
	assert.Equal(t, "dataset:changed", message["type"])

	_, hasSubtype := message["subtype"]
	assert.False(t, hasSubtype)
	_, hasAction := message["action"]
	assert.False(t, hasAction)
}

func TestHub_BroadcastError(t *testing.T) {
	hub := newTestHub(t)
	client := newStubClient(hub, 8)

	hub.register <- client
	receiveMessage(t, client)

	hub.BroadcastError("server_shutdown", "server is shutting down")

	message := receiveMessage(t, client)
	assert.Equal(t, TypeError, message["type"])

	data, ok := message["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "server_shutdown", data["code"])
	assert.Equal(t, "server is shutting down", data["message"])
}

func TestHub_FanOutReachesAllClients(t *testing.T) {
	hub := newTestHub(t)

	first := newStubClient(hub, 8)
	second := newStubClient(hub, 8)
	hub.register <- first
	hub.register <- second
	receiveMessage(t, first)
	receiveMessage(t, second)

	hub.BroadcastUpdate("pipeline:snapshot", "run-2", "update", nil)

	assert.Equal(t, "pipeline:snapshot", receiveMessage(t, first)["type"])
	assert.Equal(t, "pipeline:snapshot", receiveMessage(t, second)["type"])
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub := newTestHub(t)

	// One slot, immediately filled by the welcome message and never drained.
	slow := newStubClient(hub, 1)
	hub.register <- slow

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastUpdate("pipeline:snapshot", "run-3", "update", nil)

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_Stats(t *testing.T) {
	hub := newTestHub(t)

	first := newStubClient(hub, 8)
	second := newStubClient(hub, 8)
	hub.register <- first
	hub.register <- second
	receiveMessage(t, first)
	receiveMessage(t, second)

	hub.BroadcastUpdate("pipeline:snapshot", "run-4", "update", nil)
	receiveMessage(t, first)
	receiveMessage(t, second)

	require.Eventually(t, func() bool {
		return hub.Stats().MessagesSent == 2
	}, 2*time.Second, 10*time.Millisecond)

	stats := hub.Stats()
	assert.Equal(t, 2, stats.ActiveClients)
	assert.Equal(t, int64(2), stats.TotalConnections)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()

	client := newStubClient(hub, 8)
	hub.register <- client
	receiveMessage(t, client)

	hub.Stop()

	assert.Equal(t, 0, hub.ClientCount())
	select {
	case _, open := <-client.send:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("client send channel was not closed")
	}
}

func TestHub_StopIsIdempotent(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	hub.Stop()
	hub.Stop()
}

func TestHub_StartIsIdempotent(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	hub.Start()
	t.Cleanup(hub.Stop)

	client := newStubClient(hub, 8)
	hub.register <- client
	receiveMessage(t, client)
	assert.Equal(t, 1, hub.ClientCount())
}
