package http

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ws "wavecli/internal/websocket"
)

func TestWebSocketHandler_UpgradeAndBroadcast(t *testing.T) {
	hub := ws.NewHub(testLogger())
	hub.Start()
	t.Cleanup(hub.Stop)

	handler := NewWebSocketHandler(hub, testLogger())
	srv := httptest.NewServer(middlewareRequestID(handler))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var welcome map[string]interface{}
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "connection", welcome["type"])

	hub.BroadcastUpdate("pipeline:snapshot", "run-1", "update", map[string]string{
		"status": "running",
	})

	var message map[string]interface{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&message))
	assert.Equal(t, "pipeline:snapshot", message["type"])
	assert.Equal(t, "run-1", message["subtype"])

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_RejectsPlainRequest(t *testing.T) {
	hub := ws.NewHub(testLogger())
	hub.Start()
	t.Cleanup(hub.Stop)

	handler := NewWebSocketHandler(hub, testLogger())
	rec := performRequest(t, middlewareRequestID(handler), "GET", "/ws", nil)

	// Without the upgrade headers gorilla responds 400 on its own.
	assert.Equal(t, 400, rec.Code)
	assert.Equal(t, 0, hub.ClientCount())
}
