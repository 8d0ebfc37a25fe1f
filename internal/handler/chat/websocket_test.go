package chat

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/sentiscope/backend/internal/logging"
)

func dial(t *testing.T) *websocket.Conn {
	t.Helper()
	r := chi.NewRouter()
	NewWebSocketHandler(newConversation(), logging.Nop()).RegisterWebSocketRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/s1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) outgoingMessage {
	t.Helper()
	var msg struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	return outgoingMessage{Type: msg.Type, Data: msg.Data}
}

func sendLine(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "line",
		"data": map[string]string{"text": text},
	}))
}

func TestWebSocketREPL(t *testing.T) {
	conn := dial(t)

	hello := readMessage(t, conn)
	assert.Equal(t, "result", hello.Type)
	assert.Equal(t, "connected", hello.Data.(map[string]any)["type"])

	sendLine(t, conn, "I love this!")
	out := readMessage(t, conn)
	require.Equal(t, "result", out.Type)
	assert.Contains(t, out.Data.(map[string]any)["output"], "positive")

	sendLine(t, conn, "/dance")
	errMsg := readMessage(t, conn)
	assert.Equal(t, "error", errMsg.Type)
	assert.Contains(t, errMsg.Data.(map[string]any)["message"], "unknown command")

	sendLine(t, conn, "/quit")
	bye := readMessage(t, conn)
	assert.Equal(t, true, bye.Data.(map[string]any)["quit"])

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestWebSocketRejectsUnknownType(t *testing.T) {
	conn := dial(t)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "audio"}))
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
}
