package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/sentiscope/backend/internal/logging"
	chatService "github.com/zhouzirui/sentiscope/backend/internal/service/chat"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketHandler WebSocket会话处理器：每条文本即一行REPL输入
type WebSocketHandler struct {
	conv     *chatService.Conversation
	log      *logging.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(conv *chatService.Conversation, log *logging.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		conv: conv,
		log:  log.Sub("chat-ws"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws/{key}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// LineMessage 一行REPL输入
type LineMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		http.Error(w, "session key is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	h.log.Info().Str("session", key).Msg("connection opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go h.pingLoop(ctx, conn)

	h.sendInfo(conn, key, map[string]any{
		"type":  "connected",
		"model": h.conv.ModelFor(key),
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Str("session", key).Err(err).Msg("read error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if msg.SessionID != "" && msg.SessionID != key {
			h.sendError(conn, "session mismatch")
			continue
		}

		if quit := h.handleMessage(ctx, conn, key, &msg); quit {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, key string, msg *inboundMessage) bool {
	if msg.Type != "line" {
		h.sendError(conn, "unsupported message type: "+msg.Type)
		return false
	}

	var line LineMessage
	if err := json.Unmarshal(msg.Data, &line); err != nil {
		h.sendError(conn, "invalid line payload")
		return false
	}

	res, err := h.conv.Execute(ctx, key, line.Text)
	if err != nil {
		h.sendError(conn, err.Error())
		return false
	}
	if res.Output != "" || res.Quit {
		h.sendInfo(conn, key, map[string]any{
			"type":   "output",
			"output": res.Output,
			"quit":   res.Quit,
			"model":  h.conv.ModelFor(key),
		})
	}
	return res.Quit
}

func (h *WebSocketHandler) sendInfo(conn *websocket.Conn, key string, data map[string]any) {
	msg := outgoingMessage{
		Type:      "result",
		SessionID: key,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.log.Debug().Err(err).Msg("write info failed")
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, message string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.log.Debug().Err(err).Msg("write error failed")
	}
}

// pingLoop 定期发送ping；WriteControl 可与 WriteJSON 并发调用
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
