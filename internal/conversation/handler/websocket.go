package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"phoneai_backend/internal/handoff"
	"phoneai_backend/internal/toolkit"
	"phoneai_backend/platform/apperr"
	"phoneai_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsReadLimit    = 64 << 10
	wsWriteTimeout = 10 * time.Second
)

// HistoryItem is one message of the client-held transcript.
type HistoryItem struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Type    string          `json:"type,omitempty"`
	Agent   string          `json:"agent_name,omitempty"`
}

// InboundMessage is what the client sends.
type InboundMessage struct {
	Type       string        `json:"type"` // "history.update", "input_audio_buffer.*"
	Inputs     []HistoryItem `json:"inputs"`
	ResetAgent bool          `json:"reset_agent,omitempty"`
}

// OutboundMessage is what the server sends.
type OutboundMessage struct {
	Type           string        `json:"type"` // "session.created", "history.updated", "agent.transfer", "error"
	ConversationID string        `json:"conversation_id,omitempty"`
	Inputs         []HistoryItem `json:"inputs,omitempty"`
	AgentName      string        `json:"agent_name,omitempty"`
	Source         string        `json:"source,omitempty"`
	Destination    string        `json:"destination,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	Code           string        `json:"code,omitempty"`
	Message        string        `json:"message,omitempty"`
}

// WebSocketHandler serves the text transcript protocol. Audio frames are
// refused.
type WebSocketHandler struct {
	dispatcher *toolkit.Dispatcher
	turner     Turner
	upgrader   websocket.Upgrader
	log        *logger.Logger
}

// NewWebSocketHandler creates a websocket handler. checkOrigin may be nil to
// accept any origin.
func NewWebSocketHandler(dispatcher *toolkit.Dispatcher, turner Turner, checkOrigin func(r *http.Request) bool, log *logger.Logger) *WebSocketHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WebSocketHandler{
		dispatcher: dispatcher,
		turner:     turner,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		log: log.WithComponent("websocket"),
	}
}

// Serve upgrades the request and runs the connection until it closes.
func (h *WebSocketHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	// The conversation outlives request cancellation until we end it.
	ctx := context.WithoutCancel(c.Request.Context())

	state, err := h.dispatcher.Start(ctx)
	if err != nil {
		h.send(conn, errorMessage(err))
		return
	}
	conversationID := state.ID
	defer func() { h.end(ctx, conversationID) }()

	h.send(conn, OutboundMessage{Type: "session.created", ConversationID: conversationID, AgentName: h.agentName(state.ActiveHandler)})
	h.log.Info("websocket conversation opened", "conversationId", conversationID)

	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("websocket closed", "conversationId", conversationID, "error", err)
			}
			return
		}

		switch {
		case msg.Type == "history.update" && msg.ResetAgent:
			h.end(ctx, conversationID)
			state, err = h.dispatcher.Start(ctx)
			if err != nil {
				h.send(conn, errorMessage(err))
				return
			}
			conversationID = state.ID
			h.send(conn, OutboundMessage{Type: "history.updated", ConversationID: conversationID, Inputs: []HistoryItem{}, AgentName: h.agentName(state.ActiveHandler)})
		case msg.Type == "history.update":
			for _, out := range h.handleHistory(ctx, conversationID, msg.Inputs) {
				h.send(conn, out)
			}
		case strings.HasPrefix(msg.Type, "input_audio_buffer."):
			h.send(conn, OutboundMessage{Type: "error", Code: "audio_not_supported", Message: "audio input is not supported, send text"})
		default:
			h.send(conn, OutboundMessage{Type: "error", Code: "unknown_message_type", Message: "unknown message type " + msg.Type})
		}
	}
}

// handleHistory answers the last user message of inputs and returns the
// messages to send back.
func (h *WebSocketHandler) handleHistory(ctx context.Context, conversationID string, inputs []HistoryItem) []OutboundMessage {
	if len(inputs) == 0 || inputs[len(inputs)-1].Role != "user" {
		return nil
	}
	if h.turner == nil {
		return []OutboundMessage{{Type: "error", Code: "model_unavailable", Message: msgModelNotAvailable}}
	}

	text := contentText(inputs[len(inputs)-1].Content)
	res, err := h.turner.Turn(ctx, conversationID, text)
	if err != nil {
		return []OutboundMessage{errorMessage(err)}
	}

	var out []OutboundMessage
	for _, t := range res.Transfers {
		out = append(out, OutboundMessage{
			Type:        "agent.transfer",
			AgentName:   h.agentName(t.Destination),
			Source:      string(t.Source),
			Destination: string(t.Destination),
			Reason:      t.Reason,
		})
	}

	history := append([]HistoryItem(nil), inputs...)
	for _, r := range res.Replies {
		content, _ := json.Marshal(r.Text)
		history = append(history, HistoryItem{Role: "assistant", Content: content, Type: "message", Agent: r.AgentName})
	}
	return append(out, OutboundMessage{Type: "history.updated", Inputs: history, AgentName: res.AgentName})
}

func (h *WebSocketHandler) end(ctx context.Context, conversationID string) {
	if err := h.dispatcher.End(ctx, conversationID); err != nil && !apperr.Is(err, apperr.KindNotFound) {
		h.log.Warn("failed to end conversation", "conversationId", conversationID, "error", err)
	}
	if h.turner != nil {
		h.turner.Forget(ctx, conversationID)
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, msg OutboundMessage) {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		h.log.Debug("websocket write failed", "type", msg.Type, "error", err)
	}
}

func (h *WebSocketHandler) agentName(handler handoff.HandlerName) string {
	if node, ok := h.dispatcher.Router().Graph().Node(handler); ok {
		return node.DisplayName
	}
	return string(handler)
}

// contentText accepts a plain string or a list of {text} parts.
func contentText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, " ")
}

func errorMessage(err error) OutboundMessage {
	if appErr, ok := apperr.As(err); ok {
		return OutboundMessage{Type: "error", Code: appErr.Code(), Message: appErr.Message}
	}
	return OutboundMessage{Type: "error", Code: "error", Message: err.Error()}
}
