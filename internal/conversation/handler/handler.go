// Package handler exposes conversations over HTTP and websocket.
package handler

import (
	"context"
	"net/http"

	"phoneai_backend/internal/conversation/runtime"
	"phoneai_backend/internal/handoff"
	"phoneai_backend/internal/toolkit"
	"phoneai_backend/platform/httpkit"
	"phoneai_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest    = "invalid request"
	msgValidationFailed  = "validation failed"
	msgModelNotAvailable = "conversation model not configured"
)

// Turner answers caller messages with the conversation model.
type Turner interface {
	Turn(ctx context.Context, conversationID, text string) (runtime.TurnResult, error)
	Forget(ctx context.Context, conversationID string)
}

// HandoffRequest is an explicit transition request.
type HandoffRequest struct {
	Source      string `json:"source" validate:"required"`
	Destination string `json:"destination" validate:"required"`
	Reason      string `json:"reason" validate:"max=500"`
}

// TurnRequest is one caller message.
type TurnRequest struct {
	Text string `json:"text" validate:"notblank,max=2000"`
}

// ToolsResponse lists the operations of the active handler.
type ToolsResponse struct {
	Handler    handoff.HandlerName  `json:"handler"`
	Operations []*toolkit.Operation `json:"operations"`
}

// GraphResponse describes the handoff graph.
type GraphResponse struct {
	Initial handoff.HandlerName `json:"initial"`
	Nodes   []handoff.Node      `json:"nodes"`
	Edges   []handoff.Edge      `json:"edges"`
}

// Handler serves the conversation endpoints. turner is nil when no
// conversation model is configured.
type Handler struct {
	dispatcher *toolkit.Dispatcher
	turner     Turner
	val        *validator.Validator
}

// New creates a conversation handler.
func New(dispatcher *toolkit.Dispatcher, turner Turner, val *validator.Validator) *Handler {
	return &Handler{dispatcher: dispatcher, turner: turner, val: val}
}

// RegisterRoutes adds conversation routes to rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/conversations", h.Create)
	rg.GET("/conversations/:id", h.Get)
	rg.DELETE("/conversations/:id", h.End)
	rg.GET("/conversations/:id/tools", h.ListTools)
	rg.POST("/conversations/:id/tools/:operation", h.InvokeTool)
	rg.POST("/conversations/:id/handoffs", h.Handoff)
	rg.POST("/conversations/:id/turns", h.Turn)
	rg.GET("/handoff-graph", h.Graph)
}

// Create starts a conversation on the initial handler.
func (h *Handler) Create(c *gin.Context) {
	state, err := h.dispatcher.Start(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, state)
}

// Get returns the session state.
func (h *Handler) Get(c *gin.Context) {
	state, err := h.dispatcher.Session(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, state)
}

// End discards the conversation.
func (h *Handler) End(c *gin.Context) {
	id := c.Param("id")
	if httpkit.HandleError(c, h.dispatcher.End(c.Request.Context(), id)) {
		return
	}
	if h.turner != nil {
		h.turner.Forget(c.Request.Context(), id)
	}
	c.Status(http.StatusNoContent)
}

// ListTools returns the operations available to the active handler.
func (h *Handler) ListTools(c *gin.Context) {
	handler, ops, err := h.dispatcher.Available(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, ToolsResponse{Handler: handler, Operations: ops})
}

// InvokeTool runs one operation with the raw JSON body as arguments.
func (h *Handler) InvokeTool(c *gin.Context) {
	args, err := c.GetRawData()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	inv, err := h.dispatcher.Invoke(c.Request.Context(), c.Param("id"), c.Param("operation"), args)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, inv)
}

// Handoff applies an explicit transition request.
func (h *Handler) Handoff(c *gin.Context) {
	var req HandoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return
	}

	state, err := h.dispatcher.Handoff(c.Request.Context(), c.Param("id"), handoff.Request{
		Source:      handoff.HandlerName(req.Source),
		Destination: handoff.HandlerName(req.Destination),
		Reason:      req.Reason,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, state)
}

// Turn answers one caller message with the conversation model.
func (h *Handler) Turn(c *gin.Context) {
	if h.turner == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, msgModelNotAvailable, nil)
		return
	}

	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return
	}

	res, err := h.turner.Turn(c.Request.Context(), c.Param("id"), req.Text)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, res)
}

// Graph returns the handoff graph.
func (h *Handler) Graph(c *gin.Context) {
	g := h.dispatcher.Router().Graph()
	httpkit.OK(c, GraphResponse{Initial: g.Initial(), Nodes: g.Nodes(), Edges: g.Edges()})
}
