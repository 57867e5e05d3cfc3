// Package conversation provides the conversation bounded context: session
// lifecycle, operation invocation, handoffs and model-driven turns.
package conversation

import (
	"net/http"
	"slices"

	"phoneai_backend/internal/conversation/handler"
	"phoneai_backend/internal/conversation/runtime"
	apphttp "phoneai_backend/internal/http"
	"phoneai_backend/internal/toolkit"
	"phoneai_backend/platform/config"
	"phoneai_backend/platform/logger"
	"phoneai_backend/platform/validator"
)

// Module is the conversation module implementing http.Module.
type Module struct {
	handler   *handler.Handler
	websocket *handler.WebSocketHandler
}

// NewModule creates the conversation module. rt is nil when no conversation
// model is configured; turns are then refused.
func NewModule(dispatcher *toolkit.Dispatcher, rt *runtime.Runtime, cfg config.HTTPConfig, val *validator.Validator, log *logger.Logger) *Module {
	var turner handler.Turner
	if rt != nil {
		turner = rt
	}

	return &Module{
		handler:   handler.New(dispatcher, turner, val),
		websocket: handler.NewWebSocketHandler(dispatcher, turner, originChecker(cfg), log),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "conversation"
}

// RegisterRoutes mounts conversation routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
	ctx.Engine.GET("/ws", ctx.AuthMiddleware, m.websocket.Serve)
}

func originChecker(cfg config.HTTPConfig) func(r *http.Request) bool {
	if cfg.GetCORSAllowAll() {
		return nil
	}
	origins := cfg.GetCORSOrigins()
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
