package handoff

import (
	"fmt"
	"strings"
	"time"

	"phoneai_backend/platform/apperr"
)

// Request asks to move a conversation from Source to Destination.
type Request struct {
	Source      HandlerName `json:"source"`
	Destination HandlerName `json:"destination"`
	Reason      string      `json:"reason,omitempty"`
}

// Router applies handoff requests against an immutable graph. It holds no
// per-conversation state.
type Router struct {
	graph *Graph
	now   func() time.Time
}

// NewRouter creates a router over g.
func NewRouter(g *Graph) *Router {
	return &Router{graph: g, now: time.Now}
}

// Graph returns the graph the router enforces.
func (r *Router) Graph() *Graph {
	return r.graph
}

// Start returns a fresh session positioned on the initial handler.
func (r *Router) Start(id string) SessionState {
	now := r.now().UTC()
	return SessionState{
		ID:             id,
		ActiveHandler:  r.graph.Initial(),
		HandoffHistory: []Transition{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Apply validates req and returns the updated session. On any error the
// returned state is the unchanged input.
func (r *Router) Apply(state SessionState, req Request) (SessionState, error) {
	if req.Source != state.ActiveHandler {
		return state, r.illegal(state, req, fmt.Sprintf("%s is not the active handler (%s is)", req.Source, state.ActiveHandler))
	}
	if !r.graph.Has(req.Destination) {
		return state, r.illegal(state, req, fmt.Sprintf("unknown handler %q", req.Destination))
	}
	if !r.graph.Allowed(req.Source, req.Destination) {
		return state, r.illegal(state, req, fmt.Sprintf("%s may not transfer to %s", req.Source, req.Destination))
	}

	next := state.Clone()
	now := r.now().UTC()
	next.ActiveHandler = req.Destination
	next.HandoffHistory = append(next.HandoffHistory, Transition{
		Source:      req.Source,
		Destination: req.Destination,
		Reason:      strings.TrimSpace(req.Reason),
		At:          now,
	})
	next.UpdatedAt = now
	return next, nil
}

func (r *Router) illegal(state SessionState, req Request, msg string) error {
	return apperr.IllegalHandoff(msg).WithOp("handoff.Apply").WithDetails(map[string]any{
		"conversationId": state.ID,
		"source":         req.Source,
		"destination":    req.Destination,
		"allowed":        r.graph.Destinations(state.ActiveHandler),
	})
}
