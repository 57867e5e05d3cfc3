// Package agents defines the operations each conversational handler may call
// and registers them in the toolkit.
package agents

import (
	"context"
	"time"

	"phoneai_backend/internal/handoff"
	"phoneai_backend/internal/identification/transport"
	"phoneai_backend/internal/toolkit"
	"phoneai_backend/platform/phone"
)

// Identifier is the identification capability used by the identification handler.
type Identifier interface {
	NormalizePhone(raw, countryHint string) (phone.Normalization, error)
	ValidateEmail(spoken string) transport.EmailCheck
	ResolveByPhone(ctx context.Context, normalizedPhone string) (transport.Resolution, error)
	ResolveByEmail(ctx context.Context, normalizedEmail string, candidates []string) (transport.Resolution, error)
	Enroll(ctx context.Context, draft transport.CustomerDraft) (transport.Customer, error)
}

// Operations holds the dependencies of every handler operation.
type Operations struct {
	graph      *handoff.Graph
	identifier Identifier
	now        func() time.Time
}

// New creates the handler operations.
func New(graph *handoff.Graph, identifier Identifier) *Operations {
	return &Operations{graph: graph, identifier: identifier, now: time.Now}
}

// Register adds every handler's operations to reg. Transfers are registered
// for the edges of the graph only.
func (o *Operations) Register(reg *toolkit.Registry) error {
	if err := o.registerWelcome(reg); err != nil {
		return err
	}
	if err := o.registerIdentification(reg); err != nil {
		return err
	}
	return o.registerTransfers(reg)
}

// NewRegistry builds a registry with every handler's operations.
func NewRegistry(graph *handoff.Graph, identifier Identifier) (*toolkit.Registry, error) {
	reg := toolkit.NewRegistry()
	if err := New(graph, identifier).Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}
