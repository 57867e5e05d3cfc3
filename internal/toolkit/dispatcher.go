package toolkit

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"

	"phoneai_backend/internal/events"
	"phoneai_backend/internal/handoff"
	"phoneai_backend/internal/observability/metrics"
	"phoneai_backend/platform/apperr"
	"phoneai_backend/platform/logger"

	"github.com/google/uuid"
)

const lockStripes = 64

// Invocation is the outcome of a dispatched operation.
type Invocation struct {
	Operation string               `json:"operation"`
	Handler   handoff.HandlerName  `json:"handler"`
	Result    any                  `json:"result,omitempty"`
	Handoff   *handoff.Transition  `json:"handoff,omitempty"`
	Session   handoff.SessionState `json:"session"`
}

// Dispatcher runs operations and handoffs against stored sessions. Calls for
// the same conversation are serialized.
type Dispatcher struct {
	registry *Registry
	router   *handoff.Router
	store    handoff.Store
	bus      events.Bus
	metrics  *metrics.Metrics
	log      *logger.Logger

	locks [lockStripes]sync.Mutex
}

// NewDispatcher creates a dispatcher. A nil bus drops domain events.
func NewDispatcher(registry *Registry, router *handoff.Router, store handoff.Store, bus events.Bus, m *metrics.Metrics, log *logger.Logger) *Dispatcher {
	if bus == nil {
		bus = events.NewInMemoryBus(log)
	}
	return &Dispatcher{
		registry: registry,
		router:   router,
		store:    store,
		bus:      bus,
		metrics:  m,
		log:      log.WithComponent("dispatcher"),
	}
}

// Registry returns the operation registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Router returns the handoff router.
func (d *Dispatcher) Router() *handoff.Router {
	return d.router
}

// Start creates a conversation on the initial handler.
func (d *Dispatcher) Start(ctx context.Context) (handoff.SessionState, error) {
	state := d.router.Start(uuid.NewString())
	if err := d.store.Save(ctx, state); err != nil {
		return handoff.SessionState{}, err
	}
	d.metrics.ObserveConversation("started")
	d.log.Info("conversation started", "conversationId", state.ID, "handler", state.ActiveHandler)
	return state, nil
}

// Session returns the stored state of a conversation.
func (d *Dispatcher) Session(ctx context.Context, conversationID string) (handoff.SessionState, error) {
	return d.store.Get(ctx, conversationID)
}

// End discards a conversation.
func (d *Dispatcher) End(ctx context.Context, conversationID string) error {
	mu := d.lock(conversationID)
	defer mu.Unlock()

	if _, err := d.store.Get(ctx, conversationID); err != nil {
		return err
	}
	if err := d.store.Delete(ctx, conversationID); err != nil {
		return err
	}
	d.metrics.ObserveConversation("ended")
	return nil
}

// Available returns the operations of the conversation's active handler.
func (d *Dispatcher) Available(ctx context.Context, conversationID string) (handoff.HandlerName, []*Operation, error) {
	state, err := d.store.Get(ctx, conversationID)
	if err != nil {
		return "", nil, err
	}
	return state.ActiveHandler, d.registry.ForHandler(state.ActiveHandler), nil
}

// Handoff applies an explicit transition request. Illegal requests are
// returned unchanged to the caller.
func (d *Dispatcher) Handoff(ctx context.Context, conversationID string, req handoff.Request) (handoff.SessionState, error) {
	mu := d.lock(conversationID)
	defer mu.Unlock()

	state, err := d.store.Get(ctx, conversationID)
	if err != nil {
		return handoff.SessionState{}, err
	}
	next, err := d.applyHandoff(state, req)
	if err != nil {
		return state, err
	}
	if err := d.store.Save(ctx, next); err != nil {
		return state, err
	}
	d.publishHandoff(ctx, next)
	return next, nil
}

// Invoke runs operation for the conversation's active handler.
func (d *Dispatcher) Invoke(ctx context.Context, conversationID, operation string, args json.RawMessage) (Invocation, error) {
	mu := d.lock(conversationID)
	defer mu.Unlock()

	state, err := d.store.Get(ctx, conversationID)
	if err != nil {
		return Invocation{}, err
	}
	handler := state.ActiveHandler

	inv, err := d.invoke(ctx, state, operation, args)
	outcome := "ok"
	if err != nil {
		outcome = apperr.GetKind(err).Code()
	}
	d.metrics.ObserveToolInvocation(string(handler), operation, outcome)
	d.log.ToolInvocation(conversationID, string(handler), operation, outcome)
	return inv, err
}

func (d *Dispatcher) invoke(ctx context.Context, state handoff.SessionState, operation string, args json.RawMessage) (Invocation, error) {
	op, ok := d.registry.Lookup(state.ActiveHandler, operation)
	if !ok {
		if len(d.registry.Owners(operation)) == 0 {
			return Invocation{}, apperr.NotFound("unknown operation").WithDetails(map[string]any{"operation": operation})
		}
		return Invocation{}, apperr.BadRequest("operation_not_available").WithDetails(map[string]any{
			"operation":     operation,
			"activeHandler": state.ActiveHandler,
			"available":     d.registry.Names(state.ActiveHandler),
		})
	}

	normalized, err := op.validate(args)
	if err != nil {
		return Invocation{}, err
	}

	working := state.Clone()
	call := &Call{ConversationID: state.ID, Session: &working}
	result, err := op.invoke(ctx, call, normalized)
	if err != nil {
		return Invocation{}, err
	}

	// Operations may not move the conversation themselves.
	working.ActiveHandler = state.ActiveHandler

	inv := Invocation{Operation: operation, Handler: state.ActiveHandler, Result: result.Data}
	if result.Transfer != nil {
		req := handoff.Request{Source: state.ActiveHandler, Destination: result.Transfer.Destination, Reason: result.Transfer.Reason}
		next, err := d.applyHandoff(working, req)
		if err != nil {
			return Invocation{}, apperr.Wrap(apperr.KindInternal, "handler requested a transfer outside the handoff graph", err).WithOp(operation)
		}
		working = next
		last := working.HandoffHistory[len(working.HandoffHistory)-1]
		inv.Handoff = &last
	}

	if err := d.store.Save(ctx, working); err != nil {
		return Invocation{}, err
	}
	inv.Session = working

	for _, event := range result.Events {
		d.bus.Publish(ctx, event)
	}
	if inv.Handoff != nil {
		d.publishHandoff(ctx, working)
	}
	return inv, nil
}

func (d *Dispatcher) applyHandoff(state handoff.SessionState, req handoff.Request) (handoff.SessionState, error) {
	next, err := d.router.Apply(state, req)
	if err != nil {
		d.metrics.ObserveHandoff(string(req.Source), string(req.Destination), false)
		d.log.HandoffRejected(state.ID, string(req.Source), string(req.Destination), err)
		return state, err
	}
	d.metrics.ObserveHandoff(string(req.Source), string(req.Destination), true)
	return next, nil
}

func (d *Dispatcher) publishHandoff(ctx context.Context, state handoff.SessionState) {
	last := state.HandoffHistory[len(state.HandoffHistory)-1]
	d.log.HandoffApplied(state.ID, string(last.Source), string(last.Destination), last.Reason)
	d.bus.Publish(ctx, events.HandoffApplied{
		BaseEvent:      events.NewBaseEvent(),
		ConversationID: state.ID,
		Source:         string(last.Source),
		Destination:    string(last.Destination),
		Reason:         last.Reason,
	})
}

func (d *Dispatcher) lock(conversationID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(conversationID))
	mu := &d.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu
}
