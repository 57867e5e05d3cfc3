package toolkit

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"phoneai_backend/internal/events"
	"phoneai_backend/internal/handoff"
	"phoneai_backend/platform/apperr"
	"phoneai_backend/platform/logger"
)

type echoInput struct {
	Text  string `json:"text" jsonschema:"text to echo"`
	Times int    `json:"times,omitempty"`
}

type transferInput struct {
	Reason string `json:"reason,omitempty"`
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *events.InMemoryBus, *atomic.Int32) {
	t.Helper()
	graph, err := handoff.DefaultGraph()
	if err != nil {
		t.Fatalf("graph: %v", err)
	}

	reg := NewRegistry()
	if err := Register(reg, handoff.Welcome, "echo", "Echo text", func(ctx context.Context, call *Call, in echoInput) (Result, error) {
		call.Session.RecordPhone("+33781602352")
		return Result{Data: map[string]string{"text": in.Text}}, nil
	}); err != nil {
		t.Fatalf("register echo: %v", err)
	}
	if err := Register(reg, handoff.Welcome, "transfer_to_customer_identification", "Transfer", func(ctx context.Context, call *Call, in transferInput) (Result, error) {
		return Result{Transfer: &Transfer{Destination: handoff.Identification, Reason: in.Reason}}, nil
	}); err != nil {
		t.Fatalf("register transfer: %v", err)
	}
	if err := Register(reg, handoff.Welcome, "transfer_to_product_consultation", "Illegal transfer", func(ctx context.Context, call *Call, in transferInput) (Result, error) {
		return Result{Transfer: &Transfer{Destination: handoff.ProductConsultation}}, nil
	}); err != nil {
		t.Fatalf("register illegal transfer: %v", err)
	}
	if err := Register(reg, handoff.Identification, "identify", "Identify", func(ctx context.Context, call *Call, in transferInput) (Result, error) {
		return Result{}, call.Session.IdentifyCustomer("42")
	}); err != nil {
		t.Fatalf("register identify: %v", err)
	}

	bus := events.NewInMemoryBus(nil)
	var applied atomic.Int32
	bus.Subscribe(events.HandoffApplied{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		applied.Add(1)
		return nil
	}))

	d := NewDispatcher(reg, handoff.NewRouter(graph), handoff.NewMemoryStore(), bus, nil, logger.Nop())
	return d, bus, &applied
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	fn := func(ctx context.Context, call *Call, in transferInput) (Result, error) { return Result{}, nil }
	if err := Register(reg, handoff.Welcome, "op", "", fn); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg, handoff.Welcome, "op", "", fn); !apperr.Is(err, apperr.KindConfig) {
		t.Fatalf("want config error, got %v", err)
	}
}

func TestRegisterDerivesSchema(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	op, ok := d.Registry().Lookup(handoff.Welcome, "echo")
	if !ok {
		t.Fatalf("echo not registered")
	}
	if _, ok := op.InputSchema.Properties["text"]; !ok {
		t.Fatalf("schema missing text property: %+v", op.InputSchema.Properties)
	}
	if len(op.InputSchema.Required) != 1 || op.InputSchema.Required[0] != "text" {
		t.Fatalf("want only text required, got %v", op.InputSchema.Required)
	}
}

func TestInvokePersistsSessionChanges(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	ctx := context.Background()
	state, err := d.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	inv, err := d.Invoke(ctx, state.ID, "echo", json.RawMessage(`{"text":"bonjour"}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if inv.Session.CollectedPhone != "+33781602352" {
		t.Fatalf("session change not returned: %+v", inv.Session)
	}

	stored, err := d.Session(ctx, state.ID)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if stored.CollectedPhone != "+33781602352" {
		t.Fatalf("session change not persisted: %+v", stored)
	}
}

func TestInvokeValidatesArguments(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	ctx := context.Background()
	state, _ := d.Start(ctx)

	tests := []struct {
		name string
		args string
	}{
		{"missing required", `{}`},
		{"wrong type", `{"text": 12}`},
		{"not an object", `["bonjour"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Invoke(ctx, state.ID, "echo", json.RawMessage(tt.args))
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("want validation error, got %v", err)
			}
		})
	}
}

func TestInvokeRejectsOperationOfInactiveHandler(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	ctx := context.Background()
	state, _ := d.Start(ctx)

	_, err := d.Invoke(ctx, state.ID, "identify", nil)
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("want bad request, got %v", err)
	}
	appErr, _ := apperr.As(err)
	if appErr.Message != "operation_not_available" {
		t.Fatalf("unexpected message %q", appErr.Message)
	}

	if _, err := d.Invoke(ctx, state.ID, "does_not_exist", nil); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestInvokeTransferAppliesHandoff(t *testing.T) {
	d, bus, applied := newTestDispatcher(t)
	ctx := context.Background()
	state, _ := d.Start(ctx)

	inv, err := d.Invoke(ctx, state.ID, "transfer_to_customer_identification", json.RawMessage(`{"reason":"caller wants to book"}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if inv.Handoff == nil || inv.Handoff.Destination != handoff.Identification || inv.Handoff.Reason != "caller wants to book" {
		t.Fatalf("unexpected handoff %+v", inv.Handoff)
	}
	if inv.Session.ActiveHandler != handoff.Identification {
		t.Fatalf("want identification active, got %s", inv.Session.ActiveHandler)
	}

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := bus.Wait(waitCtx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if applied.Load() != 1 {
		t.Fatalf("want one handoff event, got %d", applied.Load())
	}

	// The new handler's operations are now the only ones available.
	handler, ops, err := d.Available(ctx, state.ID)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if handler != handoff.Identification || len(ops) != 1 || ops[0].Name != "identify" {
		t.Fatalf("unexpected operations for %s: %v", handler, ops)
	}
}

func TestInvokeIllegalTransferIsInternal(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	ctx := context.Background()
	state, _ := d.Start(ctx)

	_, err := d.Invoke(ctx, state.ID, "transfer_to_product_consultation", nil)
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("want internal error, got %v", err)
	}

	stored, _ := d.Session(ctx, state.ID)
	if stored.ActiveHandler != handoff.Welcome || len(stored.HandoffHistory) != 0 {
		t.Fatalf("illegal transfer must not change the session: %+v", stored)
	}
}

func TestExplicitHandoff(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	ctx := context.Background()
	state, _ := d.Start(ctx)

	_, err := d.Handoff(ctx, state.ID, handoff.Request{Source: handoff.Welcome, Destination: handoff.ProductConsultation})
	if !apperr.Is(err, apperr.KindIllegalHandoff) {
		t.Fatalf("want illegal handoff, got %v", err)
	}

	next, err := d.Handoff(ctx, state.ID, handoff.Request{Source: handoff.Welcome, Destination: handoff.InformationDesk})
	if err != nil {
		t.Fatalf("handoff: %v", err)
	}
	if next.ActiveHandler != handoff.InformationDesk {
		t.Fatalf("want information desk, got %s", next.ActiveHandler)
	}
}

func TestEndDiscardsSession(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	ctx := context.Background()
	state, _ := d.Start(ctx)

	if err := d.End(ctx, state.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := d.Session(ctx, state.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("want not found after end, got %v", err)
	}
	if err := d.End(ctx, state.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("want not found ending twice, got %v", err)
	}
}
