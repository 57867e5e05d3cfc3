// Package toolkit registers the operations each conversational handler may
// call and dispatches invocations against a conversation's session.
package toolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"phoneai_backend/internal/events"
	"phoneai_backend/internal/handoff"
	"phoneai_backend/platform/apperr"

	"github.com/google/jsonschema-go/jsonschema"
)

// Call is the mutable view of a conversation passed to an operation.
// Changes to Session are persisted when the operation succeeds.
type Call struct {
	ConversationID string
	Session        *handoff.SessionState
}

// Transfer asks the dispatcher to hand the conversation to another handler.
type Transfer struct {
	Destination handoff.HandlerName
	Reason      string
}

// Result is what an operation returns to its caller. Events are published
// only after the session has been saved.
type Result struct {
	Data     any
	Transfer *Transfer
	Events   []events.Event
}

// Operation describes one registered capability.
type Operation struct {
	Name        string              `json:"name"`
	Handler     handoff.HandlerName `json:"handler"`
	Description string              `json:"description"`
	InputSchema *jsonschema.Schema  `json:"inputSchema"`

	resolved *jsonschema.Resolved
	invoke   func(ctx context.Context, call *Call, args json.RawMessage) (Result, error)
}

// Registry maps each handler to the operations it owns. Several handlers may
// own an operation of the same name. It is filled at startup and read-only
// afterwards.
type Registry struct {
	ops map[handoff.HandlerName]map[string]*Operation
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[handoff.HandlerName]map[string]*Operation)}
}

// Register adds an operation whose arguments decode into In. The input
// schema is derived from In's json and jsonschema tags.
func Register[In any](r *Registry, owner handoff.HandlerName, name, description string, fn func(ctx context.Context, call *Call, in In) (Result, error)) error {
	if _, exists := r.ops[owner][name]; exists {
		return apperr.Config(fmt.Sprintf("operation %q registered twice for %s", name, owner))
	}

	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return apperr.Wrap(apperr.KindConfig, fmt.Sprintf("derive schema for %s", name), err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return apperr.Wrap(apperr.KindConfig, fmt.Sprintf("resolve schema for %s", name), err)
	}

	if r.ops[owner] == nil {
		r.ops[owner] = make(map[string]*Operation)
	}
	r.ops[owner][name] = &Operation{
		Name:        name,
		Handler:     owner,
		Description: description,
		InputSchema: schema,
		resolved:    resolved,
		invoke: func(ctx context.Context, call *Call, args json.RawMessage) (Result, error) {
			var in In
			if err := json.Unmarshal(args, &in); err != nil {
				return Result{}, apperr.Validation("arguments do not match the operation input").WithDetails(err.Error())
			}
			return fn(ctx, call, in)
		},
	}
	return nil
}

// Lookup returns the operation handler owns under name.
func (r *Registry) Lookup(handler handoff.HandlerName, name string) (*Operation, bool) {
	op, ok := r.ops[handler][name]
	return op, ok
}

// Owners returns the handlers that own an operation called name.
func (r *Registry) Owners(name string) []handoff.HandlerName {
	var out []handoff.HandlerName
	for handler, ops := range r.ops {
		if _, ok := ops[name]; ok {
			out = append(out, handler)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ForHandler returns the operations owned by handler, sorted by name.
func (r *Registry) ForHandler(handler handoff.HandlerName) []*Operation {
	out := make([]*Operation, 0, len(r.ops[handler]))
	for _, op := range r.ops[handler] {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the names of the operations owned by handler.
func (r *Registry) Names(handler handoff.HandlerName) []string {
	ops := r.ForHandler(handler)
	names := make([]string, 0, len(ops))
	for _, op := range ops {
		names = append(names, op.Name)
	}
	return names
}

// validate checks raw arguments against the operation schema and returns
// the normalized JSON document. Missing arguments mean an empty object.
func (op *Operation) validate(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = json.RawMessage(`{}`)
	}

	var instance map[string]any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, apperr.Validation("arguments must be a JSON object").WithDetails(err.Error())
	}
	if err := op.resolved.Validate(instance); err != nil {
		return nil, apperr.Validation(fmt.Sprintf("invalid arguments for %s", op.Name)).WithDetails(err.Error())
	}
	return raw, nil
}
