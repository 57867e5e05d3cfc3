package runtime

import (
	"context"
	"encoding/json"

	"phoneai_backend/internal/handoff"
	"phoneai_backend/internal/toolkit"
	"phoneai_backend/platform/apperr"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

type conversationKey struct{}

func withConversation(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, conversationKey{}, conversationID)
}

func conversationFrom(ctx context.Context) string {
	id, _ := ctx.Value(conversationKey{}).(string)
	return id
}

// buildTools wraps the operations of handler as model tools. Every call goes
// through the dispatcher so ownership checks and session updates apply.
func buildTools(d *toolkit.Dispatcher, handler handoff.HandlerName) ([]tool.Tool, error) {
	ops := d.Registry().ForHandler(handler)
	tools := make([]tool.Tool, 0, len(ops))
	for _, op := range ops {
		name := op.Name
		t, err := functiontool.New(functiontool.Config{
			Name:        op.Name,
			Description: op.Description,
			InputSchema: op.InputSchema,
		}, func(ctx tool.Context, args map[string]any) (map[string]any, error) {
			return invokeTool(ctx, d, name, args), nil
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConfig, "build tool "+name, err)
		}
		tools = append(tools, t)
	}
	return tools, nil
}

// invokeTool returns errors as tool output so the model can ask the caller
// again instead of aborting the turn.
func invokeTool(ctx context.Context, d *toolkit.Dispatcher, operation string, args map[string]any) map[string]any {
	raw, err := json.Marshal(args)
	if err != nil {
		return toolError(apperr.Validation("arguments are not serializable"))
	}

	inv, err := d.Invoke(ctx, conversationFrom(ctx), operation, raw)
	if err != nil {
		return toolError(err)
	}

	out := map[string]any{}
	if inv.Result != nil {
		data, err := json.Marshal(inv.Result)
		if err != nil {
			return toolError(apperr.Wrap(apperr.KindInternal, "encode tool result", err))
		}
		if err := json.Unmarshal(data, &out); err != nil {
			out = map[string]any{"result": json.RawMessage(data)}
		}
	}
	if inv.Handoff != nil {
		out["handoff"] = map[string]any{
			"source":      inv.Handoff.Source,
			"destination": inv.Handoff.Destination,
		}
	}
	return out
}

func toolError(err error) map[string]any {
	out := map[string]any{"error": true, "message": err.Error()}
	if appErr, ok := apperr.As(err); ok {
		out["code"] = appErr.Code()
		out["message"] = appErr.Message
		out["recoverable"] = appErr.Recoverable()
		if appErr.Details != nil {
			out["details"] = appErr.Details
		}
	}
	return out
}
