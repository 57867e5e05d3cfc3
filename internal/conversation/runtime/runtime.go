// Package runtime drives the conversational handlers with an LLM. Each
// handler of the handoff graph becomes one agent whose tools are that
// handler's registered operations.
package runtime

import (
	"context"
	"strings"
	"sync"

	"phoneai_backend/internal/handoff"
	"phoneai_backend/internal/toolkit"
	"phoneai_backend/platform/apperr"
	"phoneai_backend/platform/logger"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const appName = "phoneai"

// Reply is one message spoken by a handler.
type Reply struct {
	Handler   handoff.HandlerName `json:"handler"`
	AgentName string              `json:"agentName"`
	Text      string              `json:"text"`
}

// TurnResult is everything that happened while answering one caller message.
type TurnResult struct {
	ConversationID string               `json:"conversationId"`
	Handler        handoff.HandlerName  `json:"handler"`
	AgentName      string               `json:"agentName"`
	Replies        []Reply              `json:"replies"`
	Transfers      []handoff.Transition `json:"transfers"`
}

// Runtime runs conversation turns against the active handler's agent.
type Runtime struct {
	dispatcher *toolkit.Dispatcher
	graph      *handoff.Graph
	sessions   session.Service
	runners    map[handoff.HandlerName]*runner.Runner
	log        *logger.Logger

	mu    sync.Mutex
	known map[string]struct{}
}

// New builds one agent per graph node on top of llm.
func New(llm model.LLM, dispatcher *toolkit.Dispatcher, log *logger.Logger) (*Runtime, error) {
	graph := dispatcher.Router().Graph()
	rt := &Runtime{
		dispatcher: dispatcher,
		graph:      graph,
		sessions:   session.InMemoryService(),
		runners:    make(map[handoff.HandlerName]*runner.Runner),
		log:        log.WithComponent("conversation"),
		known:      make(map[string]struct{}),
	}

	for _, node := range graph.Nodes() {
		tools, err := buildTools(dispatcher, node.Name)
		if err != nil {
			return nil, err
		}

		a, err := llmagent.New(llmagent.Config{
			Name:        string(node.Name),
			Model:       llm,
			Description: node.Description,
			Instruction: node.Instruction,
			Tools:       tools,
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConfig, "create agent "+string(node.Name), err)
		}

		r, err := runner.New(runner.Config{
			AppName:        appName,
			Agent:          a,
			SessionService: rt.sessions,
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConfig, "create runner "+string(node.Name), err)
		}
		rt.runners[node.Name] = r
	}
	return rt, nil
}

// Turn answers one caller message. When the active handler transfers the
// conversation, the new handler takes over within the same turn: its opening
// line is spoken, or it answers the message itself when it has none.
func (r *Runtime) Turn(ctx context.Context, conversationID, text string) (TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, apperr.Validation("message is empty")
	}

	state, err := r.dispatcher.Session(ctx, conversationID)
	if err != nil {
		return TurnResult{}, err
	}
	if err := r.ensureSession(ctx, conversationID); err != nil {
		return TurnResult{}, err
	}
	ctx = context.WithValue(withConversation(ctx, conversationID), logger.ConversationIDKey, conversationID)

	result := TurnResult{ConversationID: conversationID, Replies: []Reply{}, Transfers: []handoff.Transition{}}
	handler := state.ActiveHandler
	seen := len(state.HandoffHistory)

	for hop := 0; hop < len(r.graph.Nodes()); hop++ {
		reply, err := r.run(ctx, handler, conversationID, text)
		if err != nil {
			return TurnResult{}, err
		}
		if reply != "" {
			result.Replies = append(result.Replies, r.reply(handler, reply))
		}

		state, err = r.dispatcher.Session(ctx, conversationID)
		if err != nil {
			return TurnResult{}, err
		}
		if state.ActiveHandler == handler {
			break
		}

		result.Transfers = append(result.Transfers, state.HandoffHistory[seen:]...)
		seen = len(state.HandoffHistory)
		handler = state.ActiveHandler

		if node, ok := r.graph.Node(handler); ok && node.Opening != "" {
			result.Replies = append(result.Replies, r.reply(handler, node.Opening))
			break
		}
	}

	result.Handler = handler
	if node, ok := r.graph.Node(handler); ok {
		result.AgentName = node.DisplayName
	}
	return result, nil
}

// Forget drops the model history of a conversation.
func (r *Runtime) Forget(ctx context.Context, conversationID string) {
	r.mu.Lock()
	_, ok := r.known[conversationID]
	delete(r.known, conversationID)
	r.mu.Unlock()
	if !ok {
		return
	}

	if err := r.sessions.Delete(ctx, &session.DeleteRequest{
		AppName:   appName,
		UserID:    conversationID,
		SessionID: conversationID,
	}); err != nil {
		r.log.Warn("failed to delete model session", "conversationId", conversationID, "error", err)
	}
}

func (r *Runtime) ensureSession(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.known[conversationID]; ok {
		return nil
	}

	_, err := r.sessions.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    conversationID,
		SessionID: conversationID,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "create model session", err)
	}
	r.known[conversationID] = struct{}{}
	return nil
}

func (r *Runtime) run(ctx context.Context, handler handoff.HandlerName, conversationID, text string) (string, error) {
	rn, ok := r.runners[handler]
	if !ok {
		return "", apperr.Internal("no agent for handler " + string(handler))
	}

	userMessage := &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{Text: text},
		},
	}
	runConfig := agent.RunConfig{
		StreamingMode: agent.StreamingModeNone,
	}

	var out strings.Builder
	for event, err := range rn.Run(ctx, conversationID, conversationID, userMessage, runConfig) {
		if err != nil {
			return "", apperr.Wrap(apperr.KindBackend, "conversation model failed", err)
		}
		if event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			if part.Text == "" || part.Thought {
				continue
			}
			if out.Len() > 0 {
				out.WriteString(" ")
			}
			out.WriteString(strings.TrimSpace(part.Text))
		}
	}
	return out.String(), nil
}

func (r *Runtime) reply(handler handoff.HandlerName, text string) Reply {
	node, _ := r.graph.Node(handler)
	return Reply{Handler: handler, AgentName: node.DisplayName, Text: text}
}
