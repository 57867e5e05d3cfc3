package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"phoneai_backend/platform/apperr"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Store keeps session state between turns.
type Store interface {
	// Get returns the session or a KindNotFound error.
	Get(ctx context.Context, id string) (SessionState, error)
	// Save creates or replaces the session.
	Save(ctx context.Context, state SessionState) error
	// Delete discards the session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}

func sessionNotFound(id string) error {
	return apperr.NotFound(fmt.Sprintf("conversation %s not found", id))
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]SessionState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]SessionState)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return SessionState{}, sessionNotFound(id)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, state SessionState) error {
	if state.ID == "" {
		return apperr.Validation("session id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[state.ID] = state.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

const sessionKeyPrefix = "phoneai:session:"

// RedisStore keeps sessions as JSON values with a sliding TTL so several API
// replicas can serve the same conversation.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisStore creates a Redis backed store. A non-positive ttl keeps keys
// without expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("handoff: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("phoneai.internal.handoff.store")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{redis: client, ttl: ttl, tracer: tracer}
}

func (s *RedisStore) Get(ctx context.Context, id string) (SessionState, error) {
	ctx, span := s.tracer.Start(ctx, "handoff.load_session")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return SessionState{}, sessionNotFound(id)
		}
		span.RecordError(err)
		return SessionState{}, apperr.Wrap(apperr.KindInternal, "load session", err)
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return SessionState{}, apperr.Wrap(apperr.KindInternal, "decode session", err)
	}
	return state.Clone(), nil
}

func (s *RedisStore) Save(ctx context.Context, state SessionState) error {
	ctx, span := s.tracer.Start(ctx, "handoff.save_session")
	defer span.End()

	if state.ID == "" {
		return apperr.Validation("session id is required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return apperr.Wrap(apperr.KindInternal, "encode session", err)
	}
	if err := s.redis.Set(ctx, sessionKey(state.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return apperr.Wrap(apperr.KindInternal, "persist session", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "handoff.delete_session")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(id)).Err(); err != nil {
		span.RecordError(err)
		return apperr.Wrap(apperr.KindInternal, "delete session", err)
	}
	return nil
}

// Ping checks the Redis connection for readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
