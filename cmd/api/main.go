package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"phoneai_backend/internal/agents"
	"phoneai_backend/internal/conversation"
	"phoneai_backend/internal/conversation/runtime"
	"phoneai_backend/internal/events"
	"phoneai_backend/internal/handoff"
	apphttp "phoneai_backend/internal/http"
	"phoneai_backend/internal/http/router"
	"phoneai_backend/internal/identification"
	"phoneai_backend/internal/observability/metrics"
	"phoneai_backend/internal/toolkit"
	"phoneai_backend/platform/ai/chatmodel"
	"phoneai_backend/platform/config"
	"phoneai_backend/platform/logger"
	"phoneai_backend/platform/validator"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	graph, err := loadGraph(cfg)
	if err != nil {
		log.Error("failed to load handoff graph", "error", err)
		panic("failed to load handoff graph: " + err.Error())
	}
	log.Info("handoff graph loaded", "initial", graph.Initial(), "nodes", len(graph.Nodes()), "edges", len(graph.Edges()))

	store, health, closeStore, err := initSessionStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize session store", "error", err)
		panic("failed to initialize session store: " + err.Error())
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	events.NewAuditLogger(log).RegisterHandlers(eventBus)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	identificationModule, err := identification.NewModule(cfg, val, m, log)
	if err != nil {
		log.Error("failed to initialize identification module", "error", err)
		panic("failed to initialize identification module: " + err.Error())
	}

	operations, err := agents.NewRegistry(graph, identificationModule.Service())
	if err != nil {
		log.Error("failed to register handler operations", "error", err)
		panic("failed to register handler operations: " + err.Error())
	}
	dispatcher := toolkit.NewDispatcher(operations, handoff.NewRouter(graph), store, eventBus, m, log)

	var rt *runtime.Runtime
	if cfg.IsLLMEnabled() {
		llm := chatmodel.New(chatmodel.Config{
			APIKey:  cfg.GetLLMAPIKey(),
			BaseURL: cfg.GetLLMBaseURL(),
			Model:   cfg.GetLLMModel(),
		})
		rt, err = runtime.New(llm, dispatcher, log)
		if err != nil {
			log.Error("failed to initialize conversation runtime", "error", err)
			panic("failed to initialize conversation runtime: " + err.Error())
		}
		log.Info("conversation model configured", "model", llm.Name())
	} else {
		log.Warn("LLM_API_KEY not configured; model-driven turns disabled")
	}

	conversationModule := conversation.NewModule(dispatcher, rt, cfg, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   health,
		Metrics:  registry,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			conversationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
	log.Info("server stopped")
}

func loadGraph(cfg config.HandoffConfig) (*handoff.Graph, error) {
	if path := cfg.GetHandoffGraphFile(); path != "" {
		return handoff.LoadGraphFile(path)
	}
	return handoff.DefaultGraph()
}

// initSessionStore picks Redis when REDIS_URL is set and an in-process map
// otherwise. The returned checker is nil for the in-process store.
func initSessionStore(ctx context.Context, cfg config.SessionConfig, log *logger.Logger) (handoff.Store, apphttp.HealthChecker, func(), error) {
	if !cfg.IsRedisEnabled() {
		log.Warn("REDIS_URL not configured; sessions are kept in process memory")
		return handoff.NewMemoryStore(), nil, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	store := handoff.NewRedisStore(client, cfg.GetSessionTTL(), nil)
	if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
		return store.Ping(ctx)
	}); err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}
	log.Info("redis session store connected", "ttl", cfg.GetSessionTTL())

	return store, store, func() { _ = client.Close() }, nil
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
