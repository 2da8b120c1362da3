package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nyuta01/agenthub/internal/adapter/gormstore"
	hubhttp "github.com/nyuta01/agenthub/internal/adapter/http"
	"github.com/nyuta01/agenthub/internal/adapter/memory"
	hubnats "github.com/nyuta01/agenthub/internal/adapter/nats"
	"github.com/nyuta01/agenthub/internal/adapter/natskv"
	hubotel "github.com/nyuta01/agenthub/internal/adapter/otel"
	"github.com/nyuta01/agenthub/internal/adapter/postgres"
	"github.com/nyuta01/agenthub/internal/adapter/ristretto"
	"github.com/nyuta01/agenthub/internal/adapter/stream"
	"github.com/nyuta01/agenthub/internal/adapter/tiered"
	"github.com/nyuta01/agenthub/internal/adapter/ws"
	"github.com/nyuta01/agenthub/internal/config"
	"github.com/nyuta01/agenthub/internal/domain/a2a"
	"github.com/nyuta01/agenthub/internal/logger"
	"github.com/nyuta01/agenthub/internal/middleware"
	"github.com/nyuta01/agenthub/internal/port/cache"
	"github.com/nyuta01/agenthub/internal/port/eventchannel"
	"github.com/nyuta01/agenthub/internal/port/storage"
	"github.com/nyuta01/agenthub/internal/service"
	"github.com/nyuta01/agenthub/internal/workpool"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Backend,
		"events", cfg.Events.Backend,
		"log_level", cfg.Logging.Level,
	)

	ctx := context.Background()

	// --- Observability ---
	var metrics *hubotel.Metrics
	if cfg.Otel.Endpoint != "" {
		shutdownOtel, err := hubotel.Setup(ctx, cfg.Logging.Service, cfg.Otel.Endpoint)
		if err != nil {
			return fmt.Errorf("otel: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOtel(shutdownCtx)
		}()

		metrics, err = hubotel.NewMetrics()
		if err != nil {
			return fmt.Errorf("otel metrics: %w", err)
		}
		slog.Info("otel exporters started", "endpoint", cfg.Otel.Endpoint)
	}

	// --- Storage ---
	var store storage.Store
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		store = memory.NewStore()
	case config.StoragePostgres:
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		slog.Info("migrations applied")

		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		store = postgres.NewStore(pool)
		slog.Info("postgres connected")
	case config.StorageSQLite:
		// The pragma turns on enforcement of the cascading foreign keys;
		// sqlite leaves them off per connection by default.
		dsn := "file:" + cfg.Storage.SQLitePath + "?_pragma=foreign_keys(1)"
		gstore, err := gormstore.Open(sqlite.Open(dsn))
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		store = gstore
		slog.Info("sqlite opened", "path", cfg.Storage.SQLitePath)
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	// --- Event fan-out ---
	hub := ws.NewHub()

	var channel eventchannel.Channel
	var natsChan *hubnats.Channel
	switch cfg.Events.Backend {
	case config.EventsStream:
		channel = stream.NewChannel(stream.WithSnapshots(store), stream.WithBroadcaster(hub))
	case config.EventsNATS:
		natsChan, err = hubnats.Connect(cfg.NATS.URL,
			hubnats.WithSubjectPrefix(cfg.NATS.SubjectPrefix),
			hubnats.WithSnapshots(store),
			hubnats.WithBroadcaster(hub),
		)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer natsChan.Close()
		channel = natsChan
		slog.Info("nats connected", "url", cfg.NATS.URL)
	default:
		return fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}

	// --- Services ---
	lifecycle := service.NewLifecycle(store, channel)
	registry := service.NewRegistry()
	registerBuiltins(registry)
	dispatcher := service.NewDispatcher(registry, store, lifecycle, metrics)
	if cfg.Dispatch.MaxConcurrent > 0 {
		dispatcher.SetPool(workpool.NewPool(cfg.Dispatch.MaxConcurrent))
	}

	// --- HTTP ---
	l1, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer l1.Close()

	// With NATS available the idempotency cache gains a shared L2, so
	// replays hit whichever instance receives the retry.
	var respCache cache.Cache = l1
	if natsChan != nil {
		kv, err := natskv.CreateBucket(ctx, natsChan.Conn(), "agenthub_idempotency", cfg.Idempotency.TTL)
		if err != nil {
			return fmt.Errorf("nats kv: %w", err)
		}
		respCache = tiered.New(l1, natskv.New(kv), cfg.Idempotency.TTL)
	}

	handlers := hubhttp.NewHandlers(dispatcher, registry, channel, cfg.Agent, cfg.Server.BodyLimit)

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(time.Minute, 10*time.Minute)
	defer stopCleanup()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hubhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(hubhttp.SecurityHeaders)
	r.Use(hubhttp.CORS(cfg.Server.CORSOrigin))
	if cfg.Otel.Endpoint != "" {
		r.Use(hubotel.HTTPMiddleware(cfg.Logging.Service))
	}
	r.Use(limiter.Handler)
	r.Use(middleware.Idempotency(respCache, cfg.Idempotency.TTL))

	r.Get("/ws", hub.HandleWS)
	hubhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// SSE connections stay open indefinitely, so no WriteTimeout.
		IdleTimeout: 120 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// registerBuiltins installs the echo executor so a bare server has one
// working capability end to end: it narrates, stores an artifact with the
// input text, and completes.
func registerBuiltins(registry *service.Registry) {
	registry.Register(service.Executor{
		Extension: "urn:agenthub:echo",
		InputSchema: &service.Schema{
			Fields: map[string]service.FieldSpec{
				"text": {Type: service.FieldString, Required: true},
			},
		},
		Execute: func(ctx context.Context, input map[string]any, tc *service.TaskContext) (any, error) {
			if err := tc.UpdateStatus(ctx, a2a.TaskStatus{State: a2a.StateWorking}); err != nil {
				return nil, err
			}

			text, _ := input["text"].(string)
			artifact := &a2a.Artifact{
				ArtifactID: uuid.NewString(),
				Name:       "echo",
				Parts:      []a2a.Part{a2a.NewTextPart(text)},
			}
			if err := tc.UpdateArtifact(ctx, artifact); err != nil {
				return nil, err
			}

			if err := tc.UpdateStatus(ctx, a2a.TaskStatus{State: a2a.StateCompleted}); err != nil {
				return nil, err
			}
			return map[string]any{"text": text}, nil
		},
	})
}
