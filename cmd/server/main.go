// main wires the consent lifecycle engine: directory, artifact store,
// projection cache, audit trail, and the HTTP surface. Business logic lives
// in the internal packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"concur/internal/consent/cache"
	"concur/internal/consent/handler"
	consentmetrics "concur/internal/consent/metrics"
	"concur/internal/consent/service"
	"concur/internal/consent/store"
	"concur/internal/directory"
	"concur/internal/platform/config"
	"concur/internal/platform/httpserver"
	"concur/internal/platform/kafka"
	"concur/internal/platform/logger"
	platformmongo "concur/internal/platform/mongo"
	"concur/internal/platform/postgres"
	platformredis "concur/internal/platform/redis"
	"concur/pkg/platform/audit"
	"concur/pkg/platform/circuit"
)

const (
	shutdownGrace = 10 * time.Second
	auditBuffer   = 256
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, err := buildDirectory(ctx, cfg)
	if err != nil {
		log.Error("directory init failed", "error", err)
		os.Exit(1)
	}

	artifactStore, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error("store init failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	projectionCache, closeCache, err := buildCache(cfg, log)
	if err != nil {
		log.Error("cache init failed", "error", err)
		os.Exit(1)
	}
	defer closeCache()

	sink, runAudit, closeAudit, err := buildAudit(ctx, cfg, log)
	if err != nil {
		log.Error("audit init failed", "error", err)
		os.Exit(1)
	}
	defer closeAudit()
	go runAudit(ctx)

	met := consentmetrics.New()
	engine := service.NewEngine(dir, artifactStore, projectionCache,
		service.WithAuditSink(sink),
		service.WithMetrics(met),
		service.WithLogger(log),
		service.WithCacheTTL(cfg.Consent.CacheTTL),
		service.WithOpTimeout(cfg.Consent.OpTimeout),
	)

	router := chi.NewRouter()
	handler.New(engine, log, met).Register(router)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Server.Addr, router)
	log.Info("starting concur", "addr", cfg.Server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	if err := httpserver.Shutdown(srv, shutdownGrace); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// buildDirectory prefers MongoDB, falling back to the YAML seed file.
func buildDirectory(ctx context.Context, cfg config.Config) (directory.Directory, error) {
	if cfg.Mongo.URI != "" {
		client, err := platformmongo.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		return directory.NewMongo(client, cfg.Mongo.Database,
			directory.WithMongoTimeout(cfg.Mongo.Timeout)), nil
	}
	if cfg.Consent.DirectorySeed != "" {
		points, err := directory.LoadSeed(cfg.Consent.DirectorySeed)
		if err != nil {
			return nil, err
		}
		return directory.NewMemory(points...), nil
	}
	return directory.NewMemory(), nil
}

// buildStore prefers PostgreSQL, falling back to the in-memory store for
// development runs without a database.
func buildStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	if cfg.Postgres.DSN == "" {
		return store.NewMemory(), func() {}, nil
	}
	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}
	pg := store.NewPostgres(db)
	if err := pg.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return pg, func() { db.Close() }, nil
}

// buildCache wraps the Redis cache in a circuit breaker; without Redis the
// in-process cache serves single-instance deployments.
func buildCache(cfg config.Config, log *slog.Logger) (cache.Cache, func(), error) {
	client, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return cache.NewMemory(), func() {}, nil
	}
	breaker := circuit.New("projection-cache")
	wrapped := cache.NewBreaker(cache.NewRedis(client.Client), breaker, log)
	return wrapped, func() { _ = client.Close() }, nil
}

// buildAudit publishes to Kafka when brokers are configured; otherwise the
// trail stays on the in-memory sink. The returned run function drains the
// engine's emission channel.
func buildAudit(ctx context.Context, cfg config.Config, log *slog.Logger) (audit.Sink, func(context.Context), func(), error) {
	var target audit.Sink = audit.NewMemoryStore()
	closeFn := func() {}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(ctx, cfg.Kafka.Brokers)
		if err != nil {
			return nil, nil, nil, err
		}
		target = audit.NewKafkaPublisher(producer, cfg.Kafka.Topic)
		closeFn = producer.Close
	}

	inbox := make(chan audit.Event, auditBuffer)
	worker := audit.NewWorker(target, inbox, log)
	sink := channelSink{inbox: inbox}
	run := func(ctx context.Context) { _ = worker.Run(ctx) }
	return sink, run, closeFn, nil
}

// channelSink feeds the worker without blocking the engine; a full inbox
// drops the event.
type channelSink struct {
	inbox chan<- audit.Event
}

func (s channelSink) Publish(_ context.Context, event audit.Event) error {
	select {
	case s.inbox <- event:
		return nil
	default:
		return errors.New("audit inbox full")
	}
}
