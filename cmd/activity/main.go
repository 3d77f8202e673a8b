// Command activity starts the scan activity service.
//
// It consumes scan events published by the inventory service from Kafka,
// aggregates them in memory (scan counts per kind, failures, latency
// percentiles, last scan) and serves the aggregate at GET /api/v1/activity.
// With PostgreSQL reachable, the aggregate is also snapshotted periodically
// and the history is served at GET /api/v1/activity/snapshots.
//
// Usage:
//
//	go run ./cmd/activity [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/activity"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting activity service", "port", cfg.Activity.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := activity.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Activity, activity.HandleEvent(aggregator))
	defer consumer.Close()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("activity consumer error", "error", err)
		}
	}()
	slog.Info("activity consumer started", "topic", cfg.Kafka.Topics.Activity)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
	})

	// Snapshots are optional; the live aggregate works without Postgres.
	var snapshots activity.SnapshotLister
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer db.Close()
		store := activity.NewStore(db)
		store.StartPeriodicSave(ctx, aggregator, cfg.Activity.SnapshotInterval)
		snapshots = store
		checker.Register("postgres", health.Pinger(db.Ping, true))
	}

	h := activity.NewHandler(aggregator, snapshots)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/activity", h.Stats)
	mux.HandleFunc("GET /api/v1/activity/snapshots", h.Snapshots)
	mux.HandleFunc("GET /api/v1/activity/snapshots/latest", h.LatestSnapshot)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := middleware.Chain(mux,
		middleware.RequestID,
		middleware.OTel("activity"),
		middleware.Recover,
		middleware.Logger,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Activity.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("activity service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("activity service stopped")
}
