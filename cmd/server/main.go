// Command server starts the block inventory admin service.
//
// It serves the kitchen-sink dashboard and its AJAX actions, reference
// lookups, directive previews and published pages with directives expanded.
// Content is read from PostgreSQL or from a YAML fixture. API keys come from
// configuration and, with PostgreSQL, from the api_keys table. Nonces live in
// Redis (or memory), and scan activity is published to Kafka.
//
// Usage:
//
//	go run ./cmd/server [-config configs/development.yaml]
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
	"time"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/activity"
	adminhandler "github.com/Adithya-Monish-Kumar-K/block-inventory/internal/admin/handler"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/admin/router"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/auth/nonce"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/content"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/directive"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/inventory"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/kitchensink"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/render"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/theme"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
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
	slog.Info("starting block inventory service",
		"port", cfg.Server.Port,
		"content_driver", cfg.Content.Driver,
		"reference_matching", cfg.Inventory.ReferenceMatching,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	checker := health.NewChecker()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, checker.ReadyHandler())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	// Content store. The postgres driver also enables stored API keys.
	var (
		store content.Store
		db    *postgres.Client
	)
	switch cfg.Content.Driver {
	case "postgres":
		err = resilience.Retry(ctx, "postgres connect", resilience.StartupRetry, func() error {
			var err error
			db, err = postgres.New(cfg.Postgres)
			return err
		})
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = content.NewSQLStore(db)
		checker.Register("postgres", health.Pinger(db.Ping, false))
		slog.Info("connected to postgres")
	case "fixture":
		mem, err := content.LoadFixture(cfg.Content.Fixture)
		if err != nil {
			slog.Error("failed to load content fixture", "path", cfg.Content.Fixture, "error", err)
			os.Exit(1)
		}
		store = mem
		slog.Info("loaded content fixture", "path", cfg.Content.Fixture)
	}

	// Auth: configured keys first, then stored keys.
	validator := apikey.Chain{apikey.NewStatic(cfg.Auth.StaticKeys)}
	var keys adminhandler.KeyManager
	if db != nil {
		pgKeys := apikey.NewValidator(db)
		validator = append(validator, pgKeys)
		keys = pgKeys
	}
	limiter := ratelimit.New(cfg.Auth.RateLimitWindow)
	defer limiter.Close()

	nonces, closeNonces := newNonceStore(cfg, checker)
	defer closeNonces()

	// Activity reporting.
	var tracker activity.Tracker = activity.Discard{}
	if cfg.Activity.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Activity)
		defer producer.Close()
		collector := activity.NewCollector(producer, activity.CollectorConfig{
			MaxBuffer: cfg.Activity.BufferSize,
			Metrics:   m,
		})
		collector.Start(ctx)
		defer func() {
			stop()
			collector.Close()
		}()
		tracker = collector
		slog.Info("activity reporting enabled", "topic", cfg.Kafka.Topics.Activity)
	}

	svc, err := inventory.New(store, inventory.Config{
		BaseURL:           cfg.Site.BaseURL,
		ReferenceMatching: cfg.Inventory.ReferenceMatching,
		Metrics:           m,
		Tracker:           tracker,
	})
	if err != nil {
		slog.Error("failed to create inventory service", "error", err)
		os.Exit(1)
	}

	renderer, err := render.New()
	if err != nil {
		slog.Error("failed to parse templates", "error", err)
		os.Exit(1)
	}
	sink := kitchensink.NewBuilder(svc, theme.New(cfg.Theme))
	directives := directive.NewRegistry(
		directive.NewBlockList(svc, renderer),
		directive.NewKitchenSink(sink, renderer),
	)

	h := adminhandler.New(adminhandler.Config{
		ChunkSize: cfg.Inventory.ChunkSize,
	}, svc, sink, directives, renderer, nonce.WithMetrics(nonces, m), keys)

	chain := router.New(router.Deps{
		Handler:            h,
		Health:             checker,
		Validator:          validator,
		Limiter:            limiter,
		Metrics:            m,
		RequiredCapability: cfg.Auth.RequiredCapability,
		AllowOrigins:       cfg.Server.AllowOrigins,
		RequestTimeout:     cfg.Server.RequestTimeout,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
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

	slog.Info("block inventory service listening", "addr", server.Addr, "directives", directives.Names())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("block inventory service stopped")
}

// newNonceStore connects to Redis when configured and falls back to an
// in-process store when Redis is unreachable. Memory nonces do not survive a
// restart and are not shared between replicas.
func newNonceStore(cfg *config.Config, checker *health.Checker) (nonce.Store, func()) {
	if cfg.Auth.NonceStore == "redis" {
		client, err := redis.NewClient(cfg.Redis)
		if err == nil {
			checker.Register("redis", health.Pinger(client.Ping, false))
			slog.Info("connected to redis", "addr", cfg.Redis.Addr)
			return nonce.NewRedisStore(client, cfg.Auth.NonceTTL), func() { client.Close() }
		}
		slog.Warn("redis unavailable, using in-memory nonces", "addr", cfg.Redis.Addr, "error", err)
	}
	return nonce.NewMemoryStore(cfg.Auth.NonceTTL), func() {}
}
