package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"ticketflow/internal/identity"
	"ticketflow/internal/oracle"
	"ticketflow/internal/pipeline"
	"ticketflow/internal/platform/config"
	"ticketflow/internal/platform/httpserver"
	"ticketflow/internal/platform/kafka/consumer"
	"ticketflow/internal/platform/logger"
	"ticketflow/internal/platform/metrics"
	"ticketflow/internal/platform/postgres"
	"ticketflow/internal/platform/tracing"
	"ticketflow/internal/store"
)

// main wires the validator process. Startup order matters: the persistence
// backend is probed before the broker consumer joins the group, so a process
// that cannot persist never starts taking deliveries. Any startup failure
// exits 1; a clean drain exits 0.
func main() {
	cfg := config.ValidatorFromEnv()
	log := logger.New(config.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("startup failed: database unreachable", "error", err)
		os.Exit(1)
	}

	resultStore := store.New(pool)
	if err := resultStore.EnsureSchema(ctx); err != nil {
		log.Error("startup failed: schema", "error", err)
		pool.Close()
		os.Exit(1)
	}

	verifier, err := identity.NewJWTVerifierFromFile(cfg.IdentityKeyFile)
	if err != nil {
		log.Error("startup failed: identity credentials", "error", err)
		pool.Close()
		os.Exit(1)
	}

	traceShutdown, err := tracing.Setup("ticket-validator")
	if err != nil {
		log.Error("startup failed: tracing", "error", err)
		pool.Close()
		os.Exit(1)
	}

	m := metrics.NewPipeline()
	oracleClient := oracle.New(cfg.OracleURL, 5*time.Second)
	pipe := pipeline.New(verifier, oracleClient, resultStore, log, m)

	cons, err := consumer.New(ctx, consumer.Config{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		GroupID:      cfg.Kafka.GroupID,
		RetryBackoff: cfg.RetryBackoff,
		MaxAttempts:  cfg.MaxAttempts,
	}, pipe, log)
	if err != nil {
		log.Error("startup failed: broker unreachable", "error", err)
		pool.Close()
		os.Exit(1)
	}

	// Cleanup runs once no matter how many termination signals arrive:
	// consumer first (stop admitting deliveries), then the span flush, then
	// the pool.
	var cleanupOnce sync.Once
	cleanup := func() {
		cleanupOnce.Do(func() {
			cons.Close()
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := traceShutdown(flushCtx); err != nil {
				log.Warn("trace flush failed", "error", err)
			}
			cancel()
			pool.Close()
			log.Info("validator stopped")
		})
	}
	defer cleanup()

	metricsSrv := httpserver.New(cfg.MetricsAddr, promhttp.Handler())

	log.Info("validator running",
		"topic", cfg.Kafka.Topic,
		"group", cfg.Kafka.GroupID,
		"metrics_addr", cfg.MetricsAddr,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cons.Run(gctx)
	})
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return httpserver.Shutdown(metricsSrv)
	})

	if err := g.Wait(); err != nil {
		log.Error("validator exited with error", "error", err)
		cleanup()
		os.Exit(1)
	}
}
