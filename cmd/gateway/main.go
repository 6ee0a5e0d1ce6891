package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"ticketflow/internal/gateway"
	"ticketflow/internal/platform/config"
	"ticketflow/internal/platform/httpserver"
	"ticketflow/internal/platform/kafka/producer"
	"ticketflow/internal/platform/logger"
	"ticketflow/internal/platform/metrics"
	"ticketflow/internal/platform/redis"
)

// main wires the HTTP front door: redis staging, the kafka producer, and the
// router. Business logic stays in internal/gateway.
func main() {
	cfg := config.GatewayFromEnv()
	log := logger.New(config.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("startup failed: redis unreachable", "error", err)
		os.Exit(1)
	}

	prod, err := producer.New(ctx, producer.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	}, log)
	if err != nil {
		log.Error("startup failed: broker unreachable", "error", err)
		redisClient.Close()
		os.Exit(1)
	}

	var cleanupOnce sync.Once
	cleanup := func() {
		cleanupOnce.Do(func() {
			prod.Close()
			redisClient.Close()
			log.Info("gateway stopped")
		})
	}
	defer cleanup()

	m := metrics.NewGateway()
	stage := gateway.NewStage(redisClient)
	emitter := gateway.NewEmitter(prod, log, m)
	handler := gateway.NewHandler(stage, emitter, prod, log)
	srv := httpserver.New(cfg.Addr, gateway.NewRouter(handler))
	metricsSrv := httpserver.New(cfg.MetricsAddr, promhttp.Handler())

	log.Info("gateway running",
		"addr", cfg.Addr,
		"metrics_addr", cfg.MetricsAddr,
		"topic", cfg.Kafka.Topic,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if err := httpserver.Shutdown(metricsSrv); err != nil {
			log.Warn("metrics listener shutdown failed", "error", err)
		}
		return httpserver.Shutdown(srv)
	})

	if err := g.Wait(); err != nil {
		log.Error("gateway exited with error", "error", err)
		cleanup()
		os.Exit(1)
	}
}
