// Package main is the entrypoint for the PickFlow worker, which consumes
// dispatch messages and executes prediction jobs against model endpoints.
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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmancini/pickflow/internal/blob"
	"github.com/dmancini/pickflow/internal/cache"
	"github.com/dmancini/pickflow/internal/config"
	"github.com/dmancini/pickflow/internal/jobs"
	"github.com/dmancini/pickflow/internal/metrics"
	"github.com/dmancini/pickflow/internal/modelapi"
	"github.com/dmancini/pickflow/internal/notify"
	"github.com/dmancini/pickflow/internal/queue"
	"github.com/dmancini/pickflow/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env,
		"execute_timeout", cfg.Models.ExecuteTimeout, "inline_limit", cfg.Models.InlineLimit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	dispatch, err := queue.NewRedisQueue(cfg.Redis.URL, cfg.Redis.QueueKey, cfg.Redis.DequeueTimeout)
	if err != nil {
		return fmt.Errorf("create dispatch queue: %w", err)
	}
	defer dispatch.Close()

	publisher, err := notify.NewRedisPublisher(cfg.Redis.URL, cfg.Redis.ProgressChannel)
	if err != nil {
		return fmt.Errorf("create progress publisher: %w", err)
	}
	defer publisher.Close()

	results, err := blob.NewAzureStore(cfg.Blob)
	if err != nil {
		return fmt.Errorf("create result store: %w", err)
	}
	slog.Info("result store initialized", "container", cfg.Blob.Container)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	go serveMetrics(cfg.Server.MetricsPort, reg)

	client := modelapi.NewHTTPClient(cfg.Models.ExecuteTimeout)

	processor := jobs.NewProcessor(
		store.NewPostgresStore(pool),
		dispatch,
		results,
		client,
		publisher,
		redisCache,
		m,
		cfg.Models.ExecuteTimeout,
		cfg.Models.InlineLimit,
	)

	err = processor.Run(ctx)
	if errors.Is(err, context.Canceled) {
		slog.Info("worker stopped gracefully")
	}
	return err
}

// serveMetrics exposes the Prometheus registry on its own listener.
func serveMetrics(port int, g prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))

	addr := fmt.Sprintf(":%d", port)
	slog.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server failed", "error", err)
	}
}
