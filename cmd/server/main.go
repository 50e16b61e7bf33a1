// Package main is the entrypoint for the PickFlow API server.
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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmancini/pickflow/internal/api"
	"github.com/dmancini/pickflow/internal/api/handler"
	mw "github.com/dmancini/pickflow/internal/api/middleware"
	"github.com/dmancini/pickflow/internal/api/response"
	"github.com/dmancini/pickflow/internal/blob"
	"github.com/dmancini/pickflow/internal/cache"
	"github.com/dmancini/pickflow/internal/config"
	"github.com/dmancini/pickflow/internal/jobs"
	"github.com/dmancini/pickflow/internal/metrics"
	"github.com/dmancini/pickflow/internal/queue"
	"github.com/dmancini/pickflow/internal/registry"
	"github.com/dmancini/pickflow/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "models", len(cfg.Models.Endpoints))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create dispatch queue
	dispatch, err := queue.NewRedisQueue(cfg.Redis.URL, cfg.Redis.QueueKey, cfg.Redis.DequeueTimeout)
	if err != nil {
		return fmt.Errorf("create dispatch queue: %w", err)
	}
	defer dispatch.Close()

	// 6. Create result store
	results, err := blob.NewAzureStore(cfg.Blob)
	if err != nil {
		return fmt.Errorf("create result store: %w", err)
	}
	slog.Info("result store initialized", "container", cfg.Blob.Container)

	// 7. Create store, directory, metrics, and service
	pgStore := store.NewPostgresStore(pool)

	directory := registry.New(cfg.Models.Endpoints)
	if cfg.Models.RefreshInterval > 0 {
		go directory.RunRefresh(ctx, cfg.Models.RefreshInterval, func(_ context.Context) (map[string]string, error) {
			fresh, err := config.Load()
			if err != nil {
				return nil, err
			}
			return fresh.Models.Endpoints, nil
		})
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	go serveMetrics(cfg.Server.MetricsPort, reg)

	svc := jobs.NewService(pgStore, dispatch, results, directory, redisCache, m)

	// 8. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache),

		SubmitHandler: handler.NewSubmitHandler(svc),
		StatusHandler: handler.NewStatusHandler(svc),
		ListHandler:   handler.NewListHandler(svc),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
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

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
