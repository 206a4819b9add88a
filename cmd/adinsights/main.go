package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/radiusdt/adinsights/internal/config"
	"github.com/radiusdt/adinsights/internal/database"
	"github.com/radiusdt/adinsights/internal/httpserver"
	"github.com/radiusdt/adinsights/internal/metrics"
	"github.com/radiusdt/adinsights/internal/middleware"
	"github.com/radiusdt/adinsights/internal/scheduler"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use logger yet, fall back to panic
		panic("failed to load config: " + err.Error())
	}
	// The API only reads the warehouse; seeding uses its own pool.
	cfg.Database.ReadOnly = true

	// Initialize logger
	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("starting adinsights",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics("adinsights", reg)

	// Initialize PostgreSQL
	db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	// Redis is optional and only backs scheduler bookkeeping
	var redis *database.RedisDB
	if cfg.Redis.Enabled {
		redis, err = database.NewRedisDB(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer redis.Close()

		if last, err := redis.LastRun(ctx, scheduler.LastRunKey); err != nil {
			logger.Warn("failed to read previous heartbeat", zap.Error(err))
		} else if !last.IsZero() {
			logger.Info("previous heartbeat", zap.Time("at", last))
		}
	}

	// Background jobs
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		var store scheduler.KeyValueStore
		if redis != nil {
			store = redis.Client
		}
		sched = scheduler.New(logger, store, m)
		if err := sched.AddHeartbeat(cfg.Scheduler.Heartbeat); err != nil {
			logger.Fatal("failed to schedule heartbeat", zap.Error(err))
		}
		if err := sched.AddPoolStats(cfg.Scheduler.PoolStats, func() scheduler.PoolStats {
			s := db.Stats()
			return scheduler.PoolStats{
				Idle:  int(s.IdleConns()),
				InUse: int(s.AcquiredConns()),
				Total: int(s.TotalConns()),
			}
		}); err != nil {
			logger.Fatal("failed to schedule pool stats", zap.Error(err))
		}
		sched.Start()

		if next := sched.NextRun(); next != nil {
			logger.Info("scheduler started", zap.Time("next_run", *next))
		}
	}

	deps := &httpserver.Dependencies{
		DB:       db,
		Redis:    redis,
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Gatherer: reg,
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpserver.NewServer(deps),
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Server.QueryTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server starting", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Error("scheduler did not stop cleanly", zap.Error(err))
		}
	}

	cancel()

	logger.Info("server stopped")
}
