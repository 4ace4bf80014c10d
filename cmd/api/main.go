package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/scan-insight/internal/bootstrap"
	"github.com/bryanwahyu/scan-insight/internal/config"
	"github.com/bryanwahyu/scan-insight/internal/infra/httpserver"
	"github.com/bryanwahyu/scan-insight/internal/infra/logging"
	"github.com/bryanwahyu/scan-insight/internal/middleware"
)

func main() {
	// load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	app, err := bootstrap.Build(ctx, cfg, logger, true)
	if err != nil {
		logger.Fatal("bootstrap failed", zap.Error(err))
	}
	defer app.Close()

	dbCheck := &middleware.DatabaseHealthChecker{DB: app.DB}
	handler := httpserver.NewRouter(httpserver.Deps{
		Ingest:  app.Ingest,
		Asker:   app.Orchestrator,
		Threads: app.Threads,
		Summary: app.SummaryOptions(),
		Health: map[string]middleware.HealthChecker{
			"database": dbCheck,
			"reports":  &middleware.ReportDirChecker{Dir: cfg.Reports.Dir},
		},
		Ready:          map[string]middleware.HealthChecker{"database": dbCheck},
		APIKeys:        cfg.Auth.APIKeys,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateCapacity:   cfg.RateLimit.Capacity,
		RateRefill:     cfg.RateLimit.RefillPerSecond,
		Log:            logger.Named("http"),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// a turn can chain several completions
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		logger.Info("server listening", zap.String("addr", addr), zap.String("driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
