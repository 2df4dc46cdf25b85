package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segyhp/dealer-loan-engine/internal/app"
	"github.com/segyhp/dealer-loan-engine/internal/config"
	"github.com/segyhp/dealer-loan-engine/internal/handler"
	"github.com/segyhp/dealer-loan-engine/internal/metrics"
	"github.com/segyhp/dealer-loan-engine/pkg/logger"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Level: "error", Format: "json"}).Error("load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	engine, err := app.New(startCtx, cfg, log)
	cancelStart()
	if err != nil {
		log.Error("initialize engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	// a nil *redis.Client must not become a non-nil interface
	var redisClient redis.UniversalClient
	if engine.Redis != nil {
		redisClient = engine.Redis
	}

	loanHandler := handler.NewLoanHandler(engine.Loans, engine.Delinquency, log)
	healthHandler := handler.NewHealthHandler(engine.Store, redisClient, cfg.GetHealthTimeout())
	router := handler.NewRouter(loanHandler, healthHandler, metrics.Handler(engine.Registry), log, engine.Metrics)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
	}

	// Start server in a goroutine
	go func() {
		log.Info("server starting", "addr", server.Addr, "env", cfg.Server.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
