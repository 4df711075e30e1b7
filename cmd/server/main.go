package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/product-console/internal/api"
	"github.com/dom/product-console/internal/config"
	"github.com/dom/product-console/internal/logger"
	"github.com/dom/product-console/internal/repository/postgres"
	"github.com/dom/product-console/internal/service"
	"github.com/dom/product-console/internal/websocket"
	gormLogger "gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Fatalw("failed to load config", "error", err)
	}

	lg := logger.New(cfg.LogLevel)
	defer lg.Sync()

	// Initialize database
	dbLogLevel := gormLogger.Warn
	if cfg.LogLevel == "debug" {
		dbLogLevel = gormLogger.Info
	}
	db, err := postgres.NewConnection(cfg.DatabaseURL, dbLogLevel)
	if err != nil {
		lg.Fatalw("failed to connect to database", "error", err)
	}

	// Initialize repositories
	repos := postgres.NewRepositories(db)

	// Initialize audit feed hub
	hub := websocket.NewHub(lg)
	go hub.Run()

	// Initialize services
	services := service.NewServices(repos, cfg, hub, lg)

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := services.Auth.EnsureDefaultAdmin(seedCtx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		lg.Errorw("failed to seed default admin", "error", err)
	}
	cancelSeed()

	// Initialize router
	router := api.NewRouter(services, hub, cfg, lg)

	// Create server
	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		lg.Infow("server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatalw("failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		lg.Errorw("server forced to shutdown", "error", err)
	}
	hub.Stop()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	lg.Info("server stopped")
}
