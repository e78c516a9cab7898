package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rberts/delibera/internal/config"
	"github.com/rberts/delibera/internal/logger"
	"github.com/rberts/delibera/internal/server"
	"github.com/rberts/delibera/internal/services"
	"github.com/rberts/delibera/internal/storage/migrations"
	"github.com/rberts/delibera/internal/storage/objectstore"
	"github.com/rberts/delibera/internal/storage/postgres"
)

func main() {
	cfg := config.Load()
	logger.Initialize(cfg.Server.LogLevel)
	log := logger.Get()

	db, err := postgres.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	if err := migrations.Run(db); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	var archiver services.RosterArchiver
	store, err := objectstore.New(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to connect to object store", "error", err)
	}
	if store != nil {
		archiver = store
	}

	srv := server.New(cfg, db, archiver)

	httpServer := &http.Server{
		Addr:         srv.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Starting server", "addr", httpServer.Addr, "mode", cfg.Server.GinMode)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", "error", err)
	}
	log.Info("Server stopped")
}
