package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parley/internal/auth"
	"parley/internal/chat"
	"parley/internal/config"
	"parley/internal/keypool"
	"parley/internal/logger"
	"parley/internal/server"
	"parley/internal/store"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	// Initialize structured logger
	log := logger.New()
	logger.SetDefault(log)

	// Load configuration from environment
	cfg := config.Load()

	slog.Info("Starting Parley gateway",
		"port", cfg.Port,
		"data_file", cfg.DataFile,
		"static_dir", cfg.StaticDir,
		"keys_configured", len(cfg.APIKeys),
	)

	if len(cfg.APIKeys) == 0 {
		slog.Warn("No upstream API keys configured; chat requests will be rejected")
	}

	// Initialize the flat document store
	st := store.New(cfg.DataFile, log)

	// Initialize the key pool and personas
	pool := keypool.New(cfg.APIKeys)
	personas := chat.NewPersonas(cfg.MusePrompt, cfg.MuseModel, cfg.SagePrompt, cfg.SageModel)

	// Initialize services
	authService := auth.NewService(st)

	chatService, err := chat.NewService(context.Background(), pool, personas, cfg.UpstreamBaseURL)
	if err != nil {
		slog.Error("Failed to create chat service", "error", err)
		os.Exit(1)
	}

	// Setup router and HTTP server
	srv := server.New(cfg, authService, chatService, pool, personas).HTTPServer()

	// Start server in a goroutine
	go func() {
		slog.Info("Parley gateway listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down Parley gateway")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Parley gateway stopped")
}
