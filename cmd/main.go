/*
Package main is the entry point for the SlashChat server.

It is responsible for loading configuration, initializing the global logging
system, connecting the backing stores (PostgreSQL and Redis), starting the
fan-out hub and the optional presence churn simulator, setting up the HTTP
server, and gracefully handling operating system interrupt signals (SIGINT,
SIGTERM) to ensure a smooth shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slashchat/internal/app/churn"
	"slashchat/internal/app/session"
	"slashchat/internal/app/store"
	"slashchat/internal/configs"
	"slashchat/internal/handler"
	"slashchat/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("churn_enabled", cfg.ChurnEnabled).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect PostgreSQL and apply migrations
	pool, err := store.NewPool(cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to connect to database")
	}
	defer pool.Close()

	// Connect Redis
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logx.Fatal(err, "Failed to connect to redis")
	}
	defer rdb.Close()

	users := store.NewPGUserRepository(pool)
	messages := store.NewPGMessageRepository(pool)
	presence := store.NewRedisPresenceRepository(rdb)
	feed := store.NewRedisEventFeed(rdb)

	// Start the fan-out hub
	hub := session.NewHub(presence, feed)
	if err := hub.Start(ctx); err != nil {
		logx.Fatal(err, "Failed to start fan-out hub")
	}

	controller := session.NewController(users, messages, presence, feed, hub, cfg.JWTSecret)

	// Optional synthetic presence churn
	var simulator *churn.Simulator
	if cfg.ChurnEnabled {
		simulator = churn.NewSimulator(presence, messages, feed)
		simulator.Start(ctx)
	}

	// Setup HTTP server and routes
	deps := &handler.AppDeps{
		Controller: controller,
		Config:     cfg,
	}
	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("SlashChat Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	if simulator != nil {
		simulator.Stop()
	}

	hub.Wait()

	logx.Info("Server gracefully stopped.")
}
