package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agarciaarin-ops/SCUMM-AI/internal/config"
	"github.com/agarciaarin-ops/SCUMM-AI/internal/engine"
	"github.com/agarciaarin-ops/SCUMM-AI/internal/handlers"
	"github.com/agarciaarin-ops/SCUMM-AI/internal/logger"
	"github.com/agarciaarin-ops/SCUMM-AI/internal/middleware"
	"github.com/agarciaarin-ops/SCUMM-AI/internal/services"
)

func main() {
	// Optional .env for local development; the environment wins.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting adventure API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"text_model", cfg.TextModel,
		"fallback_text_model", cfg.FallbackTextModel,
		"image_model", cfg.ImageModel)

	if cfg.GeminiAPIKey == "" {
		log.Error("GEMINI_API_KEY is required")
		os.Exit(1)
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer startupCancel()

	gen, err := services.NewGeminiService(startupCtx, cfg.GeminiAPIKey, cfg.ImageModel, log)
	if err != nil {
		log.Error("Failed to initialize generative service", "error", err)
		os.Exit(1)
	}
	defer gen.Close()

	var store services.SessionStore
	if cfg.RedisURL != "" {
		redisStore := services.NewRedisStore(cfg.RedisURL, log)
		if err := redisStore.WaitForConnection(startupCtx); err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		store = redisStore
	} else {
		log.Info("No REDIS_URL configured, using in-memory session store")
		store = services.NewMemoryStore()
	}

	eng := engine.NewEngine(gen, engine.Options{
		TextModel:         cfg.TextModel,
		FallbackTextModel: cfg.FallbackTextModel,
		MaxRetries:        cfg.MaxRetries,
		InitialRetryDelay: cfg.InitialRetryDelay,
	}, log)

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(store, log))

	sessionHandler := handlers.NewSessionHandler(eng, store, log)
	mux.Handle("/v1/session", sessionHandler)
	mux.Handle("/v1/session/", sessionHandler)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(mux),
		ReadTimeout: 15 * time.Second,
		// WriteTimeout intentionally unset: a turn can spend minutes in
		// generation and carries its own retry budget.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	if err := store.Close(); err != nil {
		log.Error("Error closing session store", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server exited")
}
