// Axion - policy-gated desktop assistant server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/axionhq/axion/internal/api"
	"github.com/axionhq/axion/internal/config"
	"github.com/axionhq/axion/internal/gate"
	"github.com/axionhq/axion/internal/llm"
	"github.com/axionhq/axion/internal/middleware"
	"github.com/axionhq/axion/internal/notify"
	"github.com/axionhq/axion/internal/parser"
	"github.com/axionhq/axion/internal/sandbox"
	"github.com/axionhq/axion/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server",
		"port", cfg.Port,
		"storage", cfg.StorageMode,
		"parser_mode", cfg.Parser.Mode,
		"dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := newRepository(cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Storage health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Storage ready")

	// Make sure the default sandbox root exists before the first request.
	if _, err := sandbox.New(cfg.SandboxRoot); err != nil {
		slog.Error("Failed to prepare sandbox root", "error", err, "root", cfg.SandboxRoot)
		os.Exit(1)
	}

	// Optional fallback interpreter.
	var fallback parser.Fallback
	if cfg.LLM.Enabled() {
		fallback = llm.NewClient(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
		slog.Info("Fallback interpreter enabled", "base_url", cfg.LLM.BaseURL)
	} else if cfg.Parser.Mode != "rules" {
		slog.Info("Fallback interpreter not configured, parser will degrade to rules",
			"parser_mode", cfg.Parser.Mode)
	}

	p := parser.New(parser.Config{
		Mode:           parser.Mode(cfg.Parser.Mode),
		ConfidenceLow:  cfg.Parser.ConfidenceLow,
		ConfidenceHigh: cfg.Parser.ConfidenceHigh,
	}, fallback)

	hub := notify.NewHub()

	executors := func(root string) (gate.Executor, error) {
		var opts []sandbox.Option
		if cfg.SandboxAllowOutside {
			opts = append(opts, sandbox.AllowOutsideRoot())
		}
		return sandbox.New(root, opts...)
	}

	g := gate.New(repo, p, hub, executors, gate.Config{
		DefaultRoot:       cfg.SandboxRoot,
		MaxSessionMinutes: cfg.MaxSessionMinutes,
	})

	// Initialize handlers.
	assistantHandler := api.NewAssistantHandler(g, repo, cfg)
	wsHandler := notify.NewWebSocketHandler(hub, cfg.CORSOrigins, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	assistantHandler.RegisterRoutes(r)

	// WebSocket endpoint for per-session notifications.
	r.Get("/api/ws/{session_id}", wsHandler.ServeHTTP)

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket subscribers stay open indefinitely
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start expired-session sweeper.
	gate.StartSessionSweeper(ctx, repo)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func newRepository(cfg *config.Config) (store.Repository, error) {
	if cfg.StorageMode == "memory" {
		return store.NewMemory(), nil
	}
	return store.NewSQLite(cfg.DBPath)
}
