// Trip planner HTTP server.
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

	"github.com/joho/godotenv"

	"trip-planner/internal/app"
	"trip-planner/internal/config"
	"trip-planner/internal/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server",
		"port", cfg.Port,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"session_backend", cfg.Session.Backend,
	)
	if cfg.LLM.APIKey == "" && cfg.LLM.ParamPrefix == "" {
		slog.Warn("No LLM_API_KEY or PARAM_PREFIX set; itinerary requests will fail with CREDENTIALS_ERROR")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := app.Build(ctx, cfg)
	if err != nil {
		slog.Error("Failed to build planner service", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	webApp, err := web.NewApp(svc, logger, cfg.Session.TTL)
	if err != nil {
		slog.Error("Failed to create web app", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           web.NewRouter(webApp, cfg.LLM.Timeout+10*time.Second),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.LLM.Timeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		cleanup()
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
