package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"trip-planner/handler"
	"trip-planner/internal/app"
	"trip-planner/internal/config"
	"trip-planner/internal/web"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	if cfg.Session.Backend == config.BackendMemory {
		slog.Error("SESSION_BACKEND must be dynamodb or redis on Lambda")
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	// ---- Clients ----
	svc, cleanup, err := app.Build(ctx, cfg)
	if err != nil {
		slog.Error("failed to build planner service", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	// ---- Handler ----
	webApp, err := web.NewApp(svc, slog.Default(), cfg.Session.TTL)
	if err != nil {
		slog.Error("failed to create web app", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(webApp)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
