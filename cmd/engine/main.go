package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jurni-app/trip-engine/internal/api"
	"github.com/jurni-app/trip-engine/internal/chat"
	"github.com/jurni-app/trip-engine/internal/config"
	"github.com/jurni-app/trip-engine/internal/flights"
	"github.com/jurni-app/trip-engine/internal/runtime/gemini"
	"github.com/jurni-app/trip-engine/internal/server"
	"github.com/jurni-app/trip-engine/internal/session"
	"github.com/jurni-app/trip-engine/internal/storage"
	"github.com/jurni-app/trip-engine/internal/storage/memory"
	"github.com/jurni-app/trip-engine/internal/storage/sqlite"
	"github.com/jurni-app/trip-engine/internal/telemetry"
	"github.com/jurni-app/trip-engine/internal/tokens"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer("trip-engine", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	store, err := openStore(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runtime, err := gemini.New(ctx, gemini.Config{
		APIKey:          cfg.Agent.APIKey,
		Model:           cfg.Agent.Model,
		AgentName:       cfg.Agent.Name,
		SystemPrompt:    cfg.Agent.SystemPrompt,
		MaxOutputTokens: int32(cfg.Agent.MaxOutputTokens),
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create agent runtime: %v", err)
	}

	registry := session.NewRegistry(runtime, cfg.Agent.AppName, logger)
	orchestrator := chat.New(registry, runtime, tokens.NewCounter(), logger)
	catalog := flights.LoadCatalog(cfg.Flights.CatalogPath, logger)

	srv := server.New(cfg.Server.Port, logger)
	handler := api.NewHandler(registry, orchestrator, store, catalog, logger)
	handler.Mount(srv.Router)

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}

	logger.Info("engine shutdown complete")
}

func openStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "sqlite":
		logger.Info("using sqlite storage", slog.String("path", cfg.Storage.SQLite.Path))
		return sqlite.New(cfg.Storage.SQLite.Path)
	default:
		logger.Info("using in-memory storage")
		return memory.New(), nil
	}
}
