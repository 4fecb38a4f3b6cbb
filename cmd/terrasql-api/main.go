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

	"github.com/terrasql/terrasql/internal/api"
	"github.com/terrasql/terrasql/internal/auth"
	catalogpostgres "github.com/terrasql/terrasql/internal/catalog/postgres"
	"github.com/terrasql/terrasql/internal/config"
	"github.com/terrasql/terrasql/internal/maintenance"
	"github.com/terrasql/terrasql/internal/observability"
	"github.com/terrasql/terrasql/internal/pending"
	querypostgres "github.com/terrasql/terrasql/internal/query/postgres"
	"github.com/terrasql/terrasql/internal/sqlgen"
	"github.com/terrasql/terrasql/internal/trainer"
)

func main() {
	cfg, err := config.LoadFromEnv("terrasql-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	db, err := catalogpostgres.Open(context.Background(), catalogpostgres.DBConfig{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open spatial database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	resolver := catalogpostgres.NewResolver(db)
	executor := querypostgres.NewExecutor(db)
	sessions := pending.NewStore(pending.WithTTL(cfg.Sessions.TTL))

	var trainerService trainer.Service
	if cfg.Trainer.Enabled {
		client, err := trainer.NewClient(trainer.ClientConfig{
			BaseURL: cfg.Trainer.BaseURL,
			Timeout: cfg.Trainer.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize trainer client", slog.Any("error", err))
			os.Exit(1)
		}
		trainerService = client
	}

	deps := api.Dependencies{
		Logger:          logger,
		Catalog:         resolver,
		Executor:        executor,
		Trainer:         trainerService,
		Sessions:        sessions,
		Generator:       &sqlgen.Generator{RowLimit: cfg.Query.DefaultRowLimit},
		DefaultRowLimit: cfg.Query.DefaultRowLimit,
		MaxRowLimit:     cfg.Query.MaxRowLimit,
		Readiness: api.CombineReadinessChecks(
			resolver.HealthCheck,
			api.CheckTrainerConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := &maintenance.Service{
		Store:  sessions,
		Config: maintenance.Config{SweepInterval: cfg.Sessions.SweepInterval},
		Logger: logger,
	}
	go func() {
		if err := sweeper.Run(ctx); err != nil {
			logger.Error("session sweeper failed", slog.Any("error", err))
		}
	}()

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
