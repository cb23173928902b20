package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/common"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/document"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/export"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/inference"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/parse"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/pipeline"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/prompt"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/repository"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, repository.Config{
		DSN:         cfg.Database.DSN,
		DialTimeout: cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("ensuring schema", "error", err)
		os.Exit(1)
	}

	results := repository.NewResultRepository(store, logger)
	templates := repository.NewTemplateRepository(store, logger)
	if err := templates.SeedDefaults(ctx); err != nil {
		logger.Error("seeding templates", "error", err)
		os.Exit(1)
	}

	proc := pipeline.NewProcessor(
		document.NewLoader(document.Config{MaxFileBytes: cfg.Pipeline.MaxFileBytes}, logger),
		prompt.NewBuilder(cfg.Pipeline.MaxPromptChars),
		inference.NewClient(inference.Config{
			APIKey:            cfg.LLM.APIKey,
			BaseURL:           cfg.LLM.BaseURL,
			MaxAttempts:       cfg.LLM.MaxAttempts,
			AttemptTimeout:    cfg.LLM.AttemptTimeout,
			BackoffBase:       cfg.LLM.BackoffBase,
			BackoffCap:        cfg.LLM.BackoffCap,
			MaxInFlight:       cfg.LLM.MaxInFlight,
			RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		}, logger),
		parse.NewValidator(logger),
		logger,
	)

	handler := server.NewHandler(proc, results, templates, export.NewService(results, logger), store, cfg.Pipeline.MaxFileBytes, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	handler.Attach(r)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: r,
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("stopped")
}
