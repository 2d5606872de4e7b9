package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/certvine/certflow/adapter"
	"github.com/certvine/certflow/api"
	"github.com/certvine/certflow/gap"
	"github.com/certvine/certflow/instance"
	"github.com/certvine/certflow/observability"
	"github.com/certvine/certflow/orchestrator"
	"github.com/certvine/certflow/store/memory"
	"github.com/certvine/certflow/store/postgres"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *Config) error {
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	store, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	client := &http.Client{Timeout: 30 * time.Second}

	var generator adapter.AssessmentGenerator = adapter.NewHTTPAssessmentGenerator(cfg.Services.Quiz.URL, client)
	if cfg.Services.Quiz.RatePerMinute > 0 {
		generator = adapter.NewRateLimitedGenerator(generator,
			rate.Limit(float64(cfg.Services.Quiz.RatePerMinute)/60.0),
			1,
		)
	}
	forms := adapter.NewHTTPFormService(cfg.Services.Forms.URL, client)

	registry := orchestrator.NewStandardRegistry(orchestrator.Adapters{
		Generator:  generator,
		Forms:      forms,
		Taxonomies: adapter.NewHTTPTaxonomyProvider(cfg.Services.Taxonomy.URL, client),
		Slides:     adapter.NewHTTPContentGenerator("slides", cfg.Services.Content.URL, client),
		Video:      adapter.NewHTTPContentGenerator("video", cfg.Services.Content.URL, client),
	}, gap.DefaultConfig())

	orch := orchestrator.New(store, registry, forms, observability.NewLogEmitter(logger), logger)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.New(orch, logger).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", cfg.Server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server: %w", err)
		}
	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
			if closeErr := server.Close(); closeErr != nil {
				return fmt.Errorf("server close: %w", closeErr)
			}
		}
		logger.Info("server stopped")
	}

	return nil
}

// openStore selects the instance store from config: postgres when a
// database URL is set, in-memory otherwise.
func openStore(ctx context.Context, cfg *Config, logger *slog.Logger) (instance.Store, func(), error) {
	if cfg.DB.URL == "" {
		logger.Warn("no database configured, using in-memory store")
		return memory.New(), func() {}, nil
	}

	pg, err := postgres.New(ctx, cfg.DB.URL, postgres.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres store: %w", err)
	}
	if err := pg.Ping(ctx); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info("postgres store connected")
	return pg, func() { pg.Close() }, nil
}
