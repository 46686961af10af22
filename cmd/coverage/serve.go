package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/pivot-coverage-service/internal/adapter/api"
	"github.com/couchcryptid/pivot-coverage-service/internal/adapter/cloudrf"
	httpadapter "github.com/couchcryptid/pivot-coverage-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/pivot-coverage-service/internal/adapter/kafka"
	"github.com/couchcryptid/pivot-coverage-service/internal/adapter/opentopo"
	"github.com/couchcryptid/pivot-coverage-service/internal/config"
	"github.com/couchcryptid/pivot-coverage-service/internal/observability"
	"github.com/couchcryptid/pivot-coverage-service/internal/store"
	"github.com/couchcryptid/pivot-coverage-service/internal/study"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				slog.Error("failed to load config", "error", err)
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	templates, err := config.NewTemplateRegistry(config.DefaultTemplates)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	st, err := store.New(cfg.DataDir, logger)
	if err != nil {
		return err
	}

	if cfg.CloudRFKey == "" {
		logger.Warn("CLOUDRF_API_KEY is not set, simulations will be rejected upstream")
	}
	propagator := cloudrf.NewClient(cfg.CloudRFKey, cfg.CloudRFURL, cfg.CloudRFTimeout, cfg.RasterDownloadTimeout, logger)
	elevations := opentopo.NewCachedProvider(
		opentopo.NewClient(cfg.ElevationURL, cfg.ElevationTimeout, metrics, logger),
		cfg.ElevationCacheTTL, metrics,
	)

	// Report publishing is feature-flagged via KAFKA_ENABLED.
	var publisher study.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		metrics.ReportPublishingEnabled.Set(1)
		logger.Info("coverage report publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("coverage report publishing disabled")
	}

	svc := study.New(study.Deps{
		Store:      st,
		Templates:  templates,
		Propagator: propagator,
		Elevations: elevations,
		Publisher:  publisher,
		Metrics:    metrics,
		Logger:     logger,
	}, study.OptionsFromConfig(cfg))

	handler := api.New(svc, cfg.UploadMaxBytes, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, handler, logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server error", "error", err)
			return err
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}
