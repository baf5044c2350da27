// Package main provides the entrypoint for the uvconsensus refresh worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/uvconsensus/uvconsensus/internal/api/middleware"
	"github.com/uvconsensus/uvconsensus/internal/app"
	"github.com/uvconsensus/uvconsensus/internal/config"
	"github.com/uvconsensus/uvconsensus/internal/telemetry"
	"github.com/uvconsensus/uvconsensus/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "uvconsensus-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting uvconsensus worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := middleware.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	components, err := app.Build(ctx, cfg, serviceName+"/"+Version, providerMetrics, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize uv service")
		os.Exit(1)
	}
	defer components.Close()

	refreshCfg := worker.DefaultRefreshConfig()
	if cfg.Worker.TargetsFile != "" {
		targets, loadErr := worker.LoadTargets(cfg.Worker.TargetsFile)
		if loadErr != nil {
			log.Error().Err(loadErr).Str("path", cfg.Worker.TargetsFile).Msg("failed to load refresh targets")
			os.Exit(1)
		}
		refreshCfg.Targets = targets
	}

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  refreshCfg,
		Service: components.Service,
		Logger:  log.With().Str("component", "refresh").Logger(),
	})
	log.Info().Int("points", refreshCfg.TotalPoints()).Msg("refresh job configured")

	scheduler := worker.NewScheduler(job, cfg.Worker.RefreshInterval, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Error().Err(err).Msg("failed to start refresh scheduler")
		os.Exit(1)
	}
	defer scheduler.Stop()

	if cfg.Worker.PubSubProjectID != "" && cfg.Worker.PubSubSubscription != "" {
		pubsubHandler, psErr := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Worker.PubSubProjectID,
			SubscriptionName: cfg.Worker.PubSubSubscription,
			Runner:           worker.NewJobRunner(job, log),
			Logger:           log.With().Str("component", "pubsub").Logger(),
		})
		if psErr != nil {
			log.Error().Err(psErr).Msg("failed to create pubsub handler")
			os.Exit(1)
		}
		defer func() {
			if closeErr := pubsubHandler.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if recvErr := pubsubHandler.Start(ctx); recvErr != nil && !errors.Is(recvErr, context.Canceled) {
				log.Error().Err(recvErr).Msg("pubsub receive stopped")
			}
		}()
	} else {
		log.Info().Msg("pubsub not configured, running on schedule only")
	}

	// Cloud Run needs an HTTP port even for workers.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // best-effort probe body
			"status":    "healthy",
			"version":   Version,
			"scheduler": scheduler.IsRunning(),
			"refresh":   job.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
