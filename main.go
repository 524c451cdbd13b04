package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"sjsage522/estateworker/config"
	"sjsage522/estateworker/internal"
	"sjsage522/estateworker/internal/crawler"
	"sjsage522/estateworker/internal/dispatcher"
	"sjsage522/estateworker/internal/normalize"
	"sjsage522/estateworker/internal/pipeline"
	"sjsage522/estateworker/logger"
	apperrors "sjsage522/estateworker/pkg/errors"
	"sjsage522/estateworker/pkg/retry"
	"sjsage522/estateworker/services/assets"
	"sjsage522/estateworker/services/health"
	"sjsage522/estateworker/services/store"
	"sjsage522/estateworker/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	cfg := config.LoadConfig()
	flag.StringVar(&cfg.Mode, "mode", cfg.Mode, "worker consumes listing URLs, dispatch publishes them")
	flag.Parse()

	// Initialize logger first
	var fluent io.Writer
	if cfg.FluentHost != "" {
		fw, err := logger.NewFluentWriter(cfg.FluentHost, cfg.FluentPort, cfg.FluentTag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fluent forwarding disabled: %v\n", err)
		} else {
			defer fw.Close()
			fluent = fw
		}
	}
	logCloser, err := logger.Init(logger.Options{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		File:        cfg.LogFile,
		Fluent:      fluent,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	log := logger.Default

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("mode", cfg.Mode).
		Str("queue", cfg.QueueBackend).
		Str("fetcher", cfg.PageFetcher).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	deps, err := internal.NewDependencies(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize services")
		return
	}
	defer deps.Close()
	log.Info().Interface("proxy_stats", deps.Proxy.Stats()).Msg("Proxy stats")

	srv := health.NewServer(cfg.HealthAddr, deps.Metrics.Handler(), log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("Health server failed")
		}
	}()
	defer func() {
		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		srv.Stop(stopCtx)
	}()

	var vocabulary *normalize.Vocabulary
	if cfg.AmenityReport {
		vocabulary = normalize.NewVocabulary()
	}

	done := make(chan error, 1)
	go func() {
		if cfg.Mode == "dispatch" {
			done <- runDispatcher(ctx, cfg, deps, log)
			return
		}
		done <- runWorker(ctx, cfg, deps, vocabulary, log)
	}()

	// Wait for shutdown signal or run completion
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("Exited with error")
		} else {
			log.Info().Msg("Finished normally")
		}
	}

	if vocabulary != nil {
		if err := writeAmenityReport(cfg.OutputDir, vocabulary); err != nil {
			log.Error().Err(err).Msg("Failed to write amenity report")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
}

func navigationRetry(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.NavigationAttempts,
		Backoff:     retry.Fixed(cfg.NavigationBackoff),
		Retryable:   apperrors.IsRetryable,
	}
}

func runDispatcher(ctx context.Context, cfg *config.Config, deps *internal.Dependencies, log *logger.Logger) error {
	d := dispatcher.NewDispatcher(deps.Browser, deps.Queue, deps.Cache, deps.Metrics, crawler.DefaultSelectors(), dispatcher.Options{
		SearchURL:   cfg.SearchURL,
		MaxPages:    cfg.MaxPages,
		WaitTimeout: cfg.SelectorTimeout,
		DelayMin:    cfg.PageDelayMin,
		DelayMax:    cfg.PageDelayMax,
		Retry:       navigationRetry(cfg),
		SeenTTL:     cfg.SeenURLTTL,
	}, log)
	_, err := d.Run(ctx)
	return err
}

func runWorker(ctx context.Context, cfg *config.Config, deps *internal.Dependencies, vocabulary *normalize.Vocabulary, log *logger.Logger) error {
	policy, err := store.ParsePolicy(cfg.OnDuplicate)
	if err != nil {
		return err
	}

	transferer := assets.NewTransferer(
		deps.Blob,
		deps.Images,
		assets.NewSampler(cfg.ImageSampleMin, cfg.ImageSampleMax),
		deps.Metrics,
		log,
	)
	p := pipeline.New(deps.Browser, crawler.NewExtractorFromConfig(cfg, log), transferer, deps.Sink, vocabulary, pipeline.Options{
		Selectors:      crawler.DefaultSelectors(),
		Policy:         policy,
		Retry:          navigationRetry(cfg),
		ContentTimeout: cfg.SelectorTimeout,
		DelayMin:       cfg.PageDelayMin,
		DelayMax:       cfg.PageDelayMax,
		BrowserImages:  cfg.ImageFetch == config.ImageFetchBrowser,
	}, log)

	w := worker.NewWorker(deps.Queue, p, deps.Metrics, worker.Options{
		MaxEmptyReceives: cfg.MaxEmptyReceives,
		EmptyBackoff:     cfg.EmptyBackoff,
		ErrorBackoff:     cfg.ErrorBackoff,
		Retry:            retry.Default(),
	}, log)
	return w.Start(ctx)
}

func writeAmenityReport(dir string, vocabulary *normalize.Vocabulary) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(vocabulary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "amenities.json"), data, 0o644)
}
