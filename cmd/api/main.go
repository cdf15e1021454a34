package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/spendquest/internal/api"
	"github.com/dvloznov/spendquest/internal/api/handlers"
	"github.com/dvloznov/spendquest/internal/api/middleware"
	"github.com/dvloznov/spendquest/internal/config"
	"github.com/dvloznov/spendquest/internal/drafts"
	"github.com/dvloznov/spendquest/internal/export"
	infraBQ "github.com/dvloznov/spendquest/internal/infra/bigquery"
	"github.com/dvloznov/spendquest/internal/jobs"
	"github.com/dvloznov/spendquest/internal/jobs/inmemory"
	"github.com/dvloznov/spendquest/internal/ledgerapi"
	"github.com/dvloznov/spendquest/internal/logger"
	"github.com/dvloznov/spendquest/internal/metrics"
	"github.com/dvloznov/spendquest/internal/receipt"
)

func main() {
	// Parse command-line flags
	var (
		envFile = flag.String("env-file", ".env", "Optional dotenv file with configuration")
		port    = flag.String("port", "", "HTTP server port (overrides PORT)")
	)
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}

	// Initialize logger
	log := logger.NewWithLevel(logger.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := logger.WithContext(context.Background(), log)

	// Ledger source
	ledger, closeLedger, err := openLedger(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger source")
	}
	defer closeLedger()

	// Metrics
	collector := metrics.NewCollector("spendquest")
	registry, err := metrics.NewRegistry(collector)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}

	// Drafts and job infrastructure
	draftStore := drafts.NewStore()
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.JobBufferSize, cfg.JobWorkers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	var publisher jobs.Publisher
	if cfg.ExtractionEnabled() {
		generator, err := receipt.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, "")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
		extractor := receipt.NewExtractor(generator, cfg.GeminiModel)
		jobHandler := jobs.NewExtractReceiptHandler(draftStore, extractor, collector)
		jobQueue.SetDropHandler(jobs.NewDropHandler(draftStore))

		log.Info().Int("workers", cfg.JobWorkers).Str("model", cfg.GeminiModel).Msg("Starting extraction workers")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Fatal().Err(err).Msg("Failed to start job workers")
		}
		publisher = jobQueue
	} else {
		log.Warn().Msg("No GEMINI_API_KEY configured - receipt extraction will be disabled")
	}

	// Export sinks
	txOpts := []handlers.TransactionsOption{
		handlers.WithRecorder(collector),
		handlers.WithCSVOptions(export.Options{DateLayout: cfg.ExportDateLayout}),
	}
	if cfg.ExportBucket != "" {
		archiver, err := export.NewArchiver(ctx, cfg.ExportBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create export archiver")
		}
		defer archiver.Close()
		txOpts = append(txOpts, handlers.WithArchiver(archiver))
	} else {
		log.Warn().Msg("No EXPORT_BUCKET configured - export archiving will be disabled")
	}
	if cfg.NotionEnabled() {
		notion := export.NewNotionPublisher(export.NewNotionClient(cfg.NotionToken), cfg.NotionDBID)
		txOpts = append(txOpts, handlers.WithPublisher(notion))
	}

	// Initialize handlers
	router := api.NewRouter(api.Handlers{
		Dashboard:    handlers.NewDashboardHandler(ledger, cfg.TrajectoryWindow),
		Transactions: handlers.NewTransactionsHandler(ledger, cfg.PageSize, txOpts...),
		Drafts:       handlers.NewDraftsHandler(draftStore, ledger, publisher, collector),
		Jobs:         handlers.NewJobsHandler(jobStore, log),
		Metrics:      metrics.Handler(registry),
	})

	// Apply middleware
	handler := middleware.Chain(router,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
		middleware.Metrics(collector),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Str("ledger_backend", cfg.LedgerBackend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(logger.WithContext(context.Background(), log), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight extractions
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

// openLedger builds the configured ledger source and a function releasing it.
func openLedger(ctx context.Context, cfg *config.Config) (handlers.LedgerSource, func(), error) {
	switch cfg.LedgerBackend {
	case config.BackendBigQuery:
		repo, err := infraBQ.NewRepository(ctx, infraBQ.Config{
			ProjectID: cfg.BigQueryProject,
			DatasetID: cfg.BigQueryDataset,
			UserID:    cfg.LedgerUserID,
		})
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { closeWithLog(ctx, repo.Close) }, nil
	default:
		client := ledgerapi.New(ledgerapi.Config{
			BaseURL: cfg.LedgerAPIURL,
			Token:   cfg.LedgerAPIToken,
			UserID:  cfg.LedgerAPIUserID,
			Timeout: cfg.LedgerAPITimeout,
		})
		return client, func() {}, nil
	}
}

func closeWithLog(ctx context.Context, closeFn func() error) {
	if err := closeFn(); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to close ledger source")
	}
}
