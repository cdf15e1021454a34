package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/spendquest/internal/analytics"
	"github.com/dvloznov/spendquest/internal/config"
	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/dvloznov/spendquest/internal/export"
	infraBQ "github.com/dvloznov/spendquest/internal/infra/bigquery"
	"github.com/dvloznov/spendquest/internal/ledgerapi"
	"github.com/dvloznov/spendquest/internal/logger"
	"github.com/dvloznov/spendquest/internal/query"
	"github.com/dvloznov/spendquest/internal/receipt"
	"github.com/rs/zerolog"
)

// ledgerSource is the part of a ledger backend the CLI reads.
type ledgerSource interface {
	Snapshot(ctx context.Context) (domain.Snapshot, error)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := config.Load()
	log := logger.NewWithLevel(logger.ParseLevel(cfg.LogLevel))

	switch os.Args[1] {
	case "dashboard":
		runDashboard(log, cfg)
	case "transactions":
		runTransactions(log, cfg)
	case "export":
		runExport(log, cfg)
	case "extract":
		runExtract(log, cfg)
	case "publish":
		runPublish(log, cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Spendquest CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  dashboard     Show balance, balance trajectory and this month's summary")
	fmt.Println("  transactions  List transactions with search, category and paging")
	fmt.Println("  export        Write the filtered transactions to a CSV file")
	fmt.Println("  extract       Read a draft transaction from a receipt image")
	fmt.Println("  publish       Publish the filtered transactions to Notion")
	fmt.Println("  help          Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runDashboard(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("dashboard", flag.ExitOnError)
	window := fs.Int("window", cfg.TrajectoryWindow, "Number of recent transactions in the trajectory")
	fs.Parse(os.Args[2:])

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	snap := loadSnapshot(ctx, log, cfg)
	now := time.Now()

	txWindow := analytics.Window(snap.Transactions, *window)
	points := analytics.Reconstruct(snap.Balance, txWindow)
	month := analytics.AggregateMonth(snap.Transactions, now)

	fmt.Printf("\n=== Balance: %s ===\n", snap.Balance.StringFixed(2))
	if !analytics.IsChronological(txWindow) {
		fmt.Println("(trajectory is approximate: transactions are not date ordered)")
	}
	fmt.Printf("\n=== Trajectory (%d points) ===\n", len(points))
	for _, p := range points {
		fmt.Printf("%3d  %12s  %s\n", p.Sequence, p.Balance.StringFixed(2), p.Label)
	}

	fmt.Printf("\n=== %s ===\n", now.Format("January 2006"))
	fmt.Printf("Income:       %s\n", month.Income.StringFixed(2))
	fmt.Printf("Expense:      %s\n", month.Expense.StringFixed(2))
	fmt.Printf("Savings rate: %d%%\n", month.SavingsRate)
	fmt.Println()
}

func runTransactions(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("transactions", flag.ExitOnError)
	search := fs.String("search", "", "Case-insensitive text to search in description and counterparty")
	category := fs.String("category", "", "Exact category to keep")
	page := fs.Int("page", 1, "Page number")
	pageSize := fs.Int("page-size", cfg.PageSize, "Transactions per page")
	fs.Parse(os.Args[2:])

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	snap := loadSnapshot(ctx, log, cfg)
	result := query.Run(snap.Transactions, *search, *category, *page, *pageSize)

	fmt.Printf("\n=== Transactions (page %d of %d, %d matching) ===\n", result.Page, result.TotalPages, result.TotalCount)
	for _, tx := range result.Items {
		label := tx.Category
		if label == "" {
			label = "-"
		}
		fmt.Printf("%s  %-6s  %10s  %-14s  %s\n",
			tx.Date.Local().Format("2006-01-02 15:04"),
			tx.Direction.Label(),
			tx.Amount.StringFixed(2),
			label,
			tx.Description,
		)
	}
	fmt.Println()
}

func runExport(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	search := fs.String("search", "", "Case-insensitive text to search in description and counterparty")
	category := fs.String("category", "", "Exact category to keep")
	out := fs.String("out", "", "Output file (defaults to transactions_YYYY-MM-DD.csv)")
	archive := fs.Bool("archive", false, "Also upload the file to EXPORT_BUCKET")
	fetch := fs.String("fetch", "", "Download a previously archived export (gs://bucket/object) instead of exporting")
	fs.Parse(os.Args[2:])

	ctx, cancel := commandContext(log, 5*time.Minute)
	defer cancel()

	if *fetch != "" {
		bucket, _, err := export.ParseURI(*fetch)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid archive URI")
		}
		archiver, err := export.NewArchiver(ctx, bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create archiver")
		}
		defer archiver.Close()

		path, err := fetchExport(ctx, archiver, *fetch, *out)
		if err != nil {
			log.Fatal().Err(err).Msg("Fetch failed")
		}
		fmt.Printf("Fetched %s to %s\n", *fetch, path)
		return
	}

	snap := loadSnapshot(ctx, log, cfg)
	now := time.Now()
	filtered := query.Apply(snap.Transactions, query.Filter{Search: *search, Category: *category})

	doc, err := export.CSV(filtered, now, export.Options{DateLayout: cfg.ExportDateLayout})
	if errors.Is(err, export.ErrNothingToExport) {
		fmt.Println("No transactions to export.")
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	path := *out
	if path == "" {
		path = doc.Filename
	}
	if err := os.WriteFile(path, doc.Content, 0o644); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to write export")
	}
	fmt.Printf("Exported %d transactions to %s\n", len(filtered), path)

	if *archive {
		archiver, err := export.NewArchiver(ctx, cfg.ExportBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create archiver")
		}
		defer archiver.Close()

		uri, err := archiver.Archive(ctx, doc, now)
		if err != nil {
			log.Fatal().Err(err).Msg("Archive failed")
		}
		fmt.Printf("Archived to %s\n", uri)
	}
}

func runExtract(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to the receipt image")
	mimeType := fs.String("mime", "", "Media type of the image (detected when empty)")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Usage: cli extract -file PATH [-mime TYPE]")
	}
	if !cfg.ExtractionEnabled() {
		log.Fatal().Msg("GEMINI_API_KEY is required for extraction")
	}

	image, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read image")
	}
	if *mimeType == "" {
		*mimeType = detectMIMEType(*filePath, image)
	}

	ctx, cancel := commandContext(log, 2*time.Minute)
	defer cancel()

	generator, err := receipt.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, "")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	draft, err := receipt.NewExtractor(generator, cfg.GeminiModel).Extract(ctx, image, *mimeType)
	if errors.Is(err, receipt.ErrInvalidImage) {
		log.Fatal().Err(err).Str("mime_type", *mimeType).Msg("Image rejected")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Could not read the receipt, enter the transaction manually")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(draft); err != nil {
		log.Fatal().Err(err).Msg("Failed to print draft")
	}
}

func runPublish(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	search := fs.String("search", "", "Case-insensitive text to search in description and counterparty")
	category := fs.String("category", "", "Exact category to keep")
	dryRun := fs.Bool("dry-run", false, "Report what would be published without writing")
	fs.Parse(os.Args[2:])

	if !cfg.NotionEnabled() {
		log.Fatal().Msg("NOTION_TOKEN and NOTION_DB_ID are required for publishing")
	}

	ctx, cancel := commandContext(log, 10*time.Minute)
	defer cancel()

	snap := loadSnapshot(ctx, log, cfg)
	filtered := query.Apply(snap.Transactions, query.Filter{Search: *search, Category: *category})

	publisher := export.NewNotionPublisher(export.NewNotionClient(cfg.NotionToken), cfg.NotionDBID)
	result, err := publisher.Publish(ctx, filtered, *dryRun)
	if errors.Is(err, export.ErrNothingToExport) {
		fmt.Println("No transactions to publish.")
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Publish failed")
	}

	fmt.Println("\n=== Publish Summary ===")
	fmt.Printf("Created: %d\n", result.Created)
	fmt.Printf("Skipped: %d\n", result.Skipped)
	fmt.Printf("Failed:  %d\n", result.Failed)
	if result.DryRun {
		fmt.Println("(dry run, nothing was written)")
	}
}

func commandContext(log zerolog.Logger, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return logger.WithContext(ctx, log), cancel
}

func loadSnapshot(ctx context.Context, log zerolog.Logger, cfg *config.Config) domain.Snapshot {
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	var source ledgerSource
	switch cfg.LedgerBackend {
	case config.BackendBigQuery:
		repo, err := infraBQ.NewRepository(ctx, infraBQ.Config{
			ProjectID: cfg.BigQueryProject,
			DatasetID: cfg.BigQueryDataset,
			UserID:    cfg.LedgerUserID,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer repo.Close()
		source = repo
	default:
		source = ledgerapi.New(ledgerapi.Config{
			BaseURL: cfg.LedgerAPIURL,
			Token:   cfg.LedgerAPIToken,
			UserID:  cfg.LedgerAPIUserID,
			Timeout: cfg.LedgerAPITimeout,
		})
	}

	snap, err := source.Snapshot(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load ledger")
	}
	return snap
}

type archiveFetcher interface {
	Fetch(ctx context.Context, uri string) (export.Document, error)
}

// fetchExport downloads an archived export and writes it to out, or to the
// archived file name in the working directory when out is empty.
func fetchExport(ctx context.Context, fetcher archiveFetcher, uri, out string) (string, error) {
	doc, err := fetcher.Fetch(ctx, uri)
	if err != nil {
		return "", err
	}
	path := out
	if path == "" {
		path = doc.Filename
	}
	if err := os.WriteFile(path, doc.Content, 0o644); err != nil {
		return "", fmt.Errorf("fetchExport: write %s: %w", path, err)
	}
	return path, nil
}

// detectMIMEType guesses from the extension first, then from the content.
func detectMIMEType(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return http.DetectContentType(data)
}
