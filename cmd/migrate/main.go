package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/spendquest/internal/config"
	infraBQ "github.com/dvloznov/spendquest/internal/infra/bigquery"
	"github.com/dvloznov/spendquest/internal/logger"
)

func main() {
	var (
		envFile   = flag.String("env-file", ".env", "Optional dotenv file with configuration")
		projectID = flag.String("project", "", "GCP project ID (defaults to BIGQUERY_PROJECT)")
		datasetID = flag.String("dataset", "", "BigQuery dataset ID (defaults to BIGQUERY_DATASET)")
		appliedBy = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		dryRun    = flag.Bool("dry-run", false, "List pending migrations without applying them")
	)
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := config.Load()
	if *projectID == "" {
		*projectID = cfg.BigQueryProject
	}
	if *datasetID == "" {
		*datasetID = cfg.BigQueryDataset
	}

	log := logger.NewWithLevel(logger.ParseLevel(cfg.LogLevel))

	if *projectID == "" {
		log.Fatal().Msg("A project is required: set -project or BIGQUERY_PROJECT")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	migrations, err := infraBQ.LoadMigrations(*projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Int("migrations", len(migrations)).Msg("Connected to BigQuery")

	migrator := infraBQ.NewMigrator(client, *projectID, *datasetID, *appliedBy)

	applied, err := migrator.Applied(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}

	checksums := make(map[int]string, len(applied))
	for _, am := range applied {
		checksums[am.Version] = am.Checksum
	}
	for _, m := range migrations {
		if sum, ok := checksums[m.Version]; ok && sum != "" && sum != m.Checksum {
			log.Warn().Str("migration", m.Filename).Msg("Applied migration has changed since it ran")
		}
	}

	pending := infraBQ.Pending(migrations, applied)
	if len(pending) == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
		return
	}

	for _, m := range pending {
		if *dryRun {
			fmt.Printf("  [PENDING] %04d_%s\n", m.Version, m.Name)
			continue
		}

		log.Info().Str("migration", m.Filename).Msg("Applying migration")
		if err := migrator.Apply(ctx, m); err != nil {
			log.Fatal().Err(err).Str("migration", m.Filename).Msg("Migration failed")
		}
	}

	if !*dryRun {
		log.Info().Int("applied", len(pending)).Msg("Migrations applied")
	}
}
