package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oceanlab/argonaut/internal/app"
	"github.com/oceanlab/argonaut/internal/config"
	"github.com/oceanlab/argonaut/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.nc> [file.nc ...]",
	Short: "Load ARGO NetCDF profile files into the database",
	Long: `Ingest reads ARGO instrument NetCDF files (core or BGC) and loads
their profiles and measurements into PostgreSQL. Profiles already present
(same float, date and time) are skipped; a bad profile is logged and skipped
without aborting the file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runIngest(args)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(paths []string) error {
	logger := newLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	ing := a.NewIngestor()

	var total ingest.Stats
	for _, path := range paths {
		stats, err := ing.IngestFile(ctx, path)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		total.Profiles += stats.Profiles
		total.Inserted += stats.Inserted
		total.Skipped += stats.Skipped
		total.Failed += stats.Failed
		total.Measurements += stats.Measurements
	}

	fmt.Printf("Ingested %d of %d profiles (%d duplicates skipped, %d failed), %d measurements.\n",
		total.Inserted, total.Profiles, total.Skipped, total.Failed, total.Measurements)
	return nil
}
