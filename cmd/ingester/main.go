package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"energy-dashboard/internal/config"
	"energy-dashboard/internal/repository"
	"energy-dashboard/internal/services"
	"energy-dashboard/pkg/database"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	dataDir := flag.String("data-dir", cfg.Data.ConsumptionDir, "Directory containing monthly consumption CSV exports")
	topologyFile := flag.String("topology-file", cfg.Data.TopologyFile, "Transformer/location CSV export; empty skips topology")
	batchSize := flag.Int("batch-size", 1000, "Number of records to write in each batch")
	flag.Parse()

	logger := logging.NewStructuredLogger("energy-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting energy data ingestion", logging.Fields{
		"version":       "1.0.0",
		"data_dir":      *dataDir,
		"topology_file": *topologyFile,
		"batch_size":    *batchSize,
	})

	metricsCollector := metrics.NewCollector("energy_ingester", nil)

	db, err := database.NewPostgresDB(cfg.Database.ToDatabaseConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	repo := repository.NewEnergyRepository(db, logger, metricsCollector)
	ingestionService := services.NewIngestionService(repo, logger, metricsCollector)

	result, err := ingestionService.IngestDirectory(ctx, *dataDir, *batchSize)
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
			"data_dir": *dataDir,
		}, err)
	}

	if *topologyFile != "" {
		rows, err := ingestionService.IngestTopology(ctx, *topologyFile)
		if err != nil {
			logger.Error(ctx, "[TOPOLOGY_ERROR] Topology ingestion failed", logging.Fields{
				"topology_file": *topologyFile,
			}, err)
			result.Errors = append(result.Errors, fmt.Sprintf("failed to ingest topology %s: %v", *topologyFile, err))
		}
		result.TopologyRows = rows
	}

	printResult(os.Stdout, result)

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"topology_rows":      result.TopologyRows,
		"duration_seconds":   result.Duration.Seconds(),
	})
}

// maxListedErrors caps the error list in the printed summary
const maxListedErrors = 10

func printResult(w io.Writer, result *services.IngestionResult) {
	rule := strings.Repeat("=", 80)
	fmt.Fprintf(w, "%s\nINGESTION COMPLETE\n%s\n", rule, rule)

	rows := []struct {
		label string
		value interface{}
	}{
		{"Files", result.TotalFiles},
		{"Records read", result.TotalRecords},
		{"Records stored", result.SuccessfulRecords},
		{"Records failed", result.FailedRecords},
		{"Topology rows", result.TopologyRows},
		{"Duration", result.Duration},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%-16s %v\n", row.label+":", row.value)
	}
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Fprintf(w, "%-16s %.2f\n", "Records/second:", float64(result.SuccessfulRecords)/secs)
	}

	if len(result.Errors) == 0 {
		return
	}
	fmt.Fprintf(w, "\nErrors (%d):\n", len(result.Errors))
	for i, msg := range result.Errors {
		if i == maxListedErrors {
			fmt.Fprintf(w, "  ... and %d more\n", len(result.Errors)-maxListedErrors)
			break
		}
		fmt.Fprintf(w, "  - %s\n", msg)
	}
}
