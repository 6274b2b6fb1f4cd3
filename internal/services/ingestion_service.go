package services

import (
	"context"
	"fmt"
	"time"

	"energy-dashboard/internal/models"
	"energy-dashboard/internal/repository"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

// IngestionService moves CSV exports into a RecordWriter
type IngestionService struct {
	writer  repository.RecordWriter
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalFiles        int
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	TopologyRows      int
	Duration          time.Duration
	Errors            []string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(writer repository.RecordWriter, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		writer:  writer,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestDirectory ingests every consumption export in dataDir in batches of batchSize
func (s *IngestionService) IngestDirectory(ctx context.Context, dataDir string, batchSize int) (*IngestionResult, error) {
	if batchSize <= 0 {
		return nil, &models.ValidationError{
			Field:   "batch_size",
			Value:   fmt.Sprint(batchSize),
			Message: "batch size must be positive",
		}
	}

	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting consumption ingestion", logging.Fields{
		"data_dir":   dataDir,
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	source := repository.NewCSVConsumptionSource(dataDir, s.logger, s.metrics)
	files, err := source.Files()
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no csv files found in %s", dataDir)
	}

	result := &IngestionResult{
		TotalFiles: len(files),
		Errors:     make([]string, 0),
	}

	s.logger.Info(ctx, "[INGEST_FILES] Found export files", logging.Fields{
		"file_count": len(files),
		"stage":      "FILE_DISCOVERY",
	})

	for _, filePath := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		records, skipped, err := source.LoadFile(ctx, filePath)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to ingest %s: %v", filePath, err))
			s.logger.Error(ctx, "[INGEST_FILE_ERROR] File ingestion failed", logging.Fields{
				"file_path": filePath,
				"stage":     "FILE_PROCESSING",
			}, err)
			s.metrics.RecordIngestionError("file_error")
			continue
		}

		written, err := s.writeBatches(ctx, records, batchSize)
		result.TotalRecords += len(records) + skipped
		result.SuccessfulRecords += written
		result.FailedRecords += skipped + len(records) - written
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to store %s: %v", filePath, err))
			s.logger.Error(ctx, "[INGEST_WRITE_ERROR] Batch write failed", logging.Fields{
				"file_path": filePath,
				"written":   written,
				"stage":     "BATCH_WRITE",
			}, err)
			s.metrics.RecordIngestionError("write_error")
			continue
		}

		s.logger.Info(ctx, "[INGEST_FILE_SUCCESS] File ingested successfully", logging.Fields{
			"file_path":          filePath,
			"successful_records": written,
			"failed_records":     skipped,
			"stage":              "FILE_COMPLETE",
		})
	}

	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[INGEST_COMPLETE] Consumption ingestion completed", logging.Fields{
		"total_files":        result.TotalFiles,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
		"error_count":        len(result.Errors),
		"stage":              "COMPLETE",
	})

	return result, nil
}

// writeBatches stores records batchSize at a time and returns how many were written
func (s *IngestionService) writeBatches(ctx context.Context, records []models.EnergyRecord, batchSize int) (int, error) {
	written := 0
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.writer.CreateRecordsBatch(ctx, records[start:end]); err != nil {
			return written, fmt.Errorf("failed to insert batch: %w", err)
		}
		written += end - start
	}
	return written, nil
}

// IngestTopology replaces the stored topology with the rows of the export at path
func (s *IngestionService) IngestTopology(ctx context.Context, path string) (int, error) {
	source := repository.NewCSVTopologySource(path, s.logger, s.metrics)
	rows, err := source.LoadTransformers(ctx)
	if err != nil {
		return 0, err
	}

	if err := s.writer.ReplaceTopology(ctx, rows); err != nil {
		s.metrics.RecordIngestionError("write_error")
		return 0, fmt.Errorf("failed to store topology: %w", err)
	}

	s.logger.Info(ctx, "[INGEST_TOPOLOGY] Topology ingested", logging.Fields{
		"file_path": path,
		"row_count": len(rows),
	})
	return len(rows), nil
}
