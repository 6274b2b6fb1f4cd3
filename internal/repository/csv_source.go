package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"energy-dashboard/internal/models"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

// Consumption export columns
const (
	colDate      = "YYYYMMDD"
	colLocation  = "LOCATION"
	colRateClass = "RATECLASS_DESC"
	colChargers  = "# OF CHARGERS"
)

// Topology export columns. The upstream export misspells "Transformer".
const (
	colTopoLocation    = "LOCATION"
	colTopoTransformer = "TRANSFORMER ID"
	colTopoMisspelled  = "TRANSFOMER ID"
	colTopoRating      = "RATING (KVA)"
	colTopoFeeder      = "FEEDER ID"
)

func hourColumn(h int) string {
	return "R" + strconv.Itoa(h+1)
}

// csvTable is a header-indexed CSV reader
type csvTable struct {
	reader  *csv.Reader
	columns map[string]int
	line    int
}

func openCSVTable(r io.Reader) (*csvTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv file is empty")
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		columns[strings.ToUpper(strings.TrimSpace(h))] = i
	}

	return &csvTable{reader: reader, columns: columns, line: 1}, nil
}

func (t *csvTable) require(names ...string) error {
	for _, name := range names {
		if _, ok := t.columns[name]; !ok {
			return fmt.Errorf("missing required csv header: %s", name)
		}
	}
	return nil
}

func (t *csvTable) has(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// next returns the next row. A *csv.ParseError is returned for a malformed
// row that can be skipped; io.EOF ends the table.
func (t *csvTable) next() ([]string, error) {
	row, err := t.reader.Read()
	if err == nil || !errors.Is(err, io.EOF) {
		t.line++
	}
	return row, err
}

func (t *csvTable) field(row []string, name string) string {
	if idx, ok := t.columns[name]; ok && idx < len(row) {
		return row[idx]
	}
	return ""
}

// CSVConsumptionSource reads every *.csv monthly export in a directory
type CSVConsumptionSource struct {
	dir     string
	logger  *logging.ContextLogger
	metrics *metrics.Collector
}

// NewCSVConsumptionSource creates a consumption source over dir
func NewCSVConsumptionSource(dir string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *CSVConsumptionSource {
	return &CSVConsumptionSource{
		dir:     dir,
		logger:  logger.WithFields(logging.Fields{"component": "csv_consumption_source"}),
		metrics: metricsCollector,
	}
}

// LoadAll parses every export file. Files that cannot be read are logged and
// skipped; the load fails only when no file could be read.
func (s *CSVConsumptionSource) LoadAll(ctx context.Context) ([]models.EnergyRecord, error) {
	files, err := s.Files()
	if err != nil {
		return nil, &models.DataUnavailableError{Source: "consumption", Err: err}
	}
	if len(files) == 0 {
		return nil, &models.DataUnavailableError{
			Source: "consumption",
			Err:    fmt.Errorf("no csv files found in %s", s.dir),
		}
	}

	s.logger.Info(ctx, "[CSV_LOAD_START] Loading consumption exports", logging.Fields{
		"data_dir":   s.dir,
		"file_count": len(files),
	})

	var records []models.EnergyRecord
	failed := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fileRecords, _, err := s.LoadFile(ctx, path)
		if err != nil {
			failed++
			s.metrics.RecordIngestionError("file_error")
			s.logger.Error(ctx, "[CSV_FILE_ERROR] Failed to load consumption file", logging.Fields{
				"file_path": path,
			}, err)
			continue
		}

		records = append(records, fileRecords...)
		s.logger.Debug(ctx, "[CSV_FILE_LOADED] Consumption file loaded", logging.Fields{
			"file_path":    path,
			"record_count": len(fileRecords),
		})
	}

	if failed == len(files) {
		return nil, &models.DataUnavailableError{
			Source: "consumption",
			Err:    fmt.Errorf("none of %d csv files in %s could be read", len(files), s.dir),
		}
	}

	s.logger.Info(ctx, "[CSV_LOAD_COMPLETE] Consumption exports loaded", logging.Fields{
		"record_count": len(records),
		"failed_files": failed,
	})

	return records, nil
}

// GetByLocation loads every export and keeps one location's records.
// Wrap the source in a CachedConsumptionSource to avoid rereading files.
func (s *CSVConsumptionSource) GetByLocation(ctx context.Context, locationID string) ([]models.EnergyRecord, error) {
	all, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.EnergyRecord
	for i := range all {
		if all[i].LocationID == locationID {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Files lists the export files in the source directory, sorted by name
func (s *CSVConsumptionSource) Files() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// LoadFile parses one export file and reports how many rows were skipped
func (s *CSVConsumptionSource) LoadFile(ctx context.Context, path string) ([]models.EnergyRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return s.parse(ctx, f, filepath.Base(path))
}

func (s *CSVConsumptionSource) parse(ctx context.Context, r io.Reader, name string) ([]models.EnergyRecord, int, error) {
	table, err := openCSVTable(r)
	if err != nil {
		return nil, 0, err
	}

	required := []string{colDate, colLocation}
	for h := 0; h < models.HoursPerDay; h++ {
		required = append(required, hourColumn(h))
	}
	if err := table.require(required...); err != nil {
		return nil, 0, err
	}

	var records []models.EnergyRecord
	skipped := 0
	for {
		row, err := table.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, 0, fmt.Errorf("error reading file: %w", err)
			}
			skipped++
			skipRow(ctx, s.logger, s.metrics, name, table.line, "csv_error", err)
			continue
		}

		raw := models.RawEnergyRecord{
			Date:         table.field(row, colDate),
			Location:     table.field(row, colLocation),
			RateClass:    table.field(row, colRateClass),
			ChargerCount: table.field(row, colChargers),
		}
		for h := range raw.Hourly {
			raw.Hourly[h] = table.field(row, hourColumn(h))
		}

		rec, err := raw.ToRecord()
		if err != nil {
			skipped++
			skipRow(ctx, s.logger, s.metrics, name, table.line, "parse_error", err)
			continue
		}
		records = append(records, *rec)
	}

	return records, skipped, nil
}

// CSVTopologySource reads the transformer/location relationship export
type CSVTopologySource struct {
	path    string
	logger  *logging.ContextLogger
	metrics *metrics.Collector
}

// NewCSVTopologySource creates a topology source over the file at path
func NewCSVTopologySource(path string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *CSVTopologySource {
	return &CSVTopologySource{
		path:    path,
		logger:  logger.WithFields(logging.Fields{"component": "csv_topology_source"}),
		metrics: metricsCollector,
	}
}

// LoadTransformers returns one row per attachment in file order. Rows without a
// transformer id or with an unparsable rating are skipped.
func (s *CSVTopologySource) LoadTransformers(ctx context.Context) ([]models.TopologyRow, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, &models.DataUnavailableError{Source: "topology", Err: err}
	}
	defer f.Close()

	rows, err := s.parse(ctx, f, filepath.Base(s.path))
	if err != nil {
		return nil, &models.DataUnavailableError{Source: "topology", Err: err}
	}

	s.logger.Info(ctx, "[CSV_TOPOLOGY_LOADED] Topology export loaded", logging.Fields{
		"file_path": s.path,
		"row_count": len(rows),
	})
	return rows, nil
}

func (s *CSVTopologySource) parse(ctx context.Context, r io.Reader, name string) ([]models.TopologyRow, error) {
	table, err := openCSVTable(r)
	if err != nil {
		return nil, err
	}

	transformerCol := colTopoTransformer
	if !table.has(transformerCol) {
		transformerCol = colTopoMisspelled
	}
	if err := table.require(colTopoLocation, transformerCol, colTopoRating, colTopoFeeder); err != nil {
		return nil, err
	}

	var rows []models.TopologyRow
	for {
		row, err := table.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, fmt.Errorf("error reading file: %w", err)
			}
			skipRow(ctx, s.logger, s.metrics, name, table.line, "csv_error", err)
			continue
		}

		transformerID := strings.TrimSpace(table.field(row, transformerCol))
		if transformerID == "" {
			skipRow(ctx, s.logger, s.metrics, name, table.line, "topology_error", &models.ValidationError{
				Field:   "transformer_id",
				Message: "transformer id is empty",
			})
			continue
		}

		ratingStr := strings.TrimSpace(table.field(row, colTopoRating))
		rating, err := strconv.ParseFloat(ratingStr, 64)
		if err != nil || !models.Finite(rating) {
			skipRow(ctx, s.logger, s.metrics, name, table.line, "topology_error", &models.ValidationError{
				Field:   "rating_kva",
				Value:   ratingStr,
				Message: "invalid transformer rating",
			})
			continue
		}

		rows = append(rows, models.TopologyRow{
			TransformerID: transformerID,
			RatingKVA:     rating,
			FeederID:      strings.TrimSpace(table.field(row, colTopoFeeder)),
			LocationID:    strings.TrimSpace(table.field(row, colTopoLocation)),
		})
	}

	return rows, nil
}

func skipRow(ctx context.Context, logger *logging.ContextLogger, m *metrics.Collector, file string, line int, errorType string, err error) {
	m.RecordIngestionError(errorType)
	logger.WarnErr(ctx, "[CSV_ROW_SKIPPED] Skipping malformed row", logging.Fields{
		"file":       file,
		"line":       line,
		"error_type": errorType,
	}, err)
}
