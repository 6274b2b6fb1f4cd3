package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-dashboard/internal/models"
)

type recordingWriter struct {
	batches   [][]models.EnergyRecord
	topology  []models.TopologyRow
	failAfter int
}

func (w *recordingWriter) CreateRecordsBatch(ctx context.Context, records []models.EnergyRecord) error {
	if w.failAfter > 0 && len(w.batches) >= w.failAfter {
		return errors.New("connection reset")
	}
	w.batches = append(w.batches, append([]models.EnergyRecord(nil), records...))
	return nil
}

func (w *recordingWriter) ReplaceTopology(ctx context.Context, rows []models.TopologyRow) error {
	w.topology = rows
	return nil
}

func exportLines(rows ...string) string {
	cols := []string{"YYYYMMDD", "LOCATION", "RATECLASS_DESC", "# OF CHARGERS"}
	for h := 1; h <= models.HoursPerDay; h++ {
		cols = append(cols, "R"+strconv.Itoa(h))
	}
	return strings.Join(append([]string{strings.Join(cols, ",")}, rows...), "\n") + "\n"
}

func exportRow(date, location string) string {
	cols := []string{date, location, "Residential", "N/A"}
	for h := 0; h < models.HoursPerDay; h++ {
		cols = append(cols, "1.5")
	}
	return strings.Join(cols, ",")
}

func writeExports(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"2024-01.csv": exportLines(
			exportRow("20240101", "LOC-A"),
			exportRow("20240102", "LOC-A"),
			exportRow("20240101", "LOC-B"),
			exportRow("2024-01-03", "LOC-B"),
		),
		"2024-02.csv": "FOO,BAR\n1,2\n",
		"notes.txt":   "ignored",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestIngestionService_IngestDirectory(t *testing.T) {
	logger, m := newTestDeps()
	writer := &recordingWriter{}
	svc := NewIngestionService(writer, logger, m)

	result, err := svc.IngestDirectory(context.Background(), writeExports(t), 2)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalFiles)
	assert.Equal(t, 4, result.TotalRecords)
	assert.Equal(t, 3, result.SuccessfulRecords)
	assert.Equal(t, 1, result.FailedRecords)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "2024-02.csv")

	require.Len(t, writer.batches, 2)
	assert.Len(t, writer.batches[0], 2)
	assert.Len(t, writer.batches[1], 1)
	assert.Equal(t, 1.5, writer.batches[0][0].Hourly[23])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestionErrorsTotal.WithLabelValues("parse_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestionErrorsTotal.WithLabelValues("file_error")))
}

func TestIngestionService_WriteFailure(t *testing.T) {
	logger, m := newTestDeps()
	writer := &recordingWriter{failAfter: 1}
	svc := NewIngestionService(writer, logger, m)

	result, err := svc.IngestDirectory(context.Background(), writeExports(t), 2)
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessfulRecords)
	assert.Equal(t, 2, result.FailedRecords)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestionErrorsTotal.WithLabelValues("write_error")))
}

func TestIngestionService_InvalidInput(t *testing.T) {
	logger, m := newTestDeps()
	svc := NewIngestionService(&recordingWriter{}, logger, m)

	_, err := svc.IngestDirectory(context.Background(), t.TempDir(), 0)
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "batch_size", vErr.Field)

	_, err = svc.IngestDirectory(context.Background(), t.TempDir(), 10)
	assert.Error(t, err)
}

func TestIngestionService_IngestTopology(t *testing.T) {
	logger, m := newTestDeps()
	writer := &recordingWriter{}
	svc := NewIngestionService(writer, logger, m)

	path := filepath.Join(t.TempDir(), "topology.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"Location,Transfomer ID,Rating (kVA),Feeder ID\nLOC-A,T-1,50,F-1\nLOC-B,T-1,50,F-1\nLOC-C,,75,F-2\n"), 0o644))

	count, err := svc.IngestTopology(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, writer.topology, 2)
	assert.Equal(t, "LOC-B", writer.topology[1].LocationID)

	_, err = svc.IngestTopology(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	var unavailable *models.DataUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestIngestionService_DuplicateRowsKeepFileOrder(t *testing.T) {
	dir := t.TempDir()
	first := exportRow("20240101", "LOC-A")
	second := strings.Replace(exportRow("20240101", "LOC-A"), "Residential", "Commercial", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024-01.csv"), []byte(exportLines(first, second)), 0o644))

	logger, m := newTestDeps()
	writer := &recordingWriter{}
	result, err := NewIngestionService(writer, logger, m).IngestDirectory(context.Background(), dir, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessfulRecords)

	// The store upserts on (location, date), so the later row is the one kept.
	require.Len(t, writer.batches, 1)
	require.Len(t, writer.batches[0], 2)
	assert.Equal(t, "Residential", writer.batches[0][0].RateClass)
	assert.Equal(t, "Commercial", writer.batches[0][1].RateClass)
}
