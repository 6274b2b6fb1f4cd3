package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-dashboard/internal/models"
)

func writeFixtures(t *testing.T) (dataDir, topology string) {
	t.Helper()
	t.Setenv("ANALYSIS_DEFAULT_MARGIN", "")

	root := t.TempDir()
	dataDir = filepath.Join(root, "consumption")
	require.NoError(t, os.Mkdir(dataDir, 0o755))

	header := []string{"YYYYMMDD", "LOCATION", "RATECLASS_DESC", "# OF CHARGERS"}
	row := []string{"20240108", "LOC-A", "Residential", "2"}
	for h := 1; h <= 24; h++ {
		header = append(header, "R"+strconv.Itoa(h))
		row = append(row, "10")
	}

	consumption := strings.Join(header, ",") + "\n" + strings.Join(row, ",") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "2024-01.csv"), []byte(consumption), 0o644))

	topology = filepath.Join(root, "topology.csv")
	require.NoError(t, os.WriteFile(topology, []byte(
		"LOCATION,TRANSFORMER ID,RATING (KVA),FEEDER ID\nLOC-A,T-1,100,F-1\n"), 0o644))

	return dataDir, topology
}

func runReport(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestRun_TransformerAnalysis(t *testing.T) {
	dataDir, topology := writeFixtures(t)

	out, err := runReport(t, "-data-dir", dataDir, "-topology-file", topology, "-transformer", "T-1", "-week", "2024-01-10")
	require.NoError(t, err)

	assert.Contains(t, out, "TRANSFORMER T-1 (100 kVA) - F-1")
	assert.Contains(t, out, "WEEK 2024-01-08 to 2024-01-14, 1 locations")
	assert.Contains(t, out, "Weekly max load:     10.00 kW (10.0%)")
	assert.Contains(t, out, "Category:            Normal")
}

func TestRun_TransformerDefaultsToLatestWeek(t *testing.T) {
	dataDir, topology := writeFixtures(t)

	out, err := runReport(t, "-data-dir", dataDir, "-topology-file", topology, "-transformer", "T-1")
	require.NoError(t, err)

	assert.Contains(t, out, "WEEK 2024-01-08 to 2024-01-14, 1 locations")
	assert.Contains(t, out, "2024-01-08 Monday    max    10.00 kW")
	assert.Contains(t, out, "Weekly max load:     10.00 kW (10.0%)")
}

func TestRun_LocationDefaultsToLatestWeek(t *testing.T) {
	dataDir, topology := writeFixtures(t)

	out, err := runReport(t, "-data-dir", dataDir, "-topology-file", topology, "-location", "LOC-A")
	require.NoError(t, err)

	assert.Contains(t, out, "LOCATION LOC-A  WEEK OF 2024-01-07")
	assert.Contains(t, out, "Charger status: confirmed")
	assert.Contains(t, out, "2024-01-08 Monday    peak   10.00 kW")
}

func TestRun_Summary(t *testing.T) {
	dataDir, topology := writeFixtures(t)

	out, err := runReport(t, "-data-dir", dataDir, "-topology-file", topology)
	require.NoError(t, err)

	assert.Contains(t, out, "LOC-A")
	assert.Contains(t, out, "T-1 (100kVA) - F-1")
}

func TestRun_Errors(t *testing.T) {
	dataDir, topology := writeFixtures(t)

	tests := []struct {
		name     string
		args     []string
		notFound bool
	}{
		{"unknown transformer", []string{"-transformer", "T-9"}, true},
		{"unknown location", []string{"-location", "LOC-Z"}, true},
		{"bad week", []string{"-location", "LOC-A", "-week", "Jan 8"}, false},
		{"negative threshold", []string{"-threshold", "-1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-data-dir", dataDir, "-topology-file", topology}, tt.args...)
			_, err := runReport(t, args...)
			require.Error(t, err)

			var nf *models.NotFoundError
			assert.Equal(t, tt.notFound, errors.As(err, &nf))
		})
	}
}
