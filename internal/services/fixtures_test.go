package services

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"energy-dashboard/internal/models"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

func newTestDeps() (*logging.StructuredLogger, *metrics.Collector) {
	logger := logging.NewStructuredLogger("energy-test", "test", logging.DebugLevel)
	logger.SetOutput(io.Discard)
	return logger, metrics.NewCollector("energy_test", prometheus.NewRegistry())
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// day builds a record with every hour at base and the given hour overrides
func day(location string, on time.Time, base float64, overrides map[int]float64) models.EnergyRecord {
	rec := models.EnergyRecord{LocationID: location, Date: on}
	for h := range rec.Hourly {
		rec.Hourly[h] = base
	}
	for h, v := range overrides {
		rec.Hourly[h] = v
	}
	return rec
}

func confirmed(rec models.EnergyRecord) models.EnergyRecord {
	rec.ChargerCount = "1"
	return rec
}

type memorySource struct {
	records []models.EnergyRecord
	err     error
}

func (s *memorySource) LoadAll(ctx context.Context) ([]models.EnergyRecord, error) {
	return s.records, s.err
}

func (s *memorySource) GetByLocation(ctx context.Context, locationID string) ([]models.EnergyRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.EnergyRecord
	for i := range s.records {
		if s.records[i].LocationID == locationID {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

type memoryTopology struct {
	rows  []models.TopologyRow
	err   error
	calls atomic.Int32
}

func (s *memoryTopology) LoadTransformers(ctx context.Context) ([]models.TopologyRow, error) {
	s.calls.Add(1)
	return s.rows, s.err
}

func newServices(records []models.EnergyRecord, rows []models.TopologyRow) (*ConsumptionService, *TransformerService, *metrics.Collector) {
	logger, m := newTestDeps()
	source := &memorySource{records: records}
	consumption := NewConsumptionService(source, NewChargerPredictor(m), logger, m)
	transformers := NewTransformerService(&memoryTopology{rows: rows}, source, consumption, logger, m)
	return consumption, transformers, m
}
