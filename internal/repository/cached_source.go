package repository

import (
	"context"
	"sync"

	"energy-dashboard/internal/models"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

const consumptionDataset = "consumption"

// consumptionSnapshot is an immutable view of the full dataset
type consumptionSnapshot struct {
	records    []models.EnergyRecord
	byLocation map[string][]models.EnergyRecord
}

// CachedConsumptionSource memoizes a ConsumptionSource for the process
// lifetime. The first caller loads the dataset while holding mu; concurrent
// first callers wait for that single load. A failed load degrades to an empty
// dataset instead of failing requests.
type CachedConsumptionSource struct {
	source  ConsumptionSource
	logger  *logging.ContextLogger
	metrics *metrics.Collector

	mu     sync.Mutex
	loaded bool
	snap   *consumptionSnapshot
}

// NewCachedConsumptionSource wraps source with a populate-once cache
func NewCachedConsumptionSource(source ConsumptionSource, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *CachedConsumptionSource {
	return &CachedConsumptionSource{
		source:  source,
		logger:  logger.WithFields(logging.Fields{"component": "consumption_cache"}),
		metrics: metricsCollector,
	}
}

// LoadAll returns every cached record
func (c *CachedConsumptionSource) LoadAll(ctx context.Context) ([]models.EnergyRecord, error) {
	return c.snapshot(ctx).records, nil
}

// GetByLocation returns the cached records of one location, nil if unknown
func (c *CachedConsumptionSource) GetByLocation(ctx context.Context, locationID string) ([]models.EnergyRecord, error) {
	return c.snapshot(ctx).byLocation[locationID], nil
}

// Warm populates the cache if it has not been populated yet
func (c *CachedConsumptionSource) Warm(ctx context.Context) {
	c.snapshot(ctx)
}

// Refresh reloads the dataset from the underlying source and swaps it in.
// Requests in flight keep the snapshot they started with.
func (c *CachedConsumptionSource) Refresh(ctx context.Context) {
	snap := c.build(ctx)

	c.mu.Lock()
	c.snap = snap
	c.loaded = true
	c.mu.Unlock()
}

func (c *CachedConsumptionSource) snapshot(ctx context.Context) *consumptionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.RecordCacheLookup(consumptionDataset, c.loaded)
	if !c.loaded {
		// The load outlives the request that triggered it.
		c.snap = c.build(context.WithoutCancel(ctx))
		c.loaded = true
	}
	return c.snap
}

func (c *CachedConsumptionSource) build(ctx context.Context) *consumptionSnapshot {
	timer := c.metrics.NewTimer(c.metrics.DatasetLoadDuration.WithLabelValues(consumptionDataset))

	records, err := c.source.LoadAll(ctx)
	duration := timer.ObserveDuration()
	if err != nil {
		c.metrics.DatasetUnavailable.WithLabelValues(consumptionDataset).Inc()
		c.logger.Error(ctx, "[DATASET_UNAVAILABLE] Consumption source unreadable, serving empty dataset", logging.Fields{
			"duration_ms": duration.Milliseconds(),
		}, err)
		records = nil
	}

	byLocation := make(map[string][]models.EnergyRecord)
	for i := range records {
		id := records[i].LocationID
		byLocation[id] = append(byLocation[id], records[i])
	}

	c.metrics.DatasetRecordsLoaded.WithLabelValues(consumptionDataset).Set(float64(len(records)))
	c.logger.Info(ctx, "[DATASET_LOADED] Consumption dataset cached", logging.Fields{
		"record_count":   len(records),
		"location_count": len(byLocation),
		"duration_ms":    duration.Milliseconds(),
	})

	return &consumptionSnapshot{
		records:    records,
		byLocation: byLocation,
	}
}
