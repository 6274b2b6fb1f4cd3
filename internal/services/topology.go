package services

import (
	"context"
	"strconv"
	"sync"

	"energy-dashboard/internal/models"
	"energy-dashboard/internal/repository"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

const topologyDataset = "topology"

// topologySnapshot is an immutable fold of the topology rows
type topologySnapshot struct {
	ordered []*models.Transformer
	byID    map[string]*models.Transformer
}

// topologyCatalog loads the transformer topology once and serves it until refreshed
type topologyCatalog struct {
	source  repository.TopologySource
	logger  *logging.ContextLogger
	metrics *metrics.Collector

	mu     sync.Mutex
	loaded bool
	snap   *topologySnapshot
}

func newTopologyCatalog(source repository.TopologySource, logger *logging.ContextLogger, metricsCollector *metrics.Collector) *topologyCatalog {
	return &topologyCatalog{
		source:  source,
		logger:  logger,
		metrics: metricsCollector,
	}
}

func (c *topologyCatalog) snapshot(ctx context.Context) *topologySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.RecordCacheLookup(topologyDataset, c.loaded)
	if !c.loaded {
		c.snap = c.build(context.WithoutCancel(ctx))
		c.loaded = true
	}
	return c.snap
}

func (c *topologyCatalog) refresh(ctx context.Context) {
	snap := c.build(ctx)

	c.mu.Lock()
	c.snap = snap
	c.loaded = true
	c.mu.Unlock()
}

func (c *topologyCatalog) build(ctx context.Context) *topologySnapshot {
	timer := c.metrics.NewTimer(c.metrics.DatasetLoadDuration.WithLabelValues(topologyDataset))

	rows, err := c.source.LoadTransformers(ctx)
	duration := timer.ObserveDuration()
	if err != nil {
		c.metrics.DatasetUnavailable.WithLabelValues(topologyDataset).Inc()
		c.logger.Error(ctx, "[DATASET_UNAVAILABLE] Topology source unreadable, serving no transformers", logging.Fields{
			"duration_ms": duration.Milliseconds(),
		}, err)
		rows = nil
	}

	snap := c.fold(ctx, rows)

	c.metrics.DatasetRecordsLoaded.WithLabelValues(topologyDataset).Set(float64(len(snap.ordered)))
	c.logger.Info(ctx, "[DATASET_LOADED] Transformer topology cached", logging.Fields{
		"row_count":         len(rows),
		"transformer_count": len(snap.ordered),
		"duration_ms":       duration.Milliseconds(),
	})
	return snap
}

// fold merges rows sharing a transformer id into one transformer. The first
// row seen fixes rating and feeder; later rows only add locations.
func (c *topologyCatalog) fold(ctx context.Context, rows []models.TopologyRow) *topologySnapshot {
	snap := &topologySnapshot{byID: make(map[string]*models.Transformer)}
	attached := make(map[string]map[string]struct{})

	for _, row := range rows {
		if row.TransformerID == "" || !models.Finite(row.RatingKVA) || row.RatingKVA <= 0 {
			c.metrics.RecordIngestionError("topology_error")
			c.logger.Warn(ctx, "[TOPOLOGY_ROW_DROPPED] Dropping topology row without id or finite positive rating", logging.Fields{
				"transformer_id": row.TransformerID,
				"rating_kva":     strconv.FormatFloat(row.RatingKVA, 'f', -1, 64),
				"location_id":    row.LocationID,
			})
			continue
		}

		t, ok := snap.byID[row.TransformerID]
		if !ok {
			t = &models.Transformer{
				TransformerID: row.TransformerID,
				RatingKVA:     row.RatingKVA,
				FeederID:      row.FeederID,
				Locations:     []string{},
			}
			snap.byID[row.TransformerID] = t
			snap.ordered = append(snap.ordered, t)
			attached[row.TransformerID] = make(map[string]struct{})
		} else if t.RatingKVA != row.RatingKVA || t.FeederID != row.FeederID {
			c.logger.Debug(ctx, "[TOPOLOGY_CONFLICT] Later row disagrees with first-seen transformer attributes", logging.Fields{
				"transformer_id": row.TransformerID,
				"location_id":    row.LocationID,
			})
		}

		if row.LocationID == "" {
			continue
		}
		if _, dup := attached[row.TransformerID][row.LocationID]; dup {
			continue
		}
		attached[row.TransformerID][row.LocationID] = struct{}{}
		t.Locations = append(t.Locations, row.LocationID)
	}

	return snap
}
