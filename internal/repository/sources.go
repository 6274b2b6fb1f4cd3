package repository

import (
	"context"

	"energy-dashboard/internal/models"
)

// ConsumptionSource supplies raw energy records. No ordering is guaranteed and
// callers must treat returned records as read-only.
type ConsumptionSource interface {
	LoadAll(ctx context.Context) ([]models.EnergyRecord, error)
	GetByLocation(ctx context.Context, locationID string) ([]models.EnergyRecord, error)
}

// TopologySource supplies transformer/location attachments, one row per attached location
type TopologySource interface {
	LoadTransformers(ctx context.Context) ([]models.TopologyRow, error)
}

// RecordWriter persists raw records and topology rows for later loading
type RecordWriter interface {
	CreateRecordsBatch(ctx context.Context, records []models.EnergyRecord) error
	ReplaceTopology(ctx context.Context, rows []models.TopologyRow) error
}
