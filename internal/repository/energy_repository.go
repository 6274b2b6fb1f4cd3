package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"energy-dashboard/internal/models"
	"energy-dashboard/pkg/database"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

// EnergyRepository provides PostgreSQL-backed access to raw consumption and topology data
type EnergyRepository interface {
	ConsumptionSource
	TopologySource
	RecordWriter

	HealthCheck(ctx context.Context) error
}

// energyRecordRow is the database shape of an EnergyRecord
type energyRecordRow struct {
	LocationID   string          `db:"location_id"`
	RecordDate   time.Time       `db:"record_date"`
	RateClass    string          `db:"rate_class"`
	ChargerCount sql.NullString  `db:"charger_count"`
	HourlyKWh    pq.Float64Array `db:"hourly_kwh"`
}

func (r *energyRecordRow) toRecord() (models.EnergyRecord, error) {
	if len(r.HourlyKWh) != models.HoursPerDay {
		return models.EnergyRecord{}, &models.ValidationError{
			Field:   "hourly_kwh",
			Value:   fmt.Sprintf("%d values", len(r.HourlyKWh)),
			Message: "expected 24 hourly values",
		}
	}

	for h, v := range r.HourlyKWh {
		if !models.Finite(v) || v < 0 {
			return models.EnergyRecord{}, &models.ValidationError{
				Field:   "hourly_kwh",
				Value:   fmt.Sprintf("hour %d = %v", h, v),
				Message: "hourly consumption must be finite and non-negative",
			}
		}
	}

	rec := models.EnergyRecord{
		LocationID:   r.LocationID,
		Date:         models.DateOf(r.RecordDate),
		RateClass:    r.RateClass,
		ChargerCount: r.ChargerCount.String,
	}
	copy(rec.Hourly[:], r.HourlyKWh)
	return rec, nil
}

type energyRepository struct {
	db      *database.PostgresDB
	logger  *logging.ContextLogger
	metrics *metrics.Collector
}

// NewEnergyRepository creates a new energy repository
func NewEnergyRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) EnergyRepository {
	return &energyRepository{
		db:      db,
		logger:  logger.WithFields(logging.Fields{"component": "energy_repository"}),
		metrics: metricsCollector,
	}
}

const selectEnergyRecords = `
	SELECT location_id, record_date, rate_class, charger_count, hourly_kwh
	FROM energy_records
`

// LoadAll retrieves every energy record
func (r *energyRepository) LoadAll(ctx context.Context) ([]models.EnergyRecord, error) {
	var rows []energyRecordRow
	if err := r.db.SelectContext(ctx, "load_all_records", &rows, selectEnergyRecords); err != nil {
		return nil, &models.DataUnavailableError{
			Source: "consumption",
			Err:    fmt.Errorf("failed to load energy records: %w", err),
		}
	}

	return r.convert(ctx, rows), nil
}

// GetByLocation retrieves one location's energy records ordered by date
func (r *energyRepository) GetByLocation(ctx context.Context, locationID string) ([]models.EnergyRecord, error) {
	query := selectEnergyRecords + ` WHERE location_id = $1 ORDER BY record_date`

	var rows []energyRecordRow
	if err := r.db.SelectContext(ctx, "get_records_by_location", &rows, query, locationID); err != nil {
		return nil, fmt.Errorf("failed to get records for location %s: %w", locationID, err)
	}

	return r.convert(ctx, rows), nil
}

func (r *energyRepository) convert(ctx context.Context, rows []energyRecordRow) []models.EnergyRecord {
	records := make([]models.EnergyRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toRecord()
		if err != nil {
			r.metrics.RecordIngestionError("db_row_error")
			r.logger.WarnErr(ctx, "[REPO_ROW_SKIPPED] Skipping malformed energy record", logging.Fields{
				"location_id": rows[i].LocationID,
				"record_date": rows[i].RecordDate.Format("2006-01-02"),
			}, err)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// LoadTransformers retrieves topology rows in the order they were ingested
func (r *energyRepository) LoadTransformers(ctx context.Context) ([]models.TopologyRow, error) {
	query := `
		SELECT transformer_id, rating_kva, feeder_id, location_id
		FROM transformer_locations
		ORDER BY row_order
	`

	var rows []models.TopologyRow
	if err := r.db.SelectContext(ctx, "load_topology", &rows, query); err != nil {
		return nil, &models.DataUnavailableError{
			Source: "topology",
			Err:    fmt.Errorf("failed to load transformer topology: %w", err),
		}
	}

	return rows, nil
}

const upsertEnergyRecord = `
	INSERT INTO energy_records (
		location_id, record_date, rate_class, charger_count, hourly_kwh
	)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (location_id, record_date) DO UPDATE SET
		rate_class = EXCLUDED.rate_class,
		charger_count = EXCLUDED.charger_count,
		hourly_kwh = EXCLUDED.hourly_kwh
`

// CreateRecordsBatch upserts multiple energy records in a single transaction
func (r *energyRepository) CreateRecordsBatch(ctx context.Context, records []models.EnergyRecord) error {
	if len(records) == 0 {
		return nil
	}

	err := r.db.InTx(ctx, "upsert_records_batch", func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertEnergyRecord)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i := range records {
			rec := &records[i]
			chargers := sql.NullString{String: rec.ChargerCount, Valid: rec.ChargerCount != ""}

			if _, err := stmt.ExecContext(ctx,
				rec.LocationID,
				rec.Date,
				rec.RateClass,
				chargers,
				pq.Float64Array(rec.Hourly[:]),
			); err != nil {
				return fmt.Errorf("failed to upsert record %s/%s: %w", rec.LocationID, rec.Date.Format("2006-01-02"), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.metrics.IngestionBatchSize.Observe(float64(len(records)))
	r.metrics.IngestionRecordsTotal.Add(float64(len(records)))
	r.logger.Debug(ctx, "[REPO_BATCH_UPSERT] Batch upsert completed", logging.Fields{
		"count": len(records),
	})
	return nil
}

// ReplaceTopology swaps the stored topology for rows, preserving their order
func (r *energyRepository) ReplaceTopology(ctx context.Context, rows []models.TopologyRow) error {
	err := r.db.InTx(ctx, "replace_topology", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transformer_locations`); err != nil {
			return fmt.Errorf("failed to clear topology: %w", err)
		}

		stmt, err := tx.PrepareNamedContext(ctx, `
			INSERT INTO transformer_locations (transformer_id, rating_kva, feeder_id, location_id)
			VALUES (:transformer_id, :rating_kva, :feeder_id, :location_id)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row); err != nil {
				return fmt.Errorf("failed to insert topology row for %s: %w", row.TransformerID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info(ctx, "[REPO_TOPOLOGY_REPLACED] Transformer topology replaced", logging.Fields{
		"row_count": len(rows),
	})
	return nil
}

// HealthCheck performs a repository health check
func (r *energyRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
