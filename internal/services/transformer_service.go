package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"energy-dashboard/internal/models"
	"energy-dashboard/internal/repository"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

// TransformerService aggregates attached-location consumption into transformer load
type TransformerService struct {
	consumption repository.ConsumptionSource
	locations   *ConsumptionService
	catalog     *topologyCatalog
	logger      *logging.ContextLogger
	metrics     *metrics.Collector
}

// NewTransformerService creates a new transformer service
func NewTransformerService(topology repository.TopologySource, consumption repository.ConsumptionSource, locations *ConsumptionService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *TransformerService {
	ctxLogger := logger.WithFields(logging.Fields{"component": "transformer_service"})
	return &TransformerService{
		consumption: consumption,
		locations:   locations,
		catalog:     newTopologyCatalog(topology, ctxLogger, metricsCollector),
		logger:      ctxLogger,
		metrics:     metricsCollector,
	}
}

// Warm loads the topology if it has not been loaded yet
func (s *TransformerService) Warm(ctx context.Context) {
	s.catalog.snapshot(ctx)
}

// Refresh reloads the topology from its source
func (s *TransformerService) Refresh(ctx context.Context) {
	s.catalog.refresh(ctx)
}

// GetTransformer returns a copy of one transformer
func (s *TransformerService) GetTransformer(ctx context.Context, transformerID string) (*models.Transformer, error) {
	t, ok := s.catalog.snapshot(ctx).byID[transformerID]
	if !ok {
		return nil, &models.NotFoundError{Resource: "transformer", ID: transformerID}
	}

	out := *t
	out.Locations = append([]string(nil), t.Locations...)
	return &out, nil
}

// ListActiveTransformers returns transformers serving at least one active
// location at margin, in topology load order.
func (s *TransformerService) ListActiveTransformers(ctx context.Context, margin float64) ([]models.TransformerSummary, error) {
	if err := ValidateMargin(margin); err != nil {
		return nil, err
	}

	timer := s.metrics.TimeAnalysis("list_transformers")
	defer timer.ObserveDuration()

	active, err := s.locations.ActiveLocationIDs(ctx, margin)
	if err != nil {
		return nil, err
	}

	snap := s.catalog.snapshot(ctx)
	summaries := make([]models.TransformerSummary, 0)
	for _, t := range snap.ordered {
		if servesAny(t, active) {
			summaries = append(summaries, t.Summary())
		}
	}

	s.metrics.ActiveTransformers.Set(float64(len(summaries)))
	s.logger.Debug(ctx, "[TRANSFORMERS_LISTED] Active transformers resolved", logging.Fields{
		"margin":             margin,
		"total_transformers": len(snap.ordered),
		"active_count":       len(summaries),
	})

	return summaries, nil
}

func servesAny(t *models.Transformer, active map[string]struct{}) bool {
	for _, id := range t.Locations {
		if _, ok := active[id]; ok {
			return true
		}
	}
	return false
}

// ListTransformerWeeks returns the Sunday week starts covered by any attached
// location, newest first.
func (s *TransformerService) ListTransformerWeeks(ctx context.Context, transformerID string) ([]time.Time, error) {
	t, ok := s.catalog.snapshot(ctx).byID[transformerID]
	if !ok {
		return nil, &models.NotFoundError{Resource: "transformer", ID: transformerID}
	}

	seen := make(map[time.Time]struct{})
	var weeks []time.Time
	for _, locationID := range t.Locations {
		records, err := s.consumption.GetByLocation(ctx, locationID)
		if err != nil {
			return nil, fmt.Errorf("failed to get records for location %s: %w", locationID, err)
		}
		for _, week := range sundayWeekStarts(records) {
			if _, dup := seen[week]; dup {
				continue
			}
			seen[week] = struct{}{}
			weeks = append(weeks, week)
		}
	}

	if len(weeks) == 0 {
		return nil, &models.NotFoundError{Resource: "transformer weeks", ID: transformerID}
	}

	sort.Slice(weeks, func(i, j int) bool { return weeks[i].After(weeks[j]) })
	return weeks, nil
}

// AnalyzeWeek computes the load of a transformer over the Monday-anchored
// week containing anyDate. margin is validated but does not enter the load math.
func (s *TransformerService) AnalyzeWeek(ctx context.Context, transformerID string, anyDate time.Time, margin float64) (*models.TransformerWeeklyAnalysis, error) {
	if err := ValidateMargin(margin); err != nil {
		return nil, err
	}

	timer := s.metrics.TimeAnalysis("transformer_week")
	defer timer.ObserveDuration()

	t, ok := s.catalog.snapshot(ctx).byID[transformerID]
	if !ok {
		return nil, &models.NotFoundError{Resource: "transformer", ID: transformerID}
	}

	window := models.NewWeekWindow(models.MondayWeekStart(anyDate))

	// Stage 1: collect attached-location records inside the window.
	records, err := s.collect(ctx, t, window)
	if err != nil {
		return nil, err
	}

	// Stage 2: group by calendar date.
	byDate := groupByDate(records)

	// Stage 3: sum hour by hour and build each day.
	dates := window.Dates()
	daily := make([]models.DailyTransformerLoad, 0, len(dates))
	for _, date := range dates {
		daily = append(daily, buildDailyLoad(date, sumHourly(byDate[date]), t.RatingKVA))
	}

	// Stage 4: weekly roll-up.
	weekly := rollUpWeek(daily, t.RatingKVA)
	s.metrics.OverloadedAnalyses.WithLabelValues(weekly.LoadRateCategory).Inc()

	s.logger.Debug(ctx, "[TRANSFORMER_ANALYZED] Weekly transformer load computed", logging.Fields{
		"transformer_id":       transformerID,
		"week_start":           window.Start.Format("2006-01-02"),
		"record_count":         len(records),
		"weekly_max_load_rate": weekly.WeeklyMaxLoadRate,
		"category":             weekly.LoadRateCategory,
	})

	return &models.TransformerWeeklyAnalysis{
		TransformerID: t.TransformerID,
		RatingKVA:     t.RatingKVA,
		FeederID:      t.FeederID,
		WeekStartDate: window.Start,
		WeekEndDate:   window.End,
		LocationCount: len(t.Locations),
		DailyLoads:    daily,
		Metrics:       weekly,
	}, nil
}

func (s *TransformerService) collect(ctx context.Context, t *models.Transformer, window models.WeekWindow) ([]*models.EnergyRecord, error) {
	var inWindow []*models.EnergyRecord
	for _, locationID := range t.Locations {
		records, err := s.consumption.GetByLocation(ctx, locationID)
		if err != nil {
			return nil, fmt.Errorf("failed to get records for location %s: %w", locationID, err)
		}
		for i := range records {
			if window.Contains(records[i].Date) {
				inWindow = append(inWindow, &records[i])
			}
		}
	}
	return inWindow, nil
}

func groupByDate(records []*models.EnergyRecord) map[time.Time][]*models.EnergyRecord {
	byDate := make(map[time.Time][]*models.EnergyRecord)
	for _, rec := range records {
		date := models.DateOf(rec.Date)
		byDate[date] = append(byDate[date], rec)
	}
	return byDate
}

// sumHourly adds every record's hourly values. Absent locations contribute nothing.
func sumHourly(records []*models.EnergyRecord) [models.HoursPerDay]float64 {
	var sums [models.HoursPerDay]float64
	for _, rec := range records {
		for h, v := range rec.Hourly {
			sums[h] += v
		}
	}
	return sums
}

// buildDailyLoad converts one day of summed kW into hourly loads. The daily
// maximum is taken over unrounded load and rounded afterwards.
func buildDailyLoad(date time.Time, sums [models.HoursPerDay]float64, ratingKVA float64) models.DailyTransformerLoad {
	day := models.DailyTransformerLoad{
		Date:        date,
		DayOfWeek:   date.Weekday().String(),
		HourlyLoads: make([]models.HourlyLoad, 0, models.HoursPerDay),
	}

	var maxLoad float64
	for h, kw := range sums {
		rate := roundTo(kw/ratingKVA*100, 1)
		load := models.HourlyLoad{
			Hour:       h,
			Timestamp:  date.Add(time.Duration(h) * time.Hour),
			LoadKW:     roundTo(kw, 2),
			LoadRate:   rate,
			IsOverload: rate > 100,
		}
		day.HourlyLoads = append(day.HourlyLoads, load)

		if kw > maxLoad {
			maxLoad = kw
		}
		if load.IsOverload {
			day.OverloadHours++
		}
	}

	day.MaxLoadKW = roundTo(maxLoad, 2)
	day.HasOverload = day.OverloadHours > 0
	return day
}

// rollUpWeek derives weekly metrics from the daily loads. The weekly max rate
// comes from the weekly max load and the average from the rounded hourly loads.
func rollUpWeek(days []models.DailyTransformerLoad, ratingKVA float64) models.WeeklyMetrics {
	var m models.WeeklyMetrics

	var maxLoad, total float64
	hours := 0
	for _, day := range days {
		if day.MaxLoadKW > maxLoad {
			maxLoad = day.MaxLoadKW
		}
		m.TotalOverloadHours += day.OverloadHours
		if day.HasOverload {
			m.NumberOfOverloadDays++
		}
		for _, h := range day.HourlyLoads {
			total += h.LoadKW
			hours++
		}
	}

	m.WeeklyMaxLoadKW = roundTo(maxLoad, 2)
	m.WeeklyMaxLoadRate = roundTo(maxLoad/ratingKVA*100, 1)
	if hours > 0 {
		m.AverageLoadRate = roundTo(total/float64(hours)/ratingKVA*100, 1)
	}
	m.LoadRateCategory, m.CategoryColor = models.LoadCategory(m.WeeklyMaxLoadRate)
	return m
}
