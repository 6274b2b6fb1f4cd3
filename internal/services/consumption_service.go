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

// ConsumptionService assembles per-location views for the consumption dashboard
type ConsumptionService struct {
	source    repository.ConsumptionSource
	predictor *ChargerPredictor
	logger    *logging.ContextLogger
	metrics   *metrics.Collector
}

// NewConsumptionService creates a new consumption service
func NewConsumptionService(source repository.ConsumptionSource, predictor *ChargerPredictor, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ConsumptionService {
	return &ConsumptionService{
		source:    source,
		predictor: predictor,
		logger:    logger.WithFields(logging.Fields{"component": "consumption_service"}),
		metrics:   metricsCollector,
	}
}

// locationState is one location's classification at a given margin
type locationState struct {
	id         string
	records    []models.EnergyRecord
	status     models.ChargerStatus
	prediction ChargerPrediction
}

// classifyLocations groups the full dataset by location and classifies each
// location at margin, ordered by location id.
func (s *ConsumptionService) classifyLocations(ctx context.Context, margin float64) ([]locationState, error) {
	all, err := s.source.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load consumption records: %w", err)
	}

	byLocation := make(map[string][]models.EnergyRecord)
	for i := range all {
		id := all[i].LocationID
		byLocation[id] = append(byLocation[id], all[i])
	}

	ids := make([]string, 0, len(byLocation))
	for id := range byLocation {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	states := make([]locationState, 0, len(ids))
	for _, id := range ids {
		records := byLocation[id]
		status, prediction := s.predictor.Classify(records, margin)
		states = append(states, locationState{
			id:         id,
			records:    records,
			status:     status,
			prediction: prediction,
		})
	}
	return states, nil
}

// ListActiveLocations returns every location with confirmed chargers or a
// charger prediction above 0.5 at margin, sorted by location id.
func (s *ConsumptionService) ListActiveLocations(ctx context.Context, margin float64) ([]models.LocationInfo, error) {
	if err := ValidateMargin(margin); err != nil {
		return nil, err
	}

	timer := s.metrics.TimeAnalysis("list_locations")
	defer timer.ObserveDuration()

	states, err := s.classifyLocations(ctx, margin)
	if err != nil {
		return nil, err
	}

	locations := make([]models.LocationInfo, 0, len(states))
	for _, st := range states {
		if !st.status.Active() {
			continue
		}
		locations = append(locations, models.LocationInfo{
			LocationID:                   st.id,
			HasConfirmedChargers:         st.status.State == models.ChargerConfirmed,
			HasPredictedChargers:         st.prediction.HasChargers,
			ChargerPredictionProbability: st.prediction.Probability,
			Baseline:                     Baseline(st.records),
			AvailableWeeks:               sundayWeekStarts(st.records),
		})
	}

	s.metrics.ActiveLocations.Set(float64(len(locations)))
	s.logger.Debug(ctx, "[LOCATIONS_LISTED] Active locations resolved", logging.Fields{
		"margin":          margin,
		"total_locations": len(states),
		"active_count":    len(locations),
	})

	return locations, nil
}

// ActiveLocationIDs returns the set of active location ids at margin
func (s *ConsumptionService) ActiveLocationIDs(ctx context.Context, margin float64) (map[string]struct{}, error) {
	if err := ValidateMargin(margin); err != nil {
		return nil, err
	}

	states, err := s.classifyLocations(ctx, margin)
	if err != nil {
		return nil, err
	}

	active := make(map[string]struct{})
	for _, st := range states {
		if st.status.Active() {
			active[st.id] = struct{}{}
		}
	}
	return active, nil
}

// ListAvailableWeeks returns the distinct Sunday week starts covered by a
// location's data, ascending. An unknown location has no weeks.
func (s *ConsumptionService) ListAvailableWeeks(ctx context.Context, locationID string) ([]time.Time, error) {
	records, err := s.source.GetByLocation(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get records for location %s: %w", locationID, err)
	}
	return sundayWeekStarts(records), nil
}

// GetWeeklyConsumption builds the 7-day view of a location starting on
// weekStart. Missing days are zero-filled; a window with no data at all is
// NotFound. Baseline and charger status always come from the full history.
func (s *ConsumptionService) GetWeeklyConsumption(ctx context.Context, locationID string, weekStart time.Time, margin float64) (*models.WeeklyConsumptionView, error) {
	if err := ValidateMargin(margin); err != nil {
		return nil, err
	}

	timer := s.metrics.TimeAnalysis("weekly_consumption")
	defer timer.ObserveDuration()

	records, err := s.source.GetByLocation(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get records for location %s: %w", locationID, err)
	}
	if len(records) == 0 {
		return nil, &models.NotFoundError{Resource: "location", ID: locationID}
	}

	window := models.NewWeekWindow(weekStart)
	byDate := indexByDate(records, window)
	if len(byDate) == 0 {
		return nil, &models.NotFoundError{
			Resource: "consumption week",
			ID:       fmt.Sprintf("%s/%s", locationID, window.Start.Format("2006-01-02")),
		}
	}

	baseline := Baseline(records)
	status, _ := s.predictor.Classify(records, margin)

	dates := window.Dates()
	daily := make([]models.DailyConsumption, 0, len(dates))
	for _, date := range dates {
		day := models.DailyConsumption{Date: date}
		if rec, ok := byDate[date]; ok {
			day.HourlyConsumption = rec.Hourly
			day.ExceedsThreshold = ExceedsThreshold(rec.Hourly[:], baseline, margin, DefaultWindowSize)
		}
		daily = append(daily, day)
	}

	return &models.WeeklyConsumptionView{
		LocationID:    locationID,
		WeekStart:     window.Start,
		DailyData:     daily,
		Baseline:      baseline,
		Threshold:     margin,
		HasChargers:   status.Active(),
		IsPredicted:   status.State == models.ChargerPredictedPresent,
		ChargerStatus: status,
	}, nil
}

// indexByDate keys the records inside window by date. The first record seen
// for a date wins.
func indexByDate(records []models.EnergyRecord, window models.WeekWindow) map[time.Time]*models.EnergyRecord {
	byDate := make(map[time.Time]*models.EnergyRecord)
	for i := range records {
		date := models.DateOf(records[i].Date)
		if !window.Contains(date) {
			continue
		}
		if _, seen := byDate[date]; !seen {
			byDate[date] = &records[i]
		}
	}
	return byDate
}

// sundayWeekStarts returns the distinct Sunday week starts of records, ascending
func sundayWeekStarts(records []models.EnergyRecord) []time.Time {
	seen := make(map[time.Time]struct{})
	weeks := make([]time.Time, 0)
	for i := range records {
		key := models.SundayWeekStart(records[i].Date)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		weeks = append(weeks, key)
	}

	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })
	return weeks
}
