package services

import (
	"time"

	"energy-dashboard/internal/models"
	"energy-dashboard/pkg/metrics"
)

// ChargerPrediction is the outcome of the weekly anomaly-frequency heuristic
type ChargerPrediction struct {
	HasChargers   bool    `json:"hasChargers"`
	Probability   float64 `json:"probability"`
	ExceededWeeks int     `json:"exceededWeeks"`
	TotalWeeks    int     `json:"totalWeeks"`
}

// ChargerPredictor infers undocumented EV chargers from how often a location's
// weeks contain an elevated-consumption run.
type ChargerPredictor struct {
	metrics *metrics.Collector
}

// NewChargerPredictor creates a new charger predictor
func NewChargerPredictor(metricsCollector *metrics.Collector) *ChargerPredictor {
	return &ChargerPredictor{metrics: metricsCollector}
}

// Predict classifies a location from its full record history at margin
func (p *ChargerPredictor) Predict(records []models.EnergyRecord, margin float64) ChargerPrediction {
	if len(records) == 0 {
		return ChargerPrediction{}
	}

	baseline := Baseline(records)
	weeks := groupBySundayWeek(records)

	exceeded := 0
	for _, days := range weeks {
		if anyDayExceeds(days, baseline, margin) {
			exceeded++
		}
	}

	prediction := ChargerPrediction{
		ExceededWeeks: exceeded,
		TotalWeeks:    len(weeks),
	}
	if prediction.TotalWeeks > 0 {
		prediction.Probability = float64(exceeded) / float64(prediction.TotalWeeks)
	}
	prediction.HasChargers = prediction.Probability > models.ActiveProbability

	p.metrics.RecordPrediction(prediction.HasChargers)
	return prediction
}

// Classify returns a location's charger status. Locations with charger
// metadata are confirmed without running the prediction; the returned
// prediction is then the zero value.
func (p *ChargerPredictor) Classify(records []models.EnergyRecord, margin float64) (models.ChargerStatus, ChargerPrediction) {
	if len(records) == 0 {
		return models.ChargerStatus{}, ChargerPrediction{}
	}

	for i := range records {
		if records[i].HasConfirmedChargers() {
			return models.ChargerStatus{State: models.ChargerConfirmed}, ChargerPrediction{}
		}
	}

	prediction := p.Predict(records, margin)
	status := models.ChargerStatus{
		State:       models.ChargerPredictedAbsent,
		Probability: prediction.Probability,
	}
	if prediction.HasChargers {
		status.State = models.ChargerPredictedPresent
	}
	return status, prediction
}

// groupBySundayWeek partitions records by the Sunday starting their week
func groupBySundayWeek(records []models.EnergyRecord) map[time.Time][]*models.EnergyRecord {
	weeks := make(map[time.Time][]*models.EnergyRecord)
	for i := range records {
		key := models.SundayWeekStart(records[i].Date)
		weeks[key] = append(weeks[key], &records[i])
	}
	return weeks
}

func anyDayExceeds(days []*models.EnergyRecord, baseline, margin float64) bool {
	for _, rec := range days {
		if ExceedsThreshold(rec.Hourly[:], baseline, margin, DefaultWindowSize) {
			return true
		}
	}
	return false
}
