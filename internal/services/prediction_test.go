package services

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"energy-dashboard/internal/models"
)

var spike = map[int]float64{18: 10, 19: 10}

func TestChargerPredictor_Predict(t *testing.T) {
	tests := []struct {
		name    string
		records []models.EnergyRecord
		want    ChargerPrediction
	}{
		{
			name: "no history",
			want: ChargerPrediction{},
		},
		{
			name: "two of three weeks exceeded",
			records: []models.EnergyRecord{
				day("L1", date(2024, 1, 8), 0, spike),
				day("L1", date(2024, 1, 15), 0, spike),
				day("L1", date(2024, 1, 22), 0, nil),
			},
			want: ChargerPrediction{HasChargers: true, Probability: 2.0 / 3, ExceededWeeks: 2, TotalWeeks: 3},
		},
		{
			name: "exactly half is not enough",
			records: []models.EnergyRecord{
				day("L1", date(2024, 1, 8), 0, spike),
				day("L1", date(2024, 1, 15), 0, nil),
			},
			want: ChargerPrediction{HasChargers: false, Probability: 0.5, ExceededWeeks: 1, TotalWeeks: 2},
		},
		{
			name: "Saturday and the next Sunday fall in different weeks",
			records: []models.EnergyRecord{
				day("L1", date(2024, 1, 7), 0, nil),
				day("L1", date(2024, 1, 13), 0, spike),
				day("L1", date(2024, 1, 14), 0, nil),
			},
			want: ChargerPrediction{HasChargers: false, Probability: 0.5, ExceededWeeks: 1, TotalWeeks: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, m := newTestDeps()
			got := NewChargerPredictor(m).Predict(tt.records, DefaultMargin)

			assert.Equal(t, tt.want.HasChargers, got.HasChargers)
			assert.InDelta(t, tt.want.Probability, got.Probability, 1e-9)
			assert.Equal(t, tt.want.ExceededWeeks, got.ExceededWeeks)
			assert.Equal(t, tt.want.TotalWeeks, got.TotalWeeks)
		})
	}
}

func TestChargerPredictor_ProbabilityBounds(t *testing.T) {
	records := []models.EnergyRecord{
		day("L1", date(2024, 1, 8), 1, spike),
		day("L1", date(2024, 1, 16), 1, map[int]float64{3: 4, 4: 4}),
		day("L1", date(2024, 1, 23), 1, nil),
		day("L1", date(2024, 2, 1), 1, map[int]float64{0: 30}),
	}

	_, m := newTestDeps()
	p := NewChargerPredictor(m)
	for _, margin := range []float64{0, 0.5, 1, 2, 5, 20} {
		got := p.Predict(records, margin)
		assert.GreaterOrEqual(t, got.Probability, 0.0, "margin %v", margin)
		assert.LessOrEqual(t, got.Probability, 1.0, "margin %v", margin)
		assert.LessOrEqual(t, got.ExceededWeeks, got.TotalWeeks)
	}
}

func TestChargerPredictor_Classify(t *testing.T) {
	_, m := newTestDeps()
	p := NewChargerPredictor(m)

	status, prediction := p.Classify([]models.EnergyRecord{
		day("L1", date(2024, 1, 8), 0, nil),
		confirmed(day("L1", date(2024, 1, 9), 0, nil)),
	}, DefaultMargin)
	assert.Equal(t, models.ChargerConfirmed, status.State)
	assert.True(t, status.Active())
	assert.Equal(t, ChargerPrediction{}, prediction)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("present")))

	present := []models.EnergyRecord{
		day("L2", date(2024, 1, 8), 0, spike),
		day("L2", date(2024, 1, 15), 0, spike),
	}
	status, prediction = p.Classify(present, DefaultMargin)
	assert.Equal(t, models.ChargerPredictedPresent, status.State)
	assert.Equal(t, 1.0, status.Probability)
	assert.True(t, prediction.HasChargers)

	// Raising the margin above the spike turns the same history inactive.
	status, _ = p.Classify(present, 20)
	assert.Equal(t, models.ChargerPredictedAbsent, status.State)
	assert.False(t, status.Active())

	status, _ = p.Classify(nil, DefaultMargin)
	assert.Equal(t, models.ChargerUnknown, status.State)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("present")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("absent")))
}
