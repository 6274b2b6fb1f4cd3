package services

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"energy-dashboard/internal/models"
)

func hoursWith(values ...float64) []float64 {
	hours := make([]float64, models.HoursPerDay)
	copy(hours, values)
	return hours
}

func TestBaseline(t *testing.T) {
	tests := []struct {
		name    string
		records []models.EnergyRecord
		want    float64
	}{
		{"empty history", nil, 0},
		{"flat day", []models.EnergyRecord{day("L1", date(2024, 1, 7), 5, nil)}, 5},
		{
			name: "every hour weighs the same",
			records: []models.EnergyRecord{
				day("L1", date(2024, 1, 7), 0, nil),
				day("L1", date(2024, 1, 8), 0, map[int]float64{0: 48}),
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Baseline(tt.records), 1e-9)
		})
	}
}

func TestExceedsThreshold(t *testing.T) {
	tests := []struct {
		name     string
		hours    []float64
		baseline float64
		margin   float64
		window   int
		want     bool
	}{
		{"run of two above limit", hoursWith(0, 0, 3, 3), 0, 2, 2, true},
		{"isolated highs do not form a run", hoursWith(3, 0, 3), 0, 2, 2, false},
		{"equal to limit is not above", hoursWith(2, 2), 0, 2, 2, false},
		{"baseline shifts the limit", hoursWith(4, 4), 2.5, 2, 2, false},
		{"run at the final hours", append(make([]float64, 22), 5, 5), 0, 2, 2, true},
		{"no wraparound", append([]float64{5}, append(make([]float64, 22), 5)...), 0, 2, 2, false},
		{"window of three", hoursWith(3, 3, 0, 3, 3, 3), 0, 2, 3, true},
		{"zero window", hoursWith(3, 3), 0, 2, 0, false},
		{"window longer than the day", hoursWith(3, 3), 0, 2, 25, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExceedsThreshold(tt.hours, tt.baseline, tt.margin, tt.window)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExceedsThreshold_MonotonicInMargin(t *testing.T) {
	hours := hoursWith(1, 4, 4, 2, 6, 6, 6, 0, 3.5, 3.5)
	margins := []float64{0, 0.5, 1, 2, 3, 3.5, 4, 5, 6, 10}

	for i, low := range margins {
		for _, high := range margins[i:] {
			if ExceedsThreshold(hours, 0, high, DefaultWindowSize) {
				assert.True(t, ExceedsThreshold(hours, 0, low, DefaultWindowSize),
					"exceeds at margin %v but not at lower margin %v", high, low)
			}
		}
	}
}

func TestValidateMargin(t *testing.T) {
	for _, margin := range []float64{0, DefaultMargin, 7.25} {
		assert.NoError(t, ValidateMargin(margin), "margin %v", margin)
	}

	for _, margin := range []float64{-0.1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := ValidateMargin(margin)
		var validationErr *models.ValidationError
		assert.True(t, errors.As(err, &validationErr), "margin %v", margin)
	}
}

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 0.12, roundTo(0.125, 2))
	assert.Equal(t, 0.38, roundTo(0.375, 2))
	assert.Equal(t, 120.0, roundTo(120, 1))
	assert.Equal(t, 33.3, roundTo(100.0/3, 1))
}
