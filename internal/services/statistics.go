package services

import (
	"math"
	"strconv"

	"energy-dashboard/internal/models"
)

const (
	// DefaultMargin is the kWh offset above baseline used when a caller supplies none
	DefaultMargin = 2.0

	// DefaultWindowSize is the number of consecutive elevated hours that marks a charging session
	DefaultWindowSize = 2
)

// Baseline returns the mean of every hourly value across records, each hour
// weighted equally. An empty input has a baseline of 0.
func Baseline(records []models.EnergyRecord) float64 {
	if len(records) == 0 {
		return 0
	}

	var sum float64
	for i := range records {
		for _, v := range records[i].Hourly {
			sum += v
		}
	}
	return sum / float64(len(records)*models.HoursPerDay)
}

// ExceedsThreshold reports whether some run of windowSize consecutive hours
// lies strictly above baseline+margin. Runs do not wrap past the last hour.
func ExceedsThreshold(hours []float64, baseline, margin float64, windowSize int) bool {
	if windowSize <= 0 || windowSize > len(hours) {
		return false
	}

	limit := baseline + margin
	run := 0
	for _, v := range hours {
		if v > limit {
			run++
			if run >= windowSize {
				return true
			}
			continue
		}
		run = 0
	}
	return false
}

// ValidateMargin rejects margins that cannot define a threshold
func ValidateMargin(margin float64) error {
	if math.IsNaN(margin) || math.IsInf(margin, 0) || margin < 0 {
		return &models.ValidationError{
			Field:   "threshold",
			Value:   strconv.FormatFloat(margin, 'g', -1, 64),
			Message: "threshold must be a finite, non-negative number",
		}
	}
	return nil
}

// roundTo rounds v to the given number of decimal places, halves to even
func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.RoundToEven(v*scale) / scale
}
