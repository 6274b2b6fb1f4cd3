package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// HoursPerDay is the number of hourly slots in every daily series
const HoursPerDay = 24

// EnergyRecord is one location's metered consumption for one calendar day.
// Hourly[h] is the kWh consumed during hour h. Records are immutable once loaded.
type EnergyRecord struct {
	LocationID   string               `json:"locationId" db:"location_id"`
	Date         time.Time            `json:"date" db:"record_date"`
	RateClass    string               `json:"rateClass" db:"rate_class"`
	ChargerCount string               `json:"chargerCount,omitempty" db:"charger_count"`
	Hourly       [HoursPerDay]float64 `json:"hourlyConsumption" db:"-"`
}

// HasConfirmedChargers reports whether the record carries charger metadata.
// "N/A" and blanks mean the charger count is unknown.
func (r *EnergyRecord) HasConfirmedChargers() bool {
	v := strings.TrimSpace(r.ChargerCount)
	return v != "" && !strings.EqualFold(v, "N/A")
}

// RawEnergyRecord is a single row of a monthly consumption export, still as text.
type RawEnergyRecord struct {
	Date         string // YYYYMMDD
	Location     string
	RateClass    string
	ChargerCount string
	Hourly       [HoursPerDay]string // R1..R24
}

// ToRecord validates the raw row and converts it to an EnergyRecord.
// Blank hourly cells are read as zero consumption.
func (r *RawEnergyRecord) ToRecord() (*EnergyRecord, error) {
	location := strings.TrimSpace(r.Location)
	if location == "" {
		return nil, &ValidationError{
			Field:   "location",
			Value:   r.Location,
			Message: "location id is empty",
		}
	}

	date, err := time.Parse("20060102", strings.TrimSpace(r.Date))
	if err != nil {
		return nil, &ValidationError{
			Field:   "date",
			Value:   r.Date,
			Message: "invalid date format, expected YYYYMMDD",
		}
	}

	rec := &EnergyRecord{
		LocationID:   location,
		Date:         date,
		RateClass:    strings.TrimSpace(r.RateClass),
		ChargerCount: strings.TrimSpace(r.ChargerCount),
	}

	for h, cell := range r.Hourly {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, &ValidationError{
				Field:   "R" + strconv.Itoa(h+1),
				Value:   cell,
				Message: "invalid hourly consumption value",
			}
		}
		if !Finite(v) {
			return nil, &ValidationError{
				Field:   "R" + strconv.Itoa(h+1),
				Value:   cell,
				Message: "hourly consumption must be a finite number",
			}
		}
		if v < 0 {
			return nil, &ValidationError{
				Field:   "R" + strconv.Itoa(h+1),
				Value:   cell,
				Message: "hourly consumption must not be negative",
			}
		}
		rec.Hourly[h] = v
	}

	return rec, nil
}

// Finite reports whether v is neither NaN nor an infinity
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ChargerState classifies a location's EV charger status
type ChargerState int

const (
	ChargerUnknown ChargerState = iota
	ChargerConfirmed
	ChargerPredictedPresent
	ChargerPredictedAbsent
)

// String returns the wire name of the state
func (s ChargerState) String() string {
	switch s {
	case ChargerConfirmed:
		return "confirmed"
	case ChargerPredictedPresent:
		return "predicted_present"
	case ChargerPredictedAbsent:
		return "predicted_absent"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name
func (s ChargerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name. Unrecognised names decode as unknown.
func (s *ChargerState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "confirmed":
		*s = ChargerConfirmed
	case "predicted_present":
		*s = ChargerPredictedPresent
	case "predicted_absent":
		*s = ChargerPredictedAbsent
	default:
		*s = ChargerUnknown
	}
	return nil
}

// ChargerStatus is a location's charger classification at a given margin.
// Probability is only meaningful for predicted states.
type ChargerStatus struct {
	State       ChargerState `json:"state"`
	Probability float64      `json:"probability"`
}

// ActiveProbability is the prediction probability a location must strictly exceed
const ActiveProbability = 0.5

// Active reports whether the location shows confirmed or predicted charging activity
func (s ChargerStatus) Active() bool {
	switch s.State {
	case ChargerConfirmed:
		return true
	case ChargerPredictedPresent:
		return s.Probability > ActiveProbability
	default:
		return false
	}
}

// LocationInfo summarises an active location for the consumption dashboard
type LocationInfo struct {
	LocationID                   string      `json:"locationId"`
	HasConfirmedChargers         bool        `json:"hasConfirmedChargers"`
	HasPredictedChargers         bool        `json:"hasPredictedChargers"`
	ChargerPredictionProbability float64     `json:"chargerPredictionProbability"`
	Baseline                     float64     `json:"baseline"`
	AvailableWeeks               []time.Time `json:"availableWeeks"`
}

// DailyConsumption is one day of a weekly view
type DailyConsumption struct {
	Date              time.Time            `json:"date"`
	HourlyConsumption [HoursPerDay]float64 `json:"hourlyConsumption"`
	ExceedsThreshold  bool                 `json:"exceedsThreshold"`
}

// WeeklyConsumptionView is a request-scoped 7-day view of one location
type WeeklyConsumptionView struct {
	LocationID    string             `json:"locationId"`
	WeekStart     time.Time          `json:"weekStart"`
	DailyData     []DailyConsumption `json:"dailyData"`
	Baseline      float64            `json:"baseline"`
	Threshold     float64            `json:"threshold"`
	HasChargers   bool               `json:"hasChargers"`
	IsPredicted   bool               `json:"isPredicted"`
	ChargerStatus ChargerStatus      `json:"chargerStatus"`
}
