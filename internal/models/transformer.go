package models

import (
	"fmt"
	"strconv"
	"time"
)

// TopologyRow is one transformer/location attachment as supplied by a topology source
type TopologyRow struct {
	TransformerID string  `json:"transformerId" db:"transformer_id"`
	RatingKVA     float64 `json:"ratingKva" db:"rating_kva"`
	FeederID      string  `json:"feederId" db:"feeder_id"`
	LocationID    string  `json:"locationId" db:"location_id"`
}

// Transformer is a distribution transformer and the locations it serves.
// Locations holds unique ids in topology load order.
type Transformer struct {
	TransformerID string   `json:"transformerId"`
	RatingKVA     float64  `json:"ratingKva"`
	FeederID      string   `json:"feederId"`
	Locations     []string `json:"locations"`
}

// DisplayName is the label the dashboard shows in its transformer picker
func (t *Transformer) DisplayName() string {
	return fmt.Sprintf("%s (%skVA) - %s", t.TransformerID, strconv.FormatFloat(t.RatingKVA, 'f', -1, 64), t.FeederID)
}

// TransformerSummary is the listing shape of a transformer
type TransformerSummary struct {
	TransformerID string   `json:"transformerId"`
	RatingKVA     float64  `json:"ratingKva"`
	FeederID      string   `json:"feederId"`
	LocationCount int      `json:"locationCount"`
	Locations     []string `json:"locations"`
	DisplayName   string   `json:"displayName"`
}

// Summary converts the transformer to its listing shape
func (t *Transformer) Summary() TransformerSummary {
	locations := make([]string, len(t.Locations))
	copy(locations, t.Locations)

	return TransformerSummary{
		TransformerID: t.TransformerID,
		RatingKVA:     t.RatingKVA,
		FeederID:      t.FeederID,
		LocationCount: len(t.Locations),
		Locations:     locations,
		DisplayName:   t.DisplayName(),
	}
}

// HourlyLoad is one hour of aggregated transformer load
type HourlyLoad struct {
	Hour       int       `json:"hour"`
	Timestamp  time.Time `json:"timestamp"`
	LoadKW     float64   `json:"loadKw"`
	LoadRate   float64   `json:"loadRate"`
	IsOverload bool      `json:"isOverload"`
}

// DailyTransformerLoad is one day of a transformer's weekly analysis
type DailyTransformerLoad struct {
	Date          time.Time    `json:"date"`
	DayOfWeek     string       `json:"dayOfWeek"`
	HourlyLoads   []HourlyLoad `json:"hourlyLoads"`
	MaxLoadKW     float64      `json:"maxLoadKw"`
	OverloadHours int          `json:"overloadHours"`
	HasOverload   bool         `json:"hasOverload"`
}

// WeeklyMetrics rolls up a week of daily transformer loads
type WeeklyMetrics struct {
	WeeklyMaxLoadKW      float64 `json:"weeklyMaxLoadKw"`
	WeeklyMaxLoadRate    float64 `json:"weeklyMaxLoadRate"`
	TotalOverloadHours   int     `json:"totalOverloadHours"`
	NumberOfOverloadDays int     `json:"numberOfOverloadDays"`
	AverageLoadRate      float64 `json:"averageLoadRate"`
	LoadRateCategory     string  `json:"loadRateCategory"`
	CategoryColor        string  `json:"categoryColor"`
}

// TransformerWeeklyAnalysis is the request-scoped weekly load analysis of one transformer
type TransformerWeeklyAnalysis struct {
	TransformerID string                 `json:"transformerId"`
	RatingKVA     float64                `json:"ratingKva"`
	FeederID      string                 `json:"feederId"`
	WeekStartDate time.Time              `json:"weekStartDate"`
	WeekEndDate   time.Time              `json:"weekEndDate"`
	LocationCount int                    `json:"locationCount"`
	DailyLoads    []DailyTransformerLoad `json:"dailyLoads"`
	Metrics       WeeklyMetrics          `json:"metrics"`
}

// Load rate category labels
const (
	CategoryNormal         = "Normal"
	CategoryNearCapacity   = "Near Capacity"
	CategoryLightOverload  = "Light Overload"
	CategorySevereOverload = "Severe Overload"
)

// LoadCategory maps a weekly max load rate (percent) to its category label and
// dashboard colour. Cut points are lower-bound inclusive.
func LoadCategory(loadRate float64) (category, color string) {
	switch {
	case loadRate < 80:
		return CategoryNormal, "success"
	case loadRate < 95:
		return CategoryNearCapacity, "warning"
	case loadRate < 110:
		return CategoryLightOverload, "danger"
	default:
		return CategorySevereOverload, "danger"
	}
}
