package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"energy-dashboard/internal/config"
	"energy-dashboard/internal/models"
	"energy-dashboard/internal/repository"
	"energy-dashboard/internal/services"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

const rule = "════════════════════════════════════════════════════════════════"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "report: %v\n", err)
		}
		os.Exit(1)
	}
}

// run prints an offline report over the CSV exports. Without -transformer or
// -location it lists the active locations and transformers.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dataDir := fs.String("data-dir", cfg.Data.ConsumptionDir, "Directory containing monthly consumption CSV exports")
	topologyFile := fs.String("topology-file", cfg.Data.TopologyFile, "Transformer/location CSV export")
	transformerID := fs.String("transformer", "", "Transformer to analyse")
	locationID := fs.String("location", "", "Location to show")
	week := fs.String("week", "", "Date inside the week to report (YYYY-MM-DD); defaults to the latest week")
	margin := fs.Float64("threshold", cfg.Analysis.DefaultMargin, "Threshold margin in kW above baseline")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := services.ValidateMargin(*margin); err != nil {
		return err
	}

	var weekDate time.Time
	if *week != "" {
		weekDate, err = time.Parse("2006-01-02", *week)
		if err != nil {
			return fmt.Errorf("invalid -week %q, expected YYYY-MM-DD", *week)
		}
	}

	logger := logging.NewStructuredLogger("energy-report", "1.0.0", logging.WarnLevel)
	logger.SetOutput(stderr)
	metricsCollector := metrics.NewCollector("energy_report", prometheus.NewRegistry())

	cache := repository.NewCachedConsumptionSource(
		repository.NewCSVConsumptionSource(*dataDir, logger, metricsCollector), logger, metricsCollector)
	consumption := services.NewConsumptionService(cache, services.NewChargerPredictor(metricsCollector), logger, metricsCollector)
	transformers := services.NewTransformerService(
		repository.NewCSVTopologySource(*topologyFile, logger, metricsCollector), cache, consumption, logger, metricsCollector)

	switch {
	case *transformerID != "":
		if weekDate.IsZero() {
			weeks, err := transformers.ListTransformerWeeks(ctx, *transformerID)
			if err != nil {
				return err
			}
			// Weeks are keyed by Sunday; the analysis runs Monday to Sunday, so
			// start on the Monday after the newest key to cover its data.
			weekDate = weeks[0].AddDate(0, 0, 1)
		}
		analysis, err := transformers.AnalyzeWeek(ctx, *transformerID, weekDate, *margin)
		if err != nil {
			return err
		}
		printTransformerAnalysis(stdout, analysis)

	case *locationID != "":
		if weekDate.IsZero() {
			weeks, err := consumption.ListAvailableWeeks(ctx, *locationID)
			if err != nil {
				return err
			}
			if len(weeks) == 0 {
				return &models.NotFoundError{Resource: "location", ID: *locationID}
			}
			weekDate = weeks[len(weeks)-1]
		}
		view, err := consumption.GetWeeklyConsumption(ctx, *locationID, weekDate, *margin)
		if err != nil {
			return err
		}
		printWeeklyView(stdout, view)

	default:
		locations, err := consumption.ListActiveLocations(ctx, *margin)
		if err != nil {
			return err
		}
		active, err := transformers.ListActiveTransformers(ctx, *margin)
		if err != nil {
			return err
		}
		printSummary(stdout, *margin, locations, active)
	}

	return nil
}

func printSummary(w io.Writer, margin float64, locations []models.LocationInfo, transformers []models.TransformerSummary) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "ACTIVE LOCATIONS (margin %.1f kW)\n", margin)
	fmt.Fprintln(w, rule)
	for _, loc := range locations {
		kind := "confirmed"
		if !loc.HasConfirmedChargers {
			kind = fmt.Sprintf("predicted p=%.2f", loc.ChargerPredictionProbability)
		}
		fmt.Fprintf(w, "%-20s baseline %6.2f kW  %-18s weeks %d\n", loc.LocationID, loc.Baseline, kind, len(loc.AvailableWeeks))
	}
	fmt.Fprintf(w, "Total: %d\n\n", len(locations))

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "ACTIVE TRANSFORMERS")
	fmt.Fprintln(w, rule)
	for _, t := range transformers {
		fmt.Fprintf(w, "%-40s locations %d\n", t.DisplayName, t.LocationCount)
	}
	fmt.Fprintf(w, "Total: %d\n", len(transformers))
}

func printWeeklyView(w io.Writer, v *models.WeeklyConsumptionView) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "LOCATION %s  WEEK OF %s\n", v.LocationID, v.WeekStart.Format("2006-01-02"))
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Charger status: %s (probability %.2f)\n", v.ChargerStatus.State, v.ChargerStatus.Probability)
	fmt.Fprintf(w, "Baseline:       %.2f kW\n", v.Baseline)
	fmt.Fprintf(w, "Threshold:      %.2f kW above baseline\n\n", v.Threshold)

	for _, day := range v.DailyData {
		peak := 0.0
		for _, kw := range day.HourlyConsumption {
			if kw > peak {
				peak = kw
			}
		}
		marker := ""
		if day.ExceedsThreshold {
			marker = "  EXCEEDS"
		}
		fmt.Fprintf(w, "%s %-9s peak %7.2f kW%s\n", day.Date.Format("2006-01-02"), day.Date.Weekday(), peak, marker)
	}
}

func printTransformerAnalysis(w io.Writer, a *models.TransformerWeeklyAnalysis) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "TRANSFORMER %s (%.0f kVA) - %s\n", a.TransformerID, a.RatingKVA, a.FeederID)
	fmt.Fprintf(w, "WEEK %s to %s, %d locations\n", a.WeekStartDate.Format("2006-01-02"), a.WeekEndDate.Format("2006-01-02"), a.LocationCount)
	fmt.Fprintln(w, rule)

	for _, day := range a.DailyLoads {
		fmt.Fprintf(w, "%s %-9s max %8.2f kW  overload hours %2d\n", day.Date.Format("2006-01-02"), day.DayOfWeek, day.MaxLoadKW, day.OverloadHours)
	}

	m := a.Metrics
	fmt.Fprintln(w, strings.Repeat("─", len([]rune(rule))))
	fmt.Fprintf(w, "Weekly max load:     %.2f kW (%.1f%%)\n", m.WeeklyMaxLoadKW, m.WeeklyMaxLoadRate)
	fmt.Fprintf(w, "Average load rate:   %.1f%%\n", m.AverageLoadRate)
	fmt.Fprintf(w, "Overload hours/days: %d / %d\n", m.TotalOverloadHours, m.NumberOfOverloadDays)
	fmt.Fprintf(w, "Category:            %s\n", m.LoadRateCategory)
}
