package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"energy-dashboard/internal/models"
	"energy-dashboard/internal/services"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// DashboardHandler serves the consumption and transformer dashboard API
type DashboardHandler struct {
	consumption   *services.ConsumptionService
	transformers  *services.TransformerService
	health        HealthChecker
	defaultMargin float64
	logger        *logging.StructuredLogger
	metrics       *metrics.Collector
}

// NewDashboardHandler creates a new dashboard handler. health may be nil when
// no backing store needs checking.
func NewDashboardHandler(
	consumption *services.ConsumptionService,
	transformers *services.TransformerService,
	health HealthChecker,
	defaultMargin float64,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *DashboardHandler {
	return &DashboardHandler{
		consumption:   consumption,
		transformers:  transformers,
		health:        health,
		defaultMargin: defaultMargin,
		logger:        logger,
		metrics:       metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Route templates, used as metric labels
const (
	routeLocations        = "/api/energy/locations"
	routeLocationWeeks    = "/api/energy/locations/{locationId}/weeks"
	routeLocationWeek     = "/api/energy/locations/{locationId}/consumption"
	routeTransformers     = "/api/transformer/list"
	routeTransformerWeeks = "/api/transformer/{transformerId}/weeks"
	routeTransformerWeek  = "/api/transformer/{transformerId}/weekly-analysis"
)

// RegisterRoutes registers all dashboard API routes
func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(routeLocations, h.ListLocations).Methods("GET")
	router.HandleFunc(routeLocationWeeks, h.GetAvailableWeeks).Methods("GET")
	router.HandleFunc(routeLocationWeek, h.GetWeeklyConsumption).Methods("GET")
	router.HandleFunc(routeTransformers, h.ListTransformers).Methods("GET")
	router.HandleFunc(routeTransformerWeeks, h.GetTransformerWeeks).Methods("GET")
	router.HandleFunc(routeTransformerWeek, h.GetWeeklyAnalysis).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}

// HealthCheck handles GET /health
func (h *DashboardHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if h.health != nil {
		if err := h.health.HealthCheck(ctx); err != nil {
			h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Backing store unreachable", logging.Fields{
				"error": err.Error(),
			})
			status["status"] = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, code)
}

// observe records the duration of a request to endpoint
func (h *DashboardHandler) observe(endpoint string) func() {
	startTime := time.Now()
	return func() {
		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}
}

// respond writes data with 200 and counts the request
func (h *DashboardHandler) respond(w http.ResponseWriter, r *http.Request, endpoint string, data interface{}) {
	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, data, http.StatusOK)
}

// fail maps a service error onto an HTTP status
func (h *DashboardHandler) fail(w http.ResponseWriter, r *http.Request, endpoint, tag string, err error) {
	var validationErr *models.ValidationError
	var notFoundErr *models.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		h.metrics.RecordAPIError("validation_error", endpoint)
		h.sendError(w, r, endpoint, validationErr.Error(), http.StatusBadRequest)
	case errors.As(err, &notFoundErr):
		h.metrics.RecordAPIError("not_found", endpoint)
		h.sendError(w, r, endpoint, notFoundErr.Error(), http.StatusNotFound)
	default:
		h.logger.Error(r.Context(), tag, logging.Fields{
			"endpoint": endpoint,
			"path":     r.URL.Path,
		}, err)
		h.metrics.RecordAPIError("internal_error", endpoint)
		h.sendError(w, r, endpoint, "internal server error", http.StatusInternalServerError)
	}
}

// sendJSON sends a JSON response. The body is encoded before the status is
// written so an encoding failure can still be reported as a 500.
func (h *DashboardHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		h.logger.Error(context.Background(), "[API_ENCODE_ERROR] Failed to encode response", logging.Fields{
			"status_code": statusCode,
		}, err)
		h.metrics.RecordAPIError("encode_error", "response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(encodeFailureBody)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn(context.Background(), "[API_WRITE_ERROR] Failed to write response", logging.Fields{
			"error": err.Error(),
		})
	}
}

var encodeFailureBody = []byte(`{"error":"Internal Server Error","message":"failed to encode response","code":500}` + "\n")

// sendError sends an error response
func (h *DashboardHandler) sendError(w http.ResponseWriter, r *http.Request, endpoint, message string, statusCode int) {
	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// parseMargin reads the threshold query parameter, falling back to the configured default
func (h *DashboardHandler) parseMargin(r *http.Request) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("threshold"))
	if raw == "" {
		return h.defaultMargin, nil
	}

	margin, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &models.ValidationError{
			Field:   "threshold",
			Value:   raw,
			Message: "threshold must be a number",
		}
	}
	if err := services.ValidateMargin(margin); err != nil {
		return 0, err
	}
	return margin, nil
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"}

// parseDate reads a required date query parameter
func parseDate(r *http.Request, field string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(field))
	if raw == "" {
		return time.Time{}, &models.ValidationError{
			Field:   field,
			Message: "is required, expected YYYY-MM-DD",
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &models.ValidationError{
		Field:   field,
		Value:   raw,
		Message: "invalid date format, expected YYYY-MM-DD",
	}
}
