package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// ListLocations handles GET /api/energy/locations
func (h *DashboardHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	defer h.observe(routeLocations)()

	margin, err := h.parseMargin(r)
	if err != nil {
		h.fail(w, r, routeLocations, "", err)
		return
	}

	locations, err := h.consumption.ListActiveLocations(r.Context(), margin)
	if err != nil {
		h.fail(w, r, routeLocations, "[API_LIST_LOCATIONS_ERROR] Failed to list locations", err)
		return
	}

	h.respond(w, r, routeLocations, locations)
}

// GetAvailableWeeks handles GET /api/energy/locations/{locationId}/weeks
func (h *DashboardHandler) GetAvailableWeeks(w http.ResponseWriter, r *http.Request) {
	defer h.observe(routeLocationWeeks)()

	locationID := mux.Vars(r)["locationId"]

	weeks, err := h.consumption.ListAvailableWeeks(r.Context(), locationID)
	if err != nil {
		h.fail(w, r, routeLocationWeeks, "[API_LOCATION_WEEKS_ERROR] Failed to list location weeks", err)
		return
	}

	h.respond(w, r, routeLocationWeeks, weeks)
}

// GetWeeklyConsumption handles GET /api/energy/locations/{locationId}/consumption
func (h *DashboardHandler) GetWeeklyConsumption(w http.ResponseWriter, r *http.Request) {
	defer h.observe(routeLocationWeek)()

	locationID := mux.Vars(r)["locationId"]

	weekStart, err := parseDate(r, "weekStart")
	if err != nil {
		h.fail(w, r, routeLocationWeek, "", err)
		return
	}

	margin, err := h.parseMargin(r)
	if err != nil {
		h.fail(w, r, routeLocationWeek, "", err)
		return
	}

	view, err := h.consumption.GetWeeklyConsumption(r.Context(), locationID, weekStart, margin)
	if err != nil {
		h.fail(w, r, routeLocationWeek, "[API_WEEKLY_CONSUMPTION_ERROR] Failed to build weekly consumption", err)
		return
	}

	h.respond(w, r, routeLocationWeek, view)
}
