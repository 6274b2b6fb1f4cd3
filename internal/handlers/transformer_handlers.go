package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// ListTransformers handles GET /api/transformer/list
func (h *DashboardHandler) ListTransformers(w http.ResponseWriter, r *http.Request) {
	defer h.observe(routeTransformers)()

	margin, err := h.parseMargin(r)
	if err != nil {
		h.fail(w, r, routeTransformers, "", err)
		return
	}

	transformers, err := h.transformers.ListActiveTransformers(r.Context(), margin)
	if err != nil {
		h.fail(w, r, routeTransformers, "[API_LIST_TRANSFORMERS_ERROR] Failed to list transformers", err)
		return
	}

	h.respond(w, r, routeTransformers, transformers)
}

// GetTransformerWeeks handles GET /api/transformer/{transformerId}/weeks.
// Weeks are returned as YYYY-MM-DD strings, newest first.
func (h *DashboardHandler) GetTransformerWeeks(w http.ResponseWriter, r *http.Request) {
	defer h.observe(routeTransformerWeeks)()

	transformerID := mux.Vars(r)["transformerId"]

	weeks, err := h.transformers.ListTransformerWeeks(r.Context(), transformerID)
	if err != nil {
		h.fail(w, r, routeTransformerWeeks, "[API_TRANSFORMER_WEEKS_ERROR] Failed to list transformer weeks", err)
		return
	}

	out := make([]string, 0, len(weeks))
	for _, week := range weeks {
		out = append(out, week.Format("2006-01-02"))
	}

	h.respond(w, r, routeTransformerWeeks, out)
}

// GetWeeklyAnalysis handles GET /api/transformer/{transformerId}/weekly-analysis
func (h *DashboardHandler) GetWeeklyAnalysis(w http.ResponseWriter, r *http.Request) {
	defer h.observe(routeTransformerWeek)()

	transformerID := mux.Vars(r)["transformerId"]

	week, err := parseDate(r, "week")
	if err != nil {
		h.fail(w, r, routeTransformerWeek, "", err)
		return
	}

	margin, err := h.parseMargin(r)
	if err != nil {
		h.fail(w, r, routeTransformerWeek, "", err)
		return
	}

	analysis, err := h.transformers.AnalyzeWeek(r.Context(), transformerID, week, margin)
	if err != nil {
		h.fail(w, r, routeTransformerWeek, "[API_WEEKLY_ANALYSIS_ERROR] Failed to analyze transformer week", err)
		return
	}

	h.respond(w, r, routeTransformerWeek, analysis)
}
