package handlers

import (
	"encoding/json"
	"net/http"
)

type schema = map[string]interface{}

func queryParam(name, description string, required bool, s schema) schema {
	return schema{"name": name, "in": "query", "description": description, "required": required, "schema": s}
}

func pathParam(name, description string) schema {
	return schema{"name": name, "in": "path", "description": description, "required": true, "schema": schema{"type": "string"}}
}

func jsonResponse(description string, s schema) schema {
	return schema{
		"description": description,
		"content":     schema{"application/json": schema{"schema": s}},
	}
}

func ref(name string) schema {
	return schema{"$ref": "#/components/schemas/" + name}
}

func arrayOf(items schema) schema {
	return schema{"type": "array", "items": items}
}

var (
	thresholdParam = queryParam("threshold", "Margin in kWh above baseline (default: 2.0)", false,
		schema{"type": "number", "default": 2.0, "minimum": 0})

	errorResponses = schema{
		"400": jsonResponse("Invalid date or threshold", ref("Error")),
		"404": jsonResponse("Unknown resource or no data for the requested week", ref("Error")),
		"500": jsonResponse("Internal error", ref("Error")),
	}
)

func withErrors(ok schema) schema {
	out := schema{"200": ok}
	for code, resp := range errorResponses {
		out[code] = resp
	}
	return out
}

func dashboardPaths() schema {
	return schema{
		"/api/energy/locations": schema{
			"get": schema{
				"summary":     "List active locations",
				"description": "Locations with confirmed chargers or a charger prediction above 0.5 at the given threshold, sorted by id",
				"parameters":  []schema{thresholdParam},
				"responses":   withErrors(jsonResponse("Active locations", arrayOf(ref("LocationInfo")))),
			},
		},
		"/api/energy/locations/{locationId}/weeks": schema{
			"get": schema{
				"summary":     "List available weeks of a location",
				"description": "Distinct Sunday week starts covered by the location's data, ascending",
				"parameters":  []schema{pathParam("locationId", "Location id")},
				"responses":   withErrors(jsonResponse("Week start dates", arrayOf(schema{"type": "string", "format": "date-time"}))),
			},
		},
		"/api/energy/locations/{locationId}/consumption": schema{
			"get": schema{
				"summary":     "Get weekly consumption of a location",
				"description": "Seven days of hourly consumption from weekStart with per-day threshold flags",
				"parameters": []schema{
					pathParam("locationId", "Location id"),
					queryParam("weekStart", "First day of the window (YYYY-MM-DD)", true, schema{"type": "string", "format": "date"}),
					thresholdParam,
				},
				"responses": withErrors(jsonResponse("Weekly consumption view", ref("WeeklyConsumption"))),
			},
		},
		"/api/transformer/list": schema{
			"get": schema{
				"summary":     "List active transformers",
				"description": "Transformers serving at least one active location at the given threshold, in topology order",
				"parameters":  []schema{thresholdParam},
				"responses":   withErrors(jsonResponse("Active transformers", arrayOf(ref("TransformerSummary")))),
			},
		},
		"/api/transformer/{transformerId}/weeks": schema{
			"get": schema{
				"summary":     "List available weeks of a transformer",
				"description": "Sunday week starts covered by any attached location, newest first",
				"parameters":  []schema{pathParam("transformerId", "Transformer id")},
				"responses":   withErrors(jsonResponse("Week start dates", arrayOf(schema{"type": "string", "format": "date"}))),
			},
		},
		"/api/transformer/{transformerId}/weekly-analysis": schema{
			"get": schema{
				"summary":     "Analyze a transformer week",
				"description": "Hourly load, load rate and overload metrics for the Monday-anchored week containing the given date",
				"parameters": []schema{
					pathParam("transformerId", "Transformer id"),
					queryParam("week", "Any date within the target week (YYYY-MM-DD)", true, schema{"type": "string", "format": "date"}),
					thresholdParam,
				},
				"responses": withErrors(jsonResponse("Weekly analysis", ref("TransformerWeeklyAnalysis"))),
			},
		},
		"/health": schema{
			"get": schema{
				"summary":   "Health check",
				"responses": schema{"200": jsonResponse("API is healthy", schema{"type": "object"}), "503": jsonResponse("Backing store unreachable", schema{"type": "object"})},
			},
		},
		"/metrics": schema{
			"get": schema{
				"summary": "Prometheus metrics",
				"responses": schema{"200": schema{
					"description": "Prometheus metrics in text format",
					"content":     schema{"text/plain": schema{"schema": schema{"type": "string"}}},
				}},
			},
		},
	}
}

func props(fields map[string]string) schema {
	out := schema{}
	for name, typ := range fields {
		switch typ {
		case "date-time":
			out[name] = schema{"type": "string", "format": "date-time"}
		default:
			out[name] = schema{"type": typ}
		}
	}
	return schema{"type": "object", "properties": out}
}

func dashboardSchemas() schema {
	hourly := schema{"type": "array", "minItems": 24, "maxItems": 24, "items": schema{"type": "number"}}

	location := props(map[string]string{
		"locationId": "string", "hasConfirmedChargers": "boolean", "hasPredictedChargers": "boolean",
		"chargerPredictionProbability": "number", "baseline": "number",
	})
	location["properties"].(schema)["availableWeeks"] = arrayOf(schema{"type": "string", "format": "date-time"})

	daily := props(map[string]string{"date": "date-time", "exceedsThreshold": "boolean"})
	daily["properties"].(schema)["hourlyConsumption"] = hourly

	weekly := props(map[string]string{
		"locationId": "string", "weekStart": "date-time", "baseline": "number", "threshold": "number",
		"hasChargers": "boolean", "isPredicted": "boolean",
	})
	weekly["properties"].(schema)["dailyData"] = arrayOf(ref("DailyConsumption"))
	weekly["properties"].(schema)["chargerStatus"] = props(map[string]string{"state": "string", "probability": "number"})

	summary := props(map[string]string{
		"transformerId": "string", "ratingKva": "number", "feederId": "string",
		"locationCount": "integer", "displayName": "string",
	})
	summary["properties"].(schema)["locations"] = arrayOf(schema{"type": "string"})

	hour := props(map[string]string{
		"hour": "integer", "timestamp": "date-time", "loadKw": "number", "loadRate": "number", "isOverload": "boolean",
	})

	day := props(map[string]string{
		"date": "date-time", "dayOfWeek": "string", "maxLoadKw": "number", "overloadHours": "integer", "hasOverload": "boolean",
	})
	day["properties"].(schema)["hourlyLoads"] = arrayOf(ref("HourlyLoad"))

	metrics := props(map[string]string{
		"weeklyMaxLoadKw": "number", "weeklyMaxLoadRate": "number", "totalOverloadHours": "integer",
		"numberOfOverloadDays": "integer", "averageLoadRate": "number", "loadRateCategory": "string", "categoryColor": "string",
	})

	analysis := props(map[string]string{
		"transformerId": "string", "ratingKva": "number", "feederId": "string",
		"weekStartDate": "date-time", "weekEndDate": "date-time", "locationCount": "integer",
	})
	analysis["properties"].(schema)["dailyLoads"] = arrayOf(ref("DailyTransformerLoad"))
	analysis["properties"].(schema)["metrics"] = ref("WeeklyMetrics")

	return schema{
		"Error":                     props(map[string]string{"error": "string", "message": "string", "code": "integer"}),
		"LocationInfo":              location,
		"DailyConsumption":          daily,
		"WeeklyConsumption":         weekly,
		"TransformerSummary":        summary,
		"HourlyLoad":                hour,
		"DailyTransformerLoad":      day,
		"WeeklyMetrics":             metrics,
		"TransformerWeeklyAnalysis": analysis,
	}
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the Energy Dashboard API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	doc := schema{
		"openapi": "3.0.0",
		"info": schema{
			"title":       "Energy Dashboard API",
			"description": "Consumption baselines, EV charger prediction and transformer load analysis",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths":      dashboardPaths(),
		"components": schema{"schemas": dashboardSchemas()},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}
