package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"energy-dashboard/internal/config"
	"energy-dashboard/internal/handlers"
	"energy-dashboard/internal/repository"
	"energy-dashboard/internal/services"
	"energy-dashboard/pkg/database"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

const version = "1.0.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("energy-dashboard-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting energy dashboard API server", logging.Fields{
		"version":        version,
		"server_host":    cfg.Server.Host,
		"server_port":    cfg.Server.Port,
		"data_source":    cfg.Data.Source,
		"default_margin": cfg.Analysis.DefaultMargin,
	})

	metricsCollector := metrics.NewCollector("energy_dashboard", nil)

	var (
		consumptionSource repository.ConsumptionSource
		topologySource    repository.TopologySource
		health            handlers.HealthChecker
	)

	switch cfg.Data.Source {
	case config.SourcePostgres:
		db, err := database.NewPostgresDB(cfg.Database.ToDatabaseConfig(), logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{
				"db_host": cfg.Database.Host,
				"db_name": cfg.Database.Database,
			}, err)
		}
		defer db.Close()

		repo := repository.NewEnergyRepository(db, logger, metricsCollector)
		consumptionSource = repo
		topologySource = repo
		health = repo
	default:
		consumptionSource = repository.NewCSVConsumptionSource(cfg.Data.ConsumptionDir, logger, metricsCollector)
		topologySource = repository.NewCSVTopologySource(cfg.Data.TopologyFile, logger, metricsCollector)
	}

	cache := repository.NewCachedConsumptionSource(consumptionSource, logger, metricsCollector)
	predictor := services.NewChargerPredictor(metricsCollector)
	consumptionService := services.NewConsumptionService(cache, predictor, logger, metricsCollector)
	transformerService := services.NewTransformerService(topologySource, cache, consumptionService, logger, metricsCollector)

	dashboardHandler := handlers.NewDashboardHandler(
		consumptionService,
		transformerService,
		health,
		cfg.Analysis.DefaultMargin,
		logger,
		metricsCollector,
	)

	router := mux.NewRouter()
	router.Use(handlers.RequestLogging(logger))
	dashboardHandler.RegisterRoutes(router)

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/api/docs", handlers.SwaggerUI("/api/docs/openapi.json")).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", handlers.OpenAPISpec).Methods("GET")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handlers.WithCORS(cfg.Server.AllowedOrigin, router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Load both datasets before the first request needs them.
	go func() {
		cache.Warm(ctx)
		transformerService.Warm(ctx)
		logger.Info(ctx, "[WARMUP_COMPLETE] Datasets cached", logging.Fields{})
	}()

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for running := true; running; {
		select {
		case <-reload:
			logger.Info(ctx, "[RELOAD] Reloading datasets", logging.Fields{})
			cache.Refresh(ctx)
			transformerService.Refresh(ctx)
		case <-quit:
			running = false
		}
	}

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
