package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"fleetdiag/pkg/api"
	"fleetdiag/pkg/config"
	"fleetdiag/pkg/detection"
	"fleetdiag/pkg/registry"
	"fleetdiag/pkg/workflow"

	"github.com/gin-gonic/gin"
)

func main() {
	// ══════════════════════════════════════════════════════════════
	// STRUCTURED LOGGING
	// ══════════════════════════════════════════════════════════════
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ══════════════════════════════════════════════════════════════
	// CONFIGURATION
	// ══════════════════════════════════════════════════════════════
	conf, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Config loaded",
		"batch_size", conf.FleetBatchSize,
		"event_limit", conf.EventFetchLimit,
		"server_address", conf.ServerAddress,
	)

	// Initialize Auth Service
	auth := api.Auth(conf)

	// ══════════════════════════════════════════════════════════════
	// REGISTRY DATABASE
	// ══════════════════════════════════════════════════════════════
	db, err := registry.Connect(conf)
	if err != nil {
		slog.Error("Failed to connect to registry database", "error", err)
		os.Exit(1)
	}
	reg := registry.NewGormRegistry(db)

	// ══════════════════════════════════════════════════════════════
	// DIAGNOSTIC ENGINE
	// ══════════════════════════════════════════════════════════════
	thresholds := detection.ThresholdsFromConfig(conf)
	detector := detection.NewPatternDetector(thresholds)
	fleet := workflow.NewWorkflow(reg, detector, conf)

	// Background fleet scanner logs emerging system-wide patterns.
	scanner := workflow.NewScanner(fleet, 15*time.Minute)
	go scanner.Run(context.Background())

	// ══════════════════════════════════════════════════════════════
	// ROUTER SETUP
	// ══════════════════════════════════════════════════════════════
	router := gin.Default()
	router.Use(api.SecurityHeaders())

	// Public routes (no auth)
	router.POST("/login", auth.LoginHandler)

	// Protected routes
	diagnostics := api.NewDiagnosticsHandler(reg, detector, fleet, conf)
	apiGroup := router.Group("/api/v1")
	apiGroup.Use(auth.JWTMiddleware())
	{
		diagnostics.RegisterRoutes(apiGroup)
	}

	// ══════════════════════════════════════════════════════════════
	// START SERVER
	// ══════════════════════════════════════════════════════════════
	slog.Info("Starting diagnostics server", "address", conf.ServerAddress)
	if err := router.Run(conf.ServerAddress); err != nil {
		slog.Error("Server failed to start", "error", err)
		os.Exit(1)
	}
}
