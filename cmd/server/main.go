package main

import (
	"context"
	"fmt"
	"os"

	"facemark-go/config"
	"facemark-go/internal/api/handlers"
	"facemark-go/internal/core/attendance"
	"facemark-go/internal/core/facerec"
	"facemark-go/internal/core/processor"
	"facemark-go/internal/database"
	"facemark-go/internal/db/repository"
	"facemark-go/internal/integrations/mqtt"
	"facemark-go/internal/integrations/recognizer"
	"facemark-go/internal/logger"
	"facemark-go/internal/server/sse"
	"facemark-go/internal/services/cleanup"
	"facemark-go/internal/util/clock"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const defaultConfigPath = "/config/config.yaml"

func main() {
	configPath := os.Getenv("FACEMARK_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Log); err != nil {
		log.Errorf("Failed to initialize logger completely: %v", err)
	}

	// Wall clock in the configured timezone; every time-based decision goes
	// through this
	clk := clock.NewReal(cfg.Server.Timezone)

	// Initialize database connection
	log.Info("Initializing database...")
	db, err := database.Init(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Info("Database initialization complete.")

	repo := repository.NewSQLiteRepository(db)

	// Build the in-memory embedding store from persistence
	store := facerec.NewStore(repo, clk, cfg.Attendance.MatchThreshold)
	if err := store.Load(); err != nil {
		log.Fatalf("Failed to load embedding store: %v", err)
	}

	// Decision engine
	engine := attendance.NewEngine(repo, clk, cfg.Attendance.DefaultDurationMinutes)

	// External face detector/encoder
	recognizerClient := recognizer.NewClient(cfg.Recognizer)
	if cfg.Recognizer.Enabled {
		if reachable, err := recognizerClient.Ping(context.Background()); err != nil {
			log.Warnf("Recognizer service not reachable at startup: %v", err)
		} else if reachable {
			log.Infof("Recognizer service reachable at %s", cfg.Recognizer.URL)
		}
	}

	// MQTT publisher (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient = mqtt.NewClient(cfg.MQTT)
		if err := mqttClient.Start(); err != nil {
			log.Warnf("Failed to start MQTT client: %v. Continuing without MQTT.", err)
			mqttClient = nil
		} else {
			defer mqttClient.Stop()
		}
	} else {
		log.Info("MQTT is disabled in config.")
	}

	// SSE hub for live attendance events
	hub := sse.NewHub()
	go hub.Run()

	// Frame processing pipeline
	frameProcessor := processor.NewFrameProcessor(store, engine, recognizerClient, hub, mqttClient, cfg.Server.FrameDir)
	defer frameProcessor.Pool().Shutdown()

	// Audit frame retention sweep
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	cleanupService := cleanup.NewCleanupService(cfg.Cleanup, cfg.Server.FrameDir)
	go cleanupService.Start(cleanupCtx)

	// HTTP router
	router := gin.Default()
	router.Use(cors.Default())

	apiHandler := handlers.NewAPIHandler(cfg, repo, store, engine, frameProcessor, recognizerClient, hub)
	apiHandler.RegisterRoutes(router.Group("/api"))

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Infof("Starting server on %s", serverAddr)
	if err := router.Run(serverAddr); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
