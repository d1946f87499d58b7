package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/joho/godotenv"

	"github.com/ashmitsharp/receivables-api/internal/config"
	"github.com/ashmitsharp/receivables-api/internal/database"
	"github.com/ashmitsharp/receivables-api/internal/handlers"
	"github.com/ashmitsharp/receivables-api/internal/logger"
	"github.com/ashmitsharp/receivables-api/internal/middleware"
	"github.com/ashmitsharp/receivables-api/internal/services"
	"github.com/ashmitsharp/receivables-api/internal/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLogger := logger.NewStdout(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Preference store for filters and theme
	store, err := database.Connect(ctx, cfg.PrefsDriver, cfg.PrefsDSN, appLogger)
	if err != nil {
		log.Fatalf("Failed to open preference store: %v", err)
	}
	defer store.Close()
	log.Printf("✓ Preference store ready (%s)", cfg.PrefsDriver)

	// Dashboard: parser, normalizer, filters, KPIs
	dashboard, err := services.NewDashboard(services.DashboardOptions{
		Store:          store,
		FilterDebounce: cfg.FilterDebounce,
		CacheTTL:       cfg.CacheTTL,
		Logger:         appLogger,
	})
	if err != nil {
		log.Fatalf("Failed to initialize dashboard: %v", err)
	}
	defer dashboard.Close()
	log.Println("✓ Dashboard service initialized successfully")

	themeService := services.NewThemeService(store, appLogger)
	validator := services.NewFileValidator(cfg.MaxUploadSizeBytes)

	// Storage service for S3 presigned uploads (optional)
	var storage handlers.StorageService
	if cfg.StorageEnabled() {
		s3Storage, err := services.NewStorageService(ctx, cfg.S3Bucket, cfg.S3Region, cfg.AWSEndpoint, appLogger)
		if err != nil {
			log.Fatalf("Failed to initialize storage service: %v", err)
		}
		storage = s3Storage
		log.Println("✓ Storage service initialized successfully")
	} else {
		log.Println("Storage not configured, presigned uploads disabled")
	}

	if cfg.ExampleWorkbook != "" {
		loadExampleWorkbook(ctx, dashboard, validator, cfg.ExampleWorkbook)
	}

	// Initialize handlers
	uploadHandler := handlers.NewUploadHandler(dashboard, validator, storage, appLogger)
	dashboardHandler := handlers.NewDashboardHandler(dashboard)
	filtersHandler := handlers.NewFiltersHandler(dashboard)
	preferencesHandler := handlers.NewPreferencesHandler(themeService)

	app := fiber.New(fiber.Config{
		AppName:      "receivables API v1.0",
		ErrorHandler: utils.ErrorHandler,
		BodyLimit:    int(cfg.MaxUploadSizeBytes) + 64*1024, // multipart overhead
	})

	// Apply global middleware
	app.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health check endpoint
	app.Get("/health", func(c fiber.Ctx) error {
		_, err := dashboard.Dataset()
		return c.JSON(fiber.Map{
			"status":         "ok",
			"service":        "receivables-api",
			"dataset_loaded": err == nil,
		})
	})

	// API v1 routes
	v1 := app.Group("/v1")

	v1.Get("/ping", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "pong"})
	})

	// Upload routes
	upload := v1.Group("/upload")
	if cfg.EnableRateLimiting {
		upload.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, appLogger))
		log.Printf("✓ Upload rate limiting enabled (%.2f req/s, burst %d)", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	upload.Post("", uploadHandler.Upload)
	upload.Get("/presigned-url", uploadHandler.GetPresignedURL)
	upload.Post("/process", uploadHandler.ProcessUpload)

	// Dataset and dashboard routes
	v1.Get("/dataset", dashboardHandler.GetDataset)
	v1.Get("/records", dashboardHandler.GetRecords)
	v1.Get("/kpis", dashboardHandler.GetKPIs)
	v1.Get("/kpis/:id", dashboardHandler.GetKPI)
	v1.Get("/kpi-definitions", dashboardHandler.GetKPIDefinitions)
	v1.Get("/charts", dashboardHandler.GetCharts)
	v1.Get("/dashboard", dashboardHandler.GetDashboard)
	v1.Get("/export/kpis.csv", dashboardHandler.ExportKPIsCSV)
	v1.Get("/export/report.xlsx", dashboardHandler.ExportReport)

	// Filter routes
	v1.Get("/filters", filtersHandler.GetFilters)
	v1.Put("/filters", filtersHandler.UpdateFilters)
	v1.Delete("/filters", filtersHandler.ResetFilters)
	v1.Post("/filters/apply", filtersHandler.ApplyFilters)
	v1.Get("/filters/options", filtersHandler.GetOptions)

	// Preference routes
	v1.Get("/preferences/theme", preferencesHandler.GetTheme)
	v1.Put("/preferences/theme", preferencesHandler.SetTheme)
	v1.Post("/preferences/theme/toggle", preferencesHandler.ToggleTheme)

	log.Println("✓ All routes configured successfully")

	addr := fmt.Sprintf(":%d", cfg.Port)
	go func() {
		if err := app.Listen(addr); err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	log.Println("")
	log.Printf("🚀 receivables API is running on %s", addr)
	log.Printf("   Health check: http://localhost%s/health", addr)
	log.Printf("   API base: http://localhost%s/v1", addr)

	<-ctx.Done()
	log.Println("Shutting down...")

	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}

// loadExampleWorkbook installs a workbook from disk at startup. Failures are
// logged and the server starts empty.
func loadExampleWorkbook(ctx context.Context, dashboard *services.Dashboard, validator *services.FileValidator, path string) {
	started := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Warning: example workbook not loaded: %v", err)
		return
	}
	name := filepath.Base(path)
	if result := validator.ValidateBytes(data, name, services.MimeOctetStream); !result.Valid {
		log.Printf("Warning: example workbook rejected: %v", result.Errors)
		return
	}

	dataset, err := dashboard.LoadBytes(ctx, data, name)
	if err != nil {
		log.Printf("Warning: example workbook not loaded: %v", err)
		return
	}
	log.Printf("✓ Example workbook loaded: %d records from %s (%s)", len(dataset.Records), path, time.Since(started).Round(time.Millisecond))
}
