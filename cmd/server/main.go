package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tripscore/internal/config"
	"tripscore/internal/handlers"
	"tripscore/internal/middleware"
	"tripscore/internal/repositories/mongodb"
	"tripscore/internal/scheduler"
	"tripscore/internal/services"
	"tripscore/internal/utils"
	"tripscore/pkg/cache"
	"tripscore/pkg/database"
	"tripscore/pkg/logger"
	"tripscore/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.App.LogLevel),
		Format:     cfg.App.LogFormat,
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Connect to MongoDB
	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		appLogger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Close()

	if err := database.NewMigrator(db.Database).Up(); err != nil {
		appLogger.Fatalf("Failed to run migrations: %v", err)
	}

	// Connect to Redis
	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		appLogger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	// Wire services
	cacheService := services.NewCacheService(redisCache, appLogger, cfg.Popularity.PopularCacheTTL)
	tripRepo := mongodb.NewTripRepository(db.Database, cacheService)
	bookingRepo := mongodb.NewBookingRepository(db.Database)
	popularityService := services.NewPopularityService(tripRepo, bookingRepo, cacheService, appLogger, cfg.Popularity.BatchSize)

	// Initialize handlers
	popularityHandler := handlers.NewPopularityHandler(popularityService, cfg.Popularity.DefaultListLimit, cfg.Popularity.MaxListLimit)
	webhookHandler := handlers.NewWebhookHandler(popularityService)

	// Initialize Gin router
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Global middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))
	router.Use(middleware.RequestIDMiddleware())

	// API routes
	v1 := router.Group("/api/v1")
	{
		routes.SetupPopularityRoutes(v1, popularityHandler, cfg.Security.JWTSecret)
		routes.SetupWebhookRoutes(v1, webhookHandler)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		mongoStatus := "up"
		if err := db.Ping(); err != nil {
			mongoStatus = "down"
			status = http.StatusServiceUnavailable
		}
		redisStatus := "up"
		if err := cacheService.Ping(c.Request.Context()); err != nil {
			redisStatus = "down"
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"status":  utils.StatusSuccess,
			"version": cfg.App.Version,
			"mongodb": mongoStatus,
			"redis":   redisStatus,
		})
	})

	// Start the reconciliation scheduler
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	popularityScheduler := scheduler.New(popularityService, appLogger, cfg.Popularity.ReconcileInterval, cfg.Popularity.FailureAlertRatio)
	go popularityScheduler.Run(schedulerCtx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		appLogger.Infof("Starting server on port %d", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorf("Server shutdown failed: %v", err)
	}

	stopScheduler()

	// Let in-flight webhook recomputations finish before connections close
	popularityService.Drain()

	appLogger.Info("Shutdown complete")
}
