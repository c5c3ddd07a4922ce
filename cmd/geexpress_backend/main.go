package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/adapters/lock"
	"github.com/SscSPs/geexpress_backend/internal/adapters/storage"
	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/core/services"
	"github.com/SscSPs/geexpress_backend/internal/handlers"
	"github.com/SscSPs/geexpress_backend/internal/middleware"
	"github.com/SscSPs/geexpress_backend/internal/platform/config"
	"github.com/SscSPs/geexpress_backend/internal/repositories/database/pgsql"
	"github.com/SscSPs/geexpress_backend/internal/utils"
	"github.com/SscSPs/geexpress_backend/pkg/database"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// @title GE Express Backend API
// @version 1.0
// @description Last-mile delivery, cash reconciliation and courier payroll.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @security BearerAuth
func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()

	dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.ClosePgxPool(dbPool)
	logger.Info("Database connection pool established.")

	logger.Info("Running database migrations...")
	changed, err := database.Migrate(cfg.DatabaseURL, cfg.MigrationsPath, database.MigrateUp)
	if err != nil {
		logger.Error("Failed to apply migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if changed {
		logger.Info("Database migrations applied successfully.")
	} else {
		logger.Info("No new migrations to apply.")
	}

	var blob portssvc.BlobStorage
	if cfg.BlobStorageEnabled() {
		s3Storage, err := storage.NewS3BlobStorage(ctx, storage.Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
			UsePathStyle:  cfg.S3UsePathStyle,
		})
		if err != nil {
			logger.Error("Failed to initialize blob storage", slog.String("error", err.Error()))
			os.Exit(1)
		}
		blob = s3Storage
		logger.Info("Blob storage ready", slog.String("bucket", cfg.S3Bucket))
	}

	var locker portssvc.SettlementLocker
	if cfg.RedisURL != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		redisClient, err := lock.NewRedisClient(pingCtx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Error("Failed to connect to redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		locker = lock.NewRedisSettlementLock(redisClient, cfg.SettlementLockTTL)
		logger.Info("Settlement lock backed by redis")
	}

	posthogClient := utils.InitializePosthogClient(cfg.PostHogAPIKey, cfg.PostHogHost, logger)
	defer posthogClient.Close()

	repos := pgsql.NewRepositoryProvider(dbPool)
	serviceContainer := services.NewServiceContainer(cfg, repos, blob, locker)

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery, CORS, analytics)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: !containsWildcard(cfg.CORSAllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.PosthogMiddleware(posthogClient))

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers.RegisterRoutes(r, cfg, serviceContainer)

	logger.Info("Server starting", slog.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("Server failed to run", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// containsWildcard reports whether origins allows every origin. Credentials
// cannot be combined with "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
