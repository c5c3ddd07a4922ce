package handlers

import (
	"log/slog"

	"github.com/SscSPs/geexpress_backend/cmd/docs"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/middleware"
	"github.com/SscSPs/geexpress_backend/internal/platform/config"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Route-level role guards. Services enforce the same rules.
var (
	adminOnly   = middleware.RequireRole(domain.RoleAdmin)
	courierOnly = middleware.RequireRole(domain.RoleDeliveryMan)
)

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
) {
	if err := RegisterValidators(); err != nil {
		slog.Error("Failed to register binding validators", slog.String("error", err.Error()))
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})
	r.GET("/", getHome)

	// Public routes
	registerAuthRoutes(r, cfg, services.Auth)
	registerPublicTrackingRoutes(r, services.Tracking,
		middleware.RateLimit(newIPLimiter(cfg.PublicTrackingRate, "30-M")))

	setupAPIV1Routes(r, cfg, services)

	setupSwaggerRoutes(r, cfg)
}

// setupAPIV1Routes configures the authenticated /api/v1 group
func setupAPIV1Routes(
	r *gin.Engine,
	cfg *config.Config,
	service *portssvc.ServiceContainer,
) {
	v1 := r.Group("/api/v1", middleware.AuthMiddleware(cfg.JWTSecret))

	registerUserRoutes(v1, service.User)
	registerDeliveryRoutes(v1, service.Delivery)
	registerTrackingRoutes(v1, service.Tracking)
	registerReconciliationRoutes(v1, service.Reconciliation)
	registerDebtRoutes(v1, service.Debt)
	registerPayrollRoutes(v1, service.Payroll)
	registerNotificationRoutes(v1, service.Notification)
}

// newIPLimiter builds an in-memory per-IP limiter from a formatted rate such as "30-M".
func newIPLimiter(formatted, fallback string) *limiter.Limiter {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		slog.Warn("Invalid rate limit, using default", slog.String("rate", formatted), slog.String("default", fallback))
		rate, _ = limiter.NewRateFromFormatted(fallback)
	}
	return limiter.New(memory.NewStore(), rate)
}

// setupSwaggerRoutes configures the swagger documentation routes
func setupSwaggerRoutes(r *gin.Engine, cfg *config.Config) {
	if cfg.IsProduction {
		//no swagger in prod
		return
	}
	docs.SwaggerInfo.BasePath = "/api/v1"
	swagger := r.Group("/swagger")
	swagger.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
