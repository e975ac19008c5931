// internal/router/router.go
package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/bigdiamond/atelier-backend/internal/clock"
	"github.com/bigdiamond/atelier-backend/internal/config"
	"github.com/bigdiamond/atelier-backend/internal/events"
	"github.com/bigdiamond/atelier-backend/internal/handlers"
	"github.com/bigdiamond/atelier-backend/internal/middleware"
	"github.com/bigdiamond/atelier-backend/internal/services"
	"github.com/bigdiamond/atelier-backend/internal/transient"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

// Options override collaborators, mainly for tests. Zero values select the
// production defaults.
type Options struct {
	Store   transient.Store
	Mailer  services.Mailer
	Storage services.FileStorage
	Clock   clock.Clock
	Bus     *events.Bus
}

// Initialize wires services and routes. ctx bounds background work such as
// the HTTP limiter janitor.
func Initialize(ctx context.Context, db *gorm.DB, cfg *config.Config, opts Options) (*gin.Engine, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus()
	}
	store := opts.Store
	if store == nil {
		if cfg.Transient.Driver == "memory" {
			store = transient.NewMemoryStore(clk)
		} else {
			store = transient.NewGormStore(db, clk)
		}
	}
	mailer := opts.Mailer
	if mailer == nil {
		mailer = services.NewMailer(cfg.Email)
	}
	storage := opts.Storage
	serveUploads := false
	if storage == nil {
		s, err := services.NewStorageService(cfg.AWS, cfg.Server.PublicURL)
		if err != nil {
			return nil, err
		}
		storage = s
		serveUploads = cfg.AWS.AccessKeyID == ""
	}

	// Initialize services
	jwtManager := utils.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Issuer, time.Duration(cfg.JWT.AccessTokenTTL)*time.Hour)
	authService := services.NewAuthService(cfg.Admin, jwtManager, time.Duration(cfg.JWT.CustomerTokenTTL)*time.Hour)
	securityService := services.NewSecurityService(db, bus, cfg.Webhook.SecurityAlerts, clk)
	limiter := services.NewFixedWindowLimiter(store, cfg.Webhook.RateLimit, time.Duration(cfg.Webhook.RateWindow)*time.Second)
	verifier := services.NewWebhookVerifier(cfg.Webhook, limiter, securityService, clk)
	sanitizer := services.NewConfigSanitizer(clk)
	configService := services.NewConfigurationService(db, store, time.Duration(cfg.Rings.ConfigTTL)*time.Second, clk)
	mapper := services.NewProductMapper(cfg.Rings.TemplateProductID, cfg.Rings.AllowVirtualProduct)
	ringCartService := services.NewRingCartService(configService, mapper, services.NewGormCartBridge(db))
	checkoutService := services.NewCheckoutService(db, configService, clk)
	projectService := services.NewProjectService(db, bus, clk)

	notificationService := services.NewNotificationService(mailer, cfg.Admin.Email, cfg.Frontend.ProjectURL)
	notificationService.Subscribe(bus)

	// Initialize handlers
	ringHandler := handlers.NewRingConfiguratorHandler(verifier, sanitizer, configService, ringCartService, checkoutService, bus, cfg)
	designHandler := handlers.NewCustomDesignHandler(projectService, authService, storage)
	authHandler := handlers.NewAuthHandler(authService)
	adminHandler := handlers.NewAdminHandler(projectService, configService, securityService)

	publicLimiter := middleware.NewRateLimiter(rate.Limit(cfg.Server.PublicRateLimit), cfg.Server.PublicRateBurst)
	go publicLimiter.Run(ctx)

	// Initialize Gin router
	r := gin.New()
	// Client IPs feed the allowlist and limiters, so forwarded headers only
	// count when they come from a configured proxy.
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORS.AllowOrigins))
	r.Use(middleware.I18nMiddleware())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		status, dbStatus := http.StatusOK, "ok"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status, dbStatus = http.StatusServiceUnavailable, "unavailable"
		}
		c.JSON(status, gin.H{
			"status":   http.StatusText(status),
			"database": dbStatus,
		})
	})

	if serveUploads {
		r.Static("/uploads", cfg.AWS.UploadsDir)
	}

	v1 := r.Group("/api/v1")
	{
		rings := v1.Group("/rings")
		{
			// The webhook has its own fixed-window limiter.
			rings.POST("/webhook", ringHandler.Webhook)

			public := rings.Group("")
			public.Use(publicLimiter.Middleware())
			{
				public.GET("/summary/:config_id", ringHandler.Summary)
				public.POST("/add-to-cart", ringHandler.AddToCart)
				public.GET("/cart", ringHandler.Cart)
				public.POST("/checkout", ringHandler.Checkout)
				public.GET("/configurator-url", ringHandler.ConfiguratorURL)
			}
		}

		design := v1.Group("/custom-design")
		design.Use(publicLimiter.Middleware())
		{
			design.POST("/submit", designHandler.Submit)
			design.GET("/:id", middleware.OptionalAuth(jwtManager), designHandler.GetProject)
			design.POST("/:id/comments", middleware.AuthRequired(jwtManager), designHandler.AddComment)
			design.POST("/:id/attachments", middleware.AuthRequired(jwtManager), designHandler.UploadAttachment)
		}

		adminAuth := v1.Group("/admin/auth")
		adminAuth.Use(publicLimiter.Middleware())
		{
			adminAuth.POST("/token", authHandler.IssueToken)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(jwtManager), middleware.AdminRequired(), middleware.AuditLogMiddleware(db))
		{
			adminDesign := admin.Group("/custom-design")
			{
				adminDesign.GET("", adminHandler.ListProjects)
				adminDesign.GET("/:id", adminHandler.GetProject)
				adminDesign.GET("/:id/transitions", adminHandler.GetTransitions)
				adminDesign.PUT("/:id/status", adminHandler.UpdateStatus)
				adminDesign.PUT("/:id/force-status", adminHandler.ForceStatus)
			}

			admin.GET("/ring-configurations", adminHandler.ListRingConfigurations)
			admin.GET("/ring-configurations/:config_id/history", adminHandler.RingConfigurationHistory)
			admin.GET("/customers/ring-configurations", adminHandler.CustomerRingConfigurations)
			admin.GET("/security-events", adminHandler.ListSecurityEvents)
		}
	}

	return r, nil
}
