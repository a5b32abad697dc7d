package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/api/handlers"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/api/middleware"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/config"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/logger"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/pdf"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/realtime"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/services"
)

// Dependencies are the external transports. Zero values fall back to the
// SMTP mailer, no SMS, HTML-only documents and a local hub.
type Dependencies struct {
	Email    services.EmailSender
	SMS      services.SMSSender
	PDF      pdf.Engine
	Redis    *redis.Client
	Hub      *realtime.Hub
	Gatherer prometheus.Gatherer
}

// App exposes the services the process needs after routing is set up.
type App struct {
	Auth          *services.AuthService
	Notifications *services.NotificationService
	Documents     *services.DocumentService
	Hub           *realtime.Hub
}

// Register wires up API routes and performs automatic migrations.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config, deps Dependencies) (*App, error) {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	hub := deps.Hub
	if hub == nil {
		hub = realtime.NewHub(deps.Redis)
	}

	settingsService := services.NewSettingsService(db)
	mailService := services.NewMailService(db)
	email := deps.Email
	if email == nil {
		email = mailService
	}

	authService := services.NewAuthService(db, cfg)
	notificationService := services.NewNotificationService(db, email, deps.SMS, hub)
	if err := notificationService.InitDefaults(); err != nil {
		return nil, fmt.Errorf("seed notification defaults: %w", err)
	}
	logger.Log().Info("notification defaults ensured")

	templateService := services.NewTemplateService(db)
	quotationService := services.NewQuotationService(db, settingsService)
	documentService := services.NewDocumentService(quotationService, templateService, pdf.NewGenerator(deps.PDF), cfg.QuoteValidityDays)
	documentService.PDFTimeout = cfg.PDF.Timeout

	router.GET("/api/health", handlers.HealthHandler(db))
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	authMiddleware := middleware.AuthMiddleware(authService)
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	managers := middleware.RequireRole(models.RoleAdmin, models.RoleManager)

	wsHandler := handlers.NewWebSocketHandler(hub, authService, cfg.AllowedOrigins)
	router.GET("/ws", wsHandler.Serve)

	api := router.Group("/api")

	authHandler := handlers.NewAuthHandler(authService, cfg.Environment != "development", cfg.TokenTTL)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("/")
	protected.Use(authMiddleware)
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)
		protected.PUT("/auth/me", authHandler.UpdateMe)
		protected.POST("/auth/change-password", authHandler.ChangePassword)
		protected.POST("/auth/register", adminOnly, authHandler.Register)

		notificationHandler := handlers.NewNotificationHandler(notificationService)
		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.PATCH("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.POST("/notifications/mark-all-read", notificationHandler.MarkAllAsRead)
		protected.POST("/notifications/send", managers, notificationHandler.Send)
		protected.GET("/notifications/preferences", notificationHandler.GetPreferences)
		protected.PUT("/notifications/preferences", notificationHandler.UpdatePreferences)
		protected.GET("/notifications/analytics", managers, notificationHandler.Analytics)

		adminHandler := handlers.NewNotificationAdminHandler(notificationService)
		rules := protected.Group("/notifications/rules", managers)
		rules.GET("", adminHandler.ListRules)
		rules.POST("", adminHandler.CreateRule)
		rules.PUT("/:id", adminHandler.UpdateRule)
		rules.DELETE("/:id", adminHandler.DeleteRule)

		notificationTemplates := protected.Group("/notifications/templates", managers)
		notificationTemplates.GET("", adminHandler.ListTemplates)
		notificationTemplates.POST("", adminHandler.CreateTemplate)
		notificationTemplates.PUT("/:id", adminHandler.UpdateTemplate)
		notificationTemplates.DELETE("/:id", adminHandler.DeleteTemplate)

		providerHandler := handlers.NewNotificationProviderHandler(notificationService)
		providers := protected.Group("/notifications/providers", adminOnly)
		providers.GET("", providerHandler.List)
		providers.POST("", providerHandler.Create)
		providers.PUT("/:id", providerHandler.Update)
		providers.DELETE("/:id", providerHandler.Delete)
		providers.POST("/test", providerHandler.Test)

		templateHandler := handlers.NewTemplateHandler(templateService, documentService)
		protected.GET("/templates", templateHandler.List)
		protected.GET("/templates/:id", templateHandler.Get)
		protected.POST("/templates/:id/preview", templateHandler.Preview)
		protected.POST("/templates", managers, templateHandler.Create)
		protected.PUT("/templates/:id", managers, templateHandler.Update)
		protected.DELETE("/templates/:id", managers, templateHandler.Delete)
		protected.POST("/templates/:id/default", managers, templateHandler.SetDefault)
		protected.POST("/templates/:id/duplicate", managers, templateHandler.Duplicate)

		quotationHandler := handlers.NewQuotationHandler(documentService)
		protected.GET("/quotations/:id/print", quotationHandler.Print)

		settingsHandler := handlers.NewSettingsHandler(settingsService, mailService)
		settings := protected.Group("/settings", adminOnly)
		settings.GET("", settingsHandler.GetSettings)
		settings.POST("", settingsHandler.UpdateSetting)
		settings.GET("/smtp", settingsHandler.GetSMTPConfig)
		settings.PUT("/smtp", settingsHandler.UpdateSMTPConfig)
		settings.POST("/smtp/test", settingsHandler.TestSMTPConfig)
	}

	return &App{
		Auth:          authService,
		Notifications: notificationService,
		Documents:     documentService,
		Hub:           hub,
	}, nil
}
