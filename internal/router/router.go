// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/collabhub/collab-backend/internal/config"
	"github.com/collabhub/collab-backend/internal/handlers"
	"github.com/collabhub/collab-backend/internal/middleware"
	"github.com/collabhub/collab-backend/internal/scheduler"
	"github.com/collabhub/collab-backend/internal/services"
	"github.com/collabhub/collab-backend/internal/utils"
)

// Initialize wires services, handlers and routes. The returned AutoRelease is
// started by the caller so its lifetime is tied to the process, not the
// router.
func Initialize(db *gorm.DB, cfg *config.Config) (*gin.Engine, *scheduler.AutoRelease) {
	// Initialize services
	notificationService := services.NewNotificationService(db, cfg)
	eventService := services.NewEventService(db, notificationService)
	storageService, _ := services.NewStorageService(cfg)

	agreementService := services.NewAgreementService(db, eventService)
	milestoneService := services.NewMilestoneService(db, eventService)
	paymentService := services.NewPaymentService(db, eventService, agreementService)

	var gateway services.PayoutGateway
	if cfg.Payout.StripeSecretKey != "" {
		gateway = services.NewStripeGateway(cfg.Payout.StripeSecretKey, cfg.Payout.Currency)
	}
	payoutService := services.NewPayoutService(db, eventService, gateway, cfg)

	autoRelease := scheduler.NewAutoRelease(paymentService, cfg)

	// Initialize handlers
	agreementHandler := handlers.NewAgreementHandler(agreementService)
	milestoneHandler := handlers.NewMilestoneHandler(milestoneService, storageService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, autoRelease)
	payoutHandler := handlers.NewPayoutHandler(payoutService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg))
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Agreement routes
		agreements := v1.Group("/agreements")
		agreements.Use(middleware.AuthRequired())
		{
			agreements.POST("", agreementHandler.CreateAgreement)
			agreements.GET("", agreementHandler.ListAgreements)
			agreements.GET("/:id", agreementHandler.GetAgreement)
			agreements.PUT("/:id", agreementHandler.UpdateAgreement)
			agreements.POST("/:id/send", agreementHandler.SendAgreement)
			agreements.POST("/:id/respond", agreementHandler.RespondToAgreement)
			agreements.GET("/:id/activity", agreementHandler.GetActivity)
			agreements.GET("/:id/events", agreementHandler.GetEvents)

			agreements.POST("/:id/milestones", milestoneHandler.CreateMilestone)
			agreements.GET("/:id/milestones", milestoneHandler.ListMilestones)

			agreements.GET("/:id/payments", paymentHandler.ListAgreementPayments)
		}

		// Milestone routes
		milestones := v1.Group("/milestones")
		milestones.Use(middleware.AuthRequired())
		{
			milestones.GET("/:id", milestoneHandler.GetMilestone)
			milestones.POST("/:id/submit", milestoneHandler.SubmitMilestone)
			milestones.POST("/:id/approve", milestoneHandler.ApproveMilestone)
			milestones.POST("/:id/request-revision", milestoneHandler.RequestRevision)
			milestones.DELETE("/:id", milestoneHandler.DeleteMilestone)
			milestones.POST("/:id/attachments", middleware.UploadRateLimit(), milestoneHandler.UploadAttachment)
			milestones.GET("/:id/attachment-url", milestoneHandler.GetAttachmentURL)
		}

		// Payment routes
		payments := v1.Group("/payments")
		payments.Use(middleware.AuthRequired())
		{
			payments.GET("/:id", paymentHandler.GetPayment)
			payments.POST("/:id/initiate", paymentHandler.InitiatePayment)
		}

		// Payout and balance routes
		payouts := v1.Group("/payouts")
		payouts.Use(middleware.AuthRequired())
		{
			payouts.POST("", payoutHandler.RequestPayout)
			payouts.GET("", payoutHandler.ListPayouts)
			payouts.GET("/:id", payoutHandler.GetPayout)
		}
		v1.GET("/balance", middleware.AuthRequired(), payoutHandler.GetBalance)

		// Notification routes
		notifications := v1.Group("/notifications")
		notifications.Use(middleware.AuthRequired())
		{
			notifications.GET("", notificationHandler.ListNotifications)
			notifications.POST("/:id/read", notificationHandler.MarkNotificationRead)
		}

		// Privileged system routes
		system := v1.Group("/system")
		system.Use(middleware.SystemRateLimit(), middleware.SystemRequired(cfg))
		{
			system.POST("/payments/:id/release", paymentHandler.ReleasePayment)
			system.POST("/payments/release-due", paymentHandler.TriggerAutoRelease)
			system.POST("/payouts/:id/advance", payoutHandler.AdvancePayout)
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads", "./uploads")
	}

	return r, autoRelease
}
