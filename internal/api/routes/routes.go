package routes

import (
	"coopfin/internal/api/handlers"
	"coopfin/internal/api/middleware"
	"coopfin/internal/config"
	"coopfin/internal/models"
	"coopfin/internal/ratelimit"
	"coopfin/internal/services"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config, recorder *services.Recorder) {
	// Initialize services
	tokens := services.NewTokenService(cfg)

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.Security.RateLimit.Enabled {
		limiter = ratelimit.NewKeyedLimiter(cfg.Security.RateLimit.MaxAttempts, cfg.RateLimitWindow())
	}

	authService := services.NewAuthService(cfg, tokens, limiter)
	mailer := services.NewMailer(cfg)
	lifecycleService := services.NewLifecycleService(cfg, authService, mailer)
	branchService := services.NewBranchService(cfg, authService)
	auditService := services.NewAuditService()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, lifecycleService, cfg)
	lifecycleHandler := handlers.NewLifecycleHandler(lifecycleService, cfg)
	userHandler := handlers.NewUserHandler(branchService, lifecycleService, cfg)
	branchHandler := handlers.NewBranchHandler(branchService)
	auditHandler := handlers.NewAuditHandler(auditService)

	// Middleware
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.ErrorHandler())

	// Public routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"message": "Cooperative portal API is running",
			})
		})

		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/login",
				middleware.Audit(recorder, "login", "auth"), authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/forgot-password",
				middleware.Audit(recorder, "request_password_reset", "auth"), lifecycleHandler.ForgotPassword)
			auth.POST("/reset-password",
				middleware.Audit(recorder, "change_password_reset", "auth"), lifecycleHandler.ResetPassword)
			auth.POST("/send-reactivation-code",
				middleware.Audit(recorder, "send_reactivation_code", "reactivation"), lifecycleHandler.SendReactivationCode)
			auth.POST("/verify-reactivation-code",
				middleware.Audit(recorder, "request_reactivation", "reactivation"), lifecycleHandler.VerifyReactivationCode)
		}
	}

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.POST("/auth/logout",
			middleware.Audit(recorder, "logout", "auth"), authHandler.Logout)
		protected.GET("/auth/me", authHandler.GetMe)
		protected.PUT("/auth/change-password",
			middleware.Audit(recorder, "change_password", "auth"), authHandler.ChangePassword)
		protected.PUT("/auth/update-profile",
			middleware.Audit(recorder, "update_profile", "users"), authHandler.UpdateProfile)

		// Branch-scoped member listing
		protected.GET("/branches/:branch_id/members",
			middleware.RequirePermission("members:view"),
			middleware.RequireBranchAccess(),
			branchHandler.ListBranchMembers)

		// Administrative routes
		admin := protected.Group("")
		admin.Use(middleware.RequireRole(models.RoleHeadAdministrator))
		{
			admin.GET("/reactivation-requests", lifecycleHandler.ListReactivationRequests)
			admin.PUT("/reactivation-requests/:id",
				middleware.Audit(recorder, "review_reactivation_request", "reactivation"),
				lifecycleHandler.ReviewReactivationRequest)

			admin.GET("/audit-logs", auditHandler.ListAuditLogs)
			admin.GET("/audit-logs/export/csv",
				middleware.Audit(recorder, "download_audit_logs", "audit_logs"),
				auditHandler.ExportCSV)

			admin.GET("/users", userHandler.ListUsers)
			admin.POST("/users",
				middleware.Audit(recorder, "create_user", "users"), userHandler.RegisterUser)
			admin.PUT("/users/:id/deactivate",
				middleware.Audit(recorder, "deactivate_user", "users"), userHandler.DeactivateUser)

			admin.GET("/branches", branchHandler.ListBranches)
			admin.POST("/branches",
				middleware.Audit(recorder, "create_branch", "branches"), branchHandler.CreateBranch)
		}
	}
}
