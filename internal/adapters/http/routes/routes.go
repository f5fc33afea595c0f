package routes

import (
	"facture-workflow/internal/adapters/http/handlers"
	"facture-workflow/internal/adapters/http/middleware"
	"facture-workflow/internal/config"
	"facture-workflow/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// Setup configures all routes for the application
func Setup(app *fiber.App, svc *services.Container, cfg *config.Config) {
	healthHandler := handlers.NewHealthHandler(cfg)
	authHandler := handlers.NewAuthHandler(svc.Auth, svc.Users, cfg)
	userHandler := handlers.NewUserHandler(svc.Users)
	invoiceHandler := handlers.NewInvoiceHandler(svc.Invoices)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications)
	dashboardHandler := handlers.NewDashboardHandler(svc.Stats)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	apiV1 := app.Group("/api/v1", middleware.NoCacheHeaders())
	apiV1.Get("/info", healthHandler.APIInfo)

	setupAuthRoutes(apiV1.Group("/auth"), authHandler, cfg)

	auth := middleware.AuthMiddleware(cfg)
	setupInvoiceRoutes(apiV1.Group("/factures", auth), invoiceHandler)
	setupUserRoutes(apiV1.Group("/users", auth), userHandler)
	setupNotificationRoutes(apiV1.Group("/notifications", auth), notificationHandler)
	apiV1.Get("/dashboard", auth, dashboardHandler.GetDashboard)

	admin := apiV1.Group("/admin", auth, middleware.AdminOnly())
	setupAdminRoutes(admin, userHandler, dashboardHandler)
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler, cfg *config.Config) {
	// Public routes
	router.Post("/login", middleware.AuthRateLimiter(), handler.Login)
	router.Post("/refresh", handler.RefreshToken)
	router.Post("/logout", handler.Logout)

	// Protected routes
	router.Get("/me", middleware.AuthMiddleware(cfg), handler.Me)
	router.Post("/logout-all", middleware.AuthMiddleware(cfg), handler.LogoutAll)
	router.Post("/change-password", middleware.AuthMiddleware(cfg), handler.ChangePassword)
}

// setupInvoiceRoutes configures the facture routes. Role and assignment
// checks happen in the workflow guards.
func setupInvoiceRoutes(router fiber.Router, handler *handlers.InvoiceHandler) {
	router.Get("/", handler.List)
	router.Post("/", handler.Create)
	router.Post("/batch-pay", middleware.TreasuryOnly(), handler.BatchPay)

	router.Get("/:id", handler.Get)
	router.Put("/:id", handler.Update)
	router.Delete("/:id", handler.Delete)
	router.Get("/:id/history", handler.History)
	router.Post("/:id/attachment", handler.UploadAttachment)
	router.Get("/:id/attachment", handler.DownloadAttachment)

	router.Post("/:id/submit", handler.Submit)
	router.Post("/:id/cancel", handler.Cancel())
	router.Post("/:id/approve-v1", handler.ApproveV1())
	router.Post("/:id/reject-v1", handler.RejectV1())
	router.Post("/:id/approve-v2", handler.ApproveV2())
	router.Post("/:id/reject-v2", handler.RejectV2())
	router.Post("/:id/pay", handler.Pay)
}

// setupUserRoutes configures the routes every authenticated user may call
func setupUserRoutes(router fiber.Router, handler *handlers.UserHandler) {
	router.Get("/reference/:kind", handler.ReferenceList)
	router.Get("/me/stats", handler.MyStats)
}

// setupNotificationRoutes configures in-app notification routes
func setupNotificationRoutes(router fiber.Router, handler *handlers.NotificationHandler) {
	router.Get("/", handler.List)
	router.Get("/unread-count", handler.UnreadCount)
	router.Post("/read-all", handler.MarkAllRead)
	router.Post("/:id/read", handler.MarkRead)
}

// setupAdminRoutes configures user administration and statistics (Admin only)
func setupAdminRoutes(router fiber.Router, users *handlers.UserHandler, dashboard *handlers.DashboardHandler) {
	router.Get("/users", users.ListUsers)
	router.Post("/users", users.CreateUser)
	router.Get("/users/:id", users.GetUser)
	router.Put("/users/:id", users.UpdateUser)
	router.Post("/users/:id/deactivate", users.DeactivateUser)
	router.Delete("/users/:id", users.DeleteUser)

	router.Get("/stats/suppliers", dashboard.TopSuppliers)
	router.Get("/stats/validators", dashboard.ValidatorPerformance)
}
