package services

import (
	"facture-workflow/internal/adapters/persistence/repositories"
	"facture-workflow/internal/config"
	"facture-workflow/internal/pkg/cache"

	"gorm.io/gorm"
)

// Container holds the wired services of one process
type Container struct {
	Auth          *AuthService
	Users         *UserService
	Invoices      *InvoiceService
	Notifications *NotificationService
	Stats         *StatsService
	Reminders     *ReminderService
}

// NewContainer builds the repositories and services over db. A nil cache
// disables read caching.
func NewContainer(db *gorm.DB, c *cache.Cache, cfg *config.Config) *Container {
	userRepo := repositories.NewUserRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)
	invoiceRepo := repositories.NewInvoiceRepository(db)
	traceRepo := repositories.NewTraceRepository(db)
	notifRepo := repositories.NewNotificationRepository(db)

	threshold := cfg.Workflow.UrgencyThresholdDays
	notifications := NewNotificationService(notifRepo, c, threshold)
	files := NewAttachmentStore(cfg.Upload.Dir, cfg.Upload.MaxBytes)

	return &Container{
		Auth:          NewAuthService(userRepo, refreshTokenRepo, cfg),
		Users:         NewUserService(userRepo, invoiceRepo, traceRepo, c),
		Invoices:      NewInvoiceService(invoiceRepo, userRepo, traceRepo, notifications, files, c, cfg.Workflow),
		Notifications: notifications,
		Stats:         NewStatsService(invoiceRepo, traceRepo, notifRepo, c, threshold),
		Reminders:     NewReminderService(invoiceRepo, userRepo, notifications, threshold),
	}
}
