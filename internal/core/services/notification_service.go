package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"facture-workflow/internal/adapters/persistence/models"
	"facture-workflow/internal/adapters/persistence/repositories"
	"facture-workflow/internal/core/domain"
	"facture-workflow/internal/pkg/cache"
	"facture-workflow/internal/pkg/logger"
	"facture-workflow/internal/pkg/money"
	"facture-workflow/internal/pkg/pagination"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotificationNotFound is returned when the notification does not exist
// or belongs to someone else
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService persists in-app notifications and builds the messages
// sent at each workflow step
type NotificationService struct {
	repo      repositories.NotificationRepository
	cache     *cache.Cache
	threshold int
	log       *zap.Logger
	now       func() time.Time
}

// NewNotificationService creates a new notification service
func NewNotificationService(repo repositories.NotificationRepository, c *cache.Cache, urgencyThreshold int) *NotificationService {
	return &NotificationService{
		repo:      repo,
		cache:     c,
		threshold: urgencyThreshold,
		log:       logger.Named("notifications"),
		now:       time.Now,
	}
}

// NotificationList is a page of notifications
type NotificationList struct {
	Items  []*models.Notification `json:"items"`
	Unread int64                  `json:"unread"`
	Meta   *pagination.Meta       `json:"meta"`
}

// List returns a page of the user's notifications
func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, params *pagination.Params) (*NotificationList, error) {
	items, total, err := s.repo.ListByRecipient(ctx, userID, unreadOnly, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &NotificationList{Items: items, Unread: unread, Meta: pagination.GetMeta(params, total)}, nil
}

// CountUnread counts the user's unread notifications
func (s *NotificationService) CountUnread(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead marks one of the user's notifications as read
func (s *NotificationService) MarkRead(ctx context.Context, id, userID uint) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	s.invalidate(ctx)
	return nil
}

// MarkAllRead marks every notification of the user as read
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx)
	return n, nil
}

// ============================================================
// Workflow events
// ============================================================

// InvoiceSubmitted asks the first-level validator to review inv
func (s *NotificationService) InvoiceSubmitted(ctx context.Context, inv *models.Invoice) {
	if inv.Validator1ID == nil {
		return
	}
	s.send(ctx, *inv.Validator1ID, inv, models.NotifValidationV1, false,
		"Facture à valider (niveau 1)",
		fmt.Sprintf("La facture %s de %s d'un montant de %s attend votre validation.",
			inv.Number, inv.SupplierName, money.Format(inv.AmountTTC)))
}

// InvoiceApprovedV1 asks the second-level validator to review inv
func (s *NotificationService) InvoiceApprovedV1(ctx context.Context, inv *models.Invoice) {
	if inv.Validator2ID == nil {
		return
	}
	s.send(ctx, *inv.Validator2ID, inv, models.NotifValidationV2, false,
		"Facture à valider (niveau 2)",
		fmt.Sprintf("La facture %s de %s d'un montant de %s a été validée au niveau 1 et attend votre validation.",
			inv.Number, inv.SupplierName, money.Format(inv.AmountTTC)))
}

// InvoiceApprovedV2 tells the treasurer that inv is ready for payment. It is
// urgent when the due date is within the urgency threshold.
func (s *NotificationService) InvoiceApprovedV2(ctx context.Context, inv *models.Invoice) {
	if inv.TreasurerID == nil {
		return
	}
	urgency := domain.UrgencyOf(inv.DueDate, s.now(), s.threshold)
	urgent := urgency == domain.UrgencyUrgent || urgency == domain.UrgencyOverdue

	msg := fmt.Sprintf("La facture %s de %s d'un montant de %s est prête pour paiement.",
		inv.Number, inv.SupplierName, money.Format(inv.AmountTTC))
	if inv.DueDate != nil {
		msg += " Échéance : " + inv.DueDate.Format("02/01/2006") + "."
	}
	s.send(ctx, *inv.TreasurerID, inv, models.NotifTreasury, urgent, "Facture à payer", msg)
}

// InvoiceRejected tells the creator why inv was rejected
func (s *NotificationService) InvoiceRejected(ctx context.Context, inv *models.Invoice, level, reason string) {
	s.send(ctx, inv.CreatorID, inv, models.NotifRejection, true,
		"Facture rejetée",
		fmt.Sprintf("La facture %s de %s a été rejetée au niveau %s : %s",
			inv.Number, inv.SupplierName, level, reason))
}

// InvoicePaid tells the creator and both validators that inv was paid
func (s *NotificationService) InvoicePaid(ctx context.Context, inv *models.Invoice) {
	msg := fmt.Sprintf("La facture %s de %s d'un montant de %s a été payée. Référence : %s.",
		inv.Number, inv.SupplierName, money.Format(inv.AmountTTC), inv.PaymentRef)

	seen := map[uint]bool{}
	for _, id := range []*uint{&inv.CreatorID, inv.Validator1ID, inv.Validator2ID} {
		if id == nil || *id == 0 || seen[*id] {
			continue
		}
		seen[*id] = true
		s.send(ctx, *id, inv, models.NotifPayment, false, "Facture payée", msg)
	}
}

// DueSoon reminds recipient that inv is close to or past its due date.
// It reports whether a reminder was sent; at most one is sent per
// recipient and invoice per calendar day.
func (s *NotificationService) DueSoon(ctx context.Context, recipientID uint, inv *models.Invoice) (bool, error) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	sent, err := s.repo.ExistsSince(ctx, recipientID, inv.ID, models.NotifDueSoon, dayStart)
	if err != nil {
		return false, err
	}
	if sent {
		return false, nil
	}

	days, ok := domain.DaysUntilDue(inv.DueDate, now)
	if !ok {
		return false, nil
	}

	title := "Échéance proche"
	var msg string
	switch {
	case days < 0:
		title = "Échéance dépassée"
		msg = fmt.Sprintf("La facture %s de %s (%s) est en retard de %s.",
			inv.Number, inv.SupplierName, money.Format(inv.AmountTTC), plural(-days, "jour"))
	case days == 0:
		msg = fmt.Sprintf("La facture %s de %s (%s) arrive à échéance aujourd'hui.",
			inv.Number, inv.SupplierName, money.Format(inv.AmountTTC))
	default:
		msg = fmt.Sprintf("La facture %s de %s (%s) arrive à échéance dans %s.",
			inv.Number, inv.SupplierName, money.Format(inv.AmountTTC), plural(days, "jour"))
	}

	n := &models.Notification{
		RecipientID: recipientID,
		InvoiceID:   &inv.ID,
		Type:        models.NotifDueSoon,
		Title:       title,
		Message:     msg,
		Urgent:      true,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return false, err
	}
	s.invalidate(ctx)
	return true, nil
}

// send persists a notification. Failures are logged only.
func (s *NotificationService) send(ctx context.Context, recipientID uint, inv *models.Invoice, kind string, urgent bool, title, msg string) {
	n := &models.Notification{
		RecipientID: recipientID,
		InvoiceID:   &inv.ID,
		Type:        kind,
		Title:       title,
		Message:     msg,
		Urgent:      urgent,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.log.Error("could not store notification",
			zap.String("type", kind),
			zap.Uint("recipient_id", recipientID),
			zap.Uint("invoice_id", inv.ID),
			zap.Error(err),
		)
		return
	}
	s.invalidate(ctx)
}

// invalidate drops cached dashboards so unread counts follow inserts and reads
func (s *NotificationService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("cache invalidation failed", zap.Error(err))
	}
}

func plural(n int, word string) string {
	if n > 1 {
		return fmt.Sprintf("%d %ss", n, word)
	}
	return fmt.Sprintf("%d %s", n, word)
}
