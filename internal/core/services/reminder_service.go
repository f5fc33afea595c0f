package services

import (
	"context"
	"time"

	"facture-workflow/internal/adapters/persistence/models"
	"facture-workflow/internal/adapters/persistence/repositories"
	"facture-workflow/internal/core/domain"
	"facture-workflow/internal/pkg/logger"

	"go.uber.org/zap"
)

// ReminderService warns the people currently responsible for pending
// invoices that are close to or past their due date
type ReminderService struct {
	invoiceRepo repositories.InvoiceRepository
	userRepo    repositories.UserRepository
	notifier    DueReminder
	threshold   int
	log         *zap.Logger
	now         func() time.Time
}

// NewReminderService creates a new reminder service
func NewReminderService(
	invoiceRepo repositories.InvoiceRepository,
	userRepo repositories.UserRepository,
	notifier DueReminder,
	urgencyThreshold int,
) *ReminderService {
	return &ReminderService{
		invoiceRepo: invoiceRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		threshold:   urgencyThreshold,
		log:         logger.Named("reminder"),
		now:         time.Now,
	}
}

// ReminderReport summarises one sweep
type ReminderReport struct {
	Scanned int `json:"scanned"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Run sweeps the pending invoices once. Invoices already reminded today
// are skipped, so running it twice a day is harmless.
func (s *ReminderService) Run(ctx context.Context) (*ReminderReport, error) {
	now := s.now()
	before := now.Add(time.Duration(s.threshold)*24*time.Hour + time.Nanosecond)
	filter := repositories.InvoiceFilter{
		Statuses:  pendingStatuses(),
		DueBefore: &before,
	}

	invoices, _, err := s.invoiceRepo.List(ctx, filter, 0, 0)
	if err != nil {
		return nil, err
	}

	report := &ReminderReport{Scanned: len(invoices)}
	var treasurers []*models.User
	for _, inv := range invoices {
		recipients, err := s.responsible(ctx, inv, &treasurers)
		if err != nil {
			return report, err
		}

		for _, id := range recipients {
			sent, err := s.notifier.DueSoon(ctx, id, inv)
			switch {
			case err != nil:
				report.Failed++
				s.log.Error("reminder failed", zap.Uint("invoice_id", inv.ID), zap.Uint("recipient_id", id), zap.Error(err))
			case sent:
				report.Sent++
			default:
				report.Skipped++
			}
		}
	}

	s.log.Info("due-date reminders sent",
		zap.Int("scanned", report.Scanned),
		zap.Int("sent", report.Sent),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// responsible returns who must act next on inv. An unassigned treasury
// invoice belongs to every active treasurer, loaded once per sweep.
func (s *ReminderService) responsible(ctx context.Context, inv *models.Invoice, treasurers *[]*models.User) ([]uint, error) {
	switch domain.Status(inv.Status) {
	case domain.StatusPendingV1:
		return idList(inv.Validator1ID), nil
	case domain.StatusPendingV2:
		return idList(inv.Validator2ID), nil
	case domain.StatusPendingTreasury:
		if inv.TreasurerID != nil {
			return idList(inv.TreasurerID), nil
		}
		if *treasurers == nil {
			users, err := s.userRepo.ListActiveByRole(ctx, string(domain.RoleT1))
			if err != nil {
				return nil, err
			}
			*treasurers = append(make([]*models.User, 0, len(users)), users...)
		}
		ids := make([]uint, 0, len(*treasurers))
		for _, u := range *treasurers {
			ids = append(ids, u.ID)
		}
		return ids, nil
	}
	return nil, nil
}

func idList(id *uint) []uint {
	if id == nil {
		return nil
	}
	return []uint{*id}
}
