package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"facture-workflow/internal/adapters/persistence/models"
	"facture-workflow/internal/adapters/persistence/repositories"
	"facture-workflow/internal/core/domain"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxBatchPay bounds the number of invoices settled in one batch
const MaxBatchPay = 100

// DecisionInput carries the comment of a validator decision
type DecisionInput struct {
	Comment string `json:"comment"`
}

// PayInput represents a payment record. An empty date means today.
type PayInput struct {
	PaymentReference string `json:"payment_reference"`
	PaymentDate      string `json:"payment_date"`
	Comment          string `json:"comment"`
}

// BatchPayInput settles several invoices at once. An empty reference is
// replaced per invoice by PAY{YYYYMMDD}-{id}.
type BatchPayInput struct {
	IDs              []uint `json:"ids"`
	PaymentReference string `json:"payment_reference"`
	PaymentDate      string `json:"payment_date"`
	Comment          string `json:"comment"`
}

// BatchPayResult is the outcome for one invoice of a batch
type BatchPayResult struct {
	ID      uint                    `json:"id"`
	Success bool                    `json:"success"`
	Invoice *models.InvoiceResponse `json:"invoice,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

// BatchPayOutput represents batch pay output
type BatchPayOutput struct {
	Results []BatchPayResult `json:"results"`
	Paid    int              `json:"paid"`
	Failed  int              `json:"failed"`
}

// AttachmentFile is an open attachment ready to stream
type AttachmentFile struct {
	Name string
	MIME string
	Size int64
	File *os.File
}

// Submit sends a draft into level-1 validation
func (s *InvoiceService) Submit(ctx context.Context, actor domain.Actor, id uint) (*models.InvoiceResponse, error) {
	return s.transition(ctx, actor, id, domain.ActionSubmit, "", func(inv *models.Invoice, now time.Time) error {
		if err := domain.ValidateForSubmission(inv.Fields()); err != nil {
			return err
		}
		errs := domain.ValidationErrors{}
		if err := s.checkAssignee(ctx, inv.Validator1ID, domain.RoleV1, "validator1_id", errs); err != nil {
			return err
		}
		if err := s.checkAssignee(ctx, inv.Validator2ID, domain.RoleV2, "validator2_id", errs); err != nil {
			return err
		}
		if err := errs.Err(); err != nil {
			return err
		}

		inv.SubmittedAt = &now
		inv.RejectionReason = ""
		return nil
	})
}

// Cancel abandons a draft
func (s *InvoiceService) Cancel(ctx context.Context, actor domain.Actor, id uint, input *DecisionInput) (*models.InvoiceResponse, error) {
	return s.transition(ctx, actor, id, domain.ActionCancel, input.Comment, func(*models.Invoice, time.Time) error {
		if utf8.RuneCountInString(strings.TrimSpace(input.Comment)) > domain.MaxDecisionComment {
			return domain.ValidationErrors{"comment": fmt.Sprintf("must be at most %d characters", domain.MaxDecisionComment)}
		}
		return nil
	})
}

// ApproveV1 records the level-1 approval
func (s *InvoiceService) ApproveV1(ctx context.Context, actor domain.Actor, id uint, input *DecisionInput) (*models.InvoiceResponse, error) {
	return s.transition(ctx, actor, id, domain.ActionApproveV1, input.Comment, func(inv *models.Invoice, now time.Time) error {
		if err := domain.ValidateDecisionComment(domain.ActionApproveV1, input.Comment); err != nil {
			return err
		}
		inv.ValidatedV1At = &now
		return nil
	})
}

// RejectV1 rejects at level 1; the comment becomes the rejection reason
func (s *InvoiceService) RejectV1(ctx context.Context, actor domain.Actor, id uint, input *DecisionInput) (*models.InvoiceResponse, error) {
	return s.reject(ctx, actor, id, domain.ActionRejectV1, input)
}

// ApproveV2 records the level-2 approval and routes the invoice to a
// treasurer when none is assigned yet
func (s *InvoiceService) ApproveV2(ctx context.Context, actor domain.Actor, id uint, input *DecisionInput) (*models.InvoiceResponse, error) {
	return s.transition(ctx, actor, id, domain.ActionApproveV2, input.Comment, func(inv *models.Invoice, now time.Time) error {
		if err := domain.ValidateDecisionComment(domain.ActionApproveV2, input.Comment); err != nil {
			return err
		}
		inv.ValidatedV2At = &now

		if inv.TreasurerID != nil {
			return nil
		}
		treasurer, err := s.userRepo.LeastBusyTreasurer(ctx)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			s.log.Warn("no active treasurer, invoice left in the open queue", zap.Uint("invoice_id", inv.ID))
		case err != nil:
			return err
		default:
			inv.TreasurerID = &treasurer.ID
			inv.Treasurer = treasurer
		}
		return nil
	})
}

// RejectV2 rejects at level 2; the comment becomes the rejection reason
func (s *InvoiceService) RejectV2(ctx context.Context, actor domain.Actor, id uint, input *DecisionInput) (*models.InvoiceResponse, error) {
	return s.reject(ctx, actor, id, domain.ActionRejectV2, input)
}

// Pay records the payment of an invoice waiting in treasury
func (s *InvoiceService) Pay(ctx context.Context, actor domain.Actor, id uint, input *PayInput) (*models.InvoiceResponse, error) {
	date, err := s.paymentDate(input.PaymentDate)
	if err != nil {
		return nil, err
	}
	return s.pay(ctx, actor, id, domain.Payment{
		Reference: input.PaymentReference,
		Date:      date,
		Comment:   input.Comment,
	})
}

// BatchPay pays each invoice independently and reports every outcome
func (s *InvoiceService) BatchPay(ctx context.Context, actor domain.Actor, input *BatchPayInput) (*BatchPayOutput, error) {
	if len(input.IDs) == 0 {
		return nil, domain.ValidationErrors{"ids": "is required"}
	}
	if len(input.IDs) > MaxBatchPay {
		return nil, domain.ValidationErrors{"ids": fmt.Sprintf("must contain at most %d invoices", MaxBatchPay)}
	}
	date, err := s.paymentDate(input.PaymentDate)
	if err != nil {
		return nil, err
	}

	out := &BatchPayOutput{Results: make([]BatchPayResult, 0, len(input.IDs))}
	seen := make(map[uint]bool, len(input.IDs))
	for _, id := range input.IDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		ref := strings.TrimSpace(input.PaymentReference)
		if ref == "" {
			ref = domain.PaymentReference(date, id)
		}

		resp, err := s.pay(ctx, actor, id, domain.Payment{Reference: ref, Date: date, Comment: input.Comment})
		if err != nil {
			out.Failed++
			out.Results = append(out.Results, BatchPayResult{ID: id, Error: err.Error()})
			continue
		}
		out.Paid++
		out.Results = append(out.Results, BatchPayResult{ID: id, Success: true, Invoice: resp})
	}

	s.log.Info("batch payment",
		zap.Uint("treasurer_id", actor.ID),
		zap.Int("paid", out.Paid),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}

// AttachFile stores a scan of the invoice, replacing any previous one
func (s *InvoiceService) AttachFile(ctx context.Context, actor domain.Actor, id uint, filename, mimeType string, size int64, r io.Reader) (*models.InvoiceResponse, error) {
	inv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckTransition(inv.Subject(), actor, domain.ActionEdit); err != nil {
		return nil, err
	}
	if err := domain.ValidateAttachment(size, mimeType); err != nil {
		return nil, err
	}

	stored, written, err := s.files.Save(r, mimeType)
	if err != nil {
		return nil, err
	}

	previous := inv.AttachmentPath
	inv.AttachmentName = filepath.Base(filepath.Clean("/" + filename))
	inv.AttachmentPath = stored
	inv.AttachmentSize = written
	inv.AttachmentMIME = domain.NormaliseMIME(mimeType)

	if err := s.invoiceRepo.Update(ctx, inv, inv.Status, nil); err != nil {
		_ = s.files.Remove(stored)
		if errors.Is(err, repositories.ErrStaleStatus) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}
	s.invalidate(ctx)

	if err := s.files.Remove(previous); err != nil {
		s.log.Warn("could not remove replaced attachment", zap.Uint("invoice_id", id), zap.Error(err))
	}

	s.log.Info("attachment stored", zap.Uint("invoice_id", id), zap.Int64("size", written))
	return s.Get(ctx, actor, id)
}

// Attachment opens the stored scan of an invoice the actor can view. The
// caller closes the file.
func (s *InvoiceService) Attachment(ctx context.Context, actor domain.Actor, id uint) (*AttachmentFile, error) {
	inv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanView(inv.Subject(), actor) {
		return nil, ErrInvoiceAccessDenied
	}
	if !inv.HasAttachment() {
		return nil, ErrAttachmentNotFound
	}

	f, err := s.files.Open(inv.AttachmentPath)
	if err != nil {
		return nil, err
	}
	return &AttachmentFile{
		Name: inv.AttachmentName,
		MIME: inv.AttachmentMIME,
		Size: inv.AttachmentSize,
		File: f,
	}, nil
}

func (s *InvoiceService) reject(ctx context.Context, actor domain.Actor, id uint, action domain.Action, input *DecisionInput) (*models.InvoiceResponse, error) {
	return s.transition(ctx, actor, id, action, input.Comment, func(inv *models.Invoice, _ time.Time) error {
		if err := domain.ValidateDecisionComment(action, input.Comment); err != nil {
			return err
		}
		inv.RejectionReason = strings.TrimSpace(input.Comment)
		return nil
	})
}

func (s *InvoiceService) pay(ctx context.Context, actor domain.Actor, id uint, p domain.Payment) (*models.InvoiceResponse, error) {
	return s.transition(ctx, actor, id, domain.ActionPay, p.Comment, func(inv *models.Invoice, now time.Time) error {
		if err := domain.ValidatePayment(p, now); err != nil {
			return err
		}
		date := p.Date
		inv.PaymentRef = strings.TrimSpace(p.Reference)
		inv.PaymentDate = &date
		inv.PaymentComment = strings.TrimSpace(p.Comment)
		if inv.TreasurerID == nil {
			inv.TreasurerID = &actor.ID
		}
		return nil
	})
}

// paymentDate parses raw, defaulting to today
func (s *InvoiceService) paymentDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		now := s.now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, ok := domain.ParseDate(raw)
	if !ok {
		return time.Time{}, domain.ValidationErrors{"payment_date": "must be a date (YYYY-MM-DD)"}
	}
	return t, nil
}

// transition runs one guarded status change: guard, payload checks in
// prepare, atomic write with its trace, cache invalidation, notifications,
// then a fresh read of the invoice.
func (s *InvoiceService) transition(
	ctx context.Context,
	actor domain.Actor,
	id uint,
	action domain.Action,
	comment string,
	prepare func(inv *models.Invoice, now time.Time) error,
) (*models.InvoiceResponse, error) {
	inv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckTransition(inv.Subject(), actor, action); err != nil {
		return nil, err
	}
	rule, _ := domain.Transition(action)

	now := s.now()
	if err := prepare(inv, now); err != nil {
		return nil, err
	}

	from := inv.Status
	inv.Status = string(rule.To)
	trace := &models.ValidationTrace{
		UserID:         actor.ID,
		Action:         string(action),
		Level:          rule.Level,
		PreviousStatus: from,
		NewStatus:      inv.Status,
		Approved:       rule.Approves(),
		Comment:        strings.TrimSpace(comment),
	}
	if err := s.invoiceRepo.Transition(ctx, inv, from, trace); err != nil {
		if errors.Is(err, repositories.ErrStaleStatus) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}
	s.invalidate(ctx)
	s.announce(ctx, inv, rule, trace.Comment)

	s.log.Info("invoice transition",
		zap.Uint("invoice_id", id),
		zap.String("number", inv.Number),
		zap.String("action", string(action)),
		zap.String("from", from),
		zap.String("to", inv.Status),
		zap.Uint("user_id", actor.ID),
	)
	return s.Get(ctx, actor, id)
}

func (s *InvoiceService) announce(ctx context.Context, inv *models.Invoice, rule domain.Rule, comment string) {
	if s.notifier == nil {
		return
	}
	switch rule.Action {
	case domain.ActionSubmit:
		s.notifier.InvoiceSubmitted(ctx, inv)
	case domain.ActionApproveV1:
		s.notifier.InvoiceApprovedV1(ctx, inv)
	case domain.ActionApproveV2:
		s.notifier.InvoiceApprovedV2(ctx, inv)
	case domain.ActionRejectV1, domain.ActionRejectV2:
		s.notifier.InvoiceRejected(ctx, inv, rule.Level, comment)
	case domain.ActionPay:
		s.notifier.InvoicePaid(ctx, inv)
	}
}
