package services

import (
	"context"
	"io"
	"os"

	"facture-workflow/internal/adapters/persistence/models"
)

// WorkflowNotifier receives the invoice events that must reach a user.
// Delivery failures are the notifier's concern; callers never fail on them.
type WorkflowNotifier interface {
	InvoiceSubmitted(ctx context.Context, inv *models.Invoice)
	InvoiceApprovedV1(ctx context.Context, inv *models.Invoice)
	InvoiceApprovedV2(ctx context.Context, inv *models.Invoice)
	InvoiceRejected(ctx context.Context, inv *models.Invoice, level, reason string)
	InvoicePaid(ctx context.Context, inv *models.Invoice)
}

// DueReminder sends at most one due-date reminder per recipient, invoice
// and day, reporting whether one was sent
type DueReminder interface {
	DueSoon(ctx context.Context, recipientID uint, inv *models.Invoice) (bool, error)
}

// FileStore keeps invoice attachments
type FileStore interface {
	Save(r io.Reader, mimeType string) (name string, size int64, err error)
	Open(name string) (*os.File, error)
	Remove(name string) error
}

var (
	_ WorkflowNotifier = (*NotificationService)(nil)
	_ DueReminder      = (*NotificationService)(nil)
	_ FileStore        = (*AttachmentStore)(nil)
)
