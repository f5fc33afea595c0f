package repositories

import (
	"context"
	"errors"
	"time"

	"facture-workflow/internal/adapters/persistence/models"
)

// ErrStaleStatus is returned when an invoice changed status between read
// and write.
var ErrStaleStatus = errors.New("invoice status changed concurrently")

// UserFilter narrows user listings
type UserFilter struct {
	Role         string
	ActiveOnly   bool
	ExcludeAdmin bool
	Search       string
}

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter UserFilter, offset, limit int) ([]*models.User, int64, error)
	ListActiveByRole(ctx context.Context, role string) ([]*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CountByRole(ctx context.Context) (map[string]int64, error)
	LeastBusyTreasurer(ctx context.Context) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}

// RefreshTokenRepository defines refresh token repository interface
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id uint) error
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllByUserID(ctx context.Context, userID uint) error
	DeleteExpired(ctx context.Context) (int64, error)
	CountActiveByUserID(ctx context.Context, userID uint) (int64, error)
}

// Visibility restricts invoices to those a non-admin user may read.
type Visibility struct {
	UserID uint
	// OpenTreasury also admits PENDING_TREASURY invoices with no treasurer.
	OpenTreasury bool
}

// InvoiceFilter narrows invoice listings. Zero fields are ignored.
type InvoiceFilter struct {
	Statuses     []string
	CreatorID    *uint
	Validator1ID *uint
	Validator2ID *uint
	// TreasuryQueueFor matches invoices assigned to the user or unassigned.
	TreasuryQueueFor *uint
	Visible          *Visibility
	DueFrom          *time.Time
	DueBefore        *time.Time
	Search           string

	LegalForm string
	Modality  string
	// Number matches part of the invoice number, case-insensitively.
	Number string
	Issued DateRange
	Due    DateRange

	// Sort is one of SortFields; empty keeps the newest-first order.
	Sort string
	Desc bool
}

// DateRange bounds a date column by whole days, both ends included
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// SortFields are the columns a list can be ordered by
var SortFields = map[string]string{
	"created_at":    "created_at",
	"number":        "number",
	"supplier_name": "supplier_name",
	"issue_date":    "issue_date",
	"due_date":      "due_date",
	"amount_ttc":    "amount_ttc",
	"status":        "status",
}

// SupplierTotal aggregates invoices per supplier
type SupplierTotal struct {
	SupplierName string  `json:"supplier_name"`
	InvoiceCount int64   `json:"invoice_count"`
	TotalTTC     float64 `json:"total_ttc"`
}

// InvoiceRepository defines invoice repository interface
type InvoiceRepository interface {
	CreateNumbered(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, id uint) (*models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice, from string, trace *models.ValidationTrace) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter InvoiceFilter, offset, limit int) ([]*models.Invoice, int64, error)
	Transition(ctx context.Context, invoice *models.Invoice, from string, trace *models.ValidationTrace) error
	CountByStatus(ctx context.Context, filter InvoiceFilter) (map[string]int64, error)
	Count(ctx context.Context, filter InvoiceFilter) (int64, error)
	SumTTC(ctx context.Context, filter InvoiceFilter) (float64, error)
	TopSuppliers(ctx context.Context, limit int) ([]SupplierTotal, error)
}

// ValidatorStat aggregates decisions per validator
type ValidatorStat struct {
	UserID   uint   `json:"user_id"`
	Nom      string `json:"nom"`
	Prenom   string `json:"prenom"`
	Level    string `json:"level"`
	Approved int64  `json:"approved"`
	Rejected int64  `json:"rejected"`
}

// TraceRepository defines validation trace repository interface
type TraceRepository interface {
	ListByInvoice(ctx context.Context, invoiceID uint) ([]*models.ValidationTrace, error)
	CountByUser(ctx context.Context, userID uint, action string) (int64, error)
	ValidatorPerformance(ctx context.Context) ([]ValidatorStat, error)
}

// NotificationRepository defines notification repository interface
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByRecipient(ctx context.Context, userID uint, unreadOnly bool, offset, limit int) ([]*models.Notification, int64, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, id, userID uint) error
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
	ExistsSince(ctx context.Context, userID, invoiceID uint, kind string, since time.Time) (bool, error)
}
