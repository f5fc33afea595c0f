package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"facture-workflow/internal/adapters/persistence/models"
	"facture-workflow/internal/core/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// numberAttempts bounds retries when two writers race for the same number
const numberAttempts = 3

// transitionColumns are the only columns a status change may touch
var transitionColumns = []string{
	"status",
	"submitted_at",
	"validated_v1_at",
	"validated_v2_at",
	"rejection_reason",
	"treasurer_id",
	"payment_ref",
	"payment_date",
	"payment_comment",
	"updated_at",
}

// immutableColumns are never written by Update
var immutableColumns = []string{"id", "number", "creator_id", "created_at", "deleted_at"}

// invoiceRepository implements InvoiceRepository interface
type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

// CreateNumbered assigns the next FAC-YYYY-NNNN number and inserts the
// invoice.
func (r *invoiceRepository) CreateNumbered(ctx context.Context, invoice *models.Invoice) error {
	year := time.Now().Year()
	if !invoice.CreatedAt.IsZero() {
		year = invoice.CreatedAt.Year()
	}

	var err error
	for attempt := 0; attempt < numberAttempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			seq, err := nextSequence(tx, year)
			if err != nil {
				return err
			}
			invoice.Number = domain.FormatNumber(year, seq)
			return tx.Omit(clause.Associations).Create(invoice).Error
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		invoice.ID = 0
	}
	return err
}

// nextSequence reads the highest sequence issued for year, soft-deleted rows
// included since their numbers stay reserved.
func nextSequence(tx *gorm.DB, year int) (int, error) {
	prefix := domain.FormatNumber(year, 0)
	prefix = prefix[:strings.LastIndex(prefix, "-")+1]

	var numbers []string
	err := tx.Unscoped().
		Model(&models.Invoice{}).
		Where("number LIKE ?", prefix+"%").
		Order("id DESC").
		Limit(1).
		Pluck("number", &numbers).Error
	if err != nil {
		return 0, err
	}
	if len(numbers) == 0 {
		return 1, nil
	}

	seq, err := strconv.Atoi(strings.TrimPrefix(numbers[0], prefix))
	if err != nil {
		return 0, fmt.Errorf("malformed invoice number %q: %w", numbers[0], err)
	}
	return seq + 1, nil
}

// GetByID gets an invoice by ID with its assigned users
func (r *invoiceRepository) GetByID(ctx context.Context, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Validator1").
		Preload("Validator2").
		Preload("Treasurer").
		Where("id = ?", id).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// Update writes every mutable column of invoice provided its stored status
// is still from. A non-nil trace is recorded in the same transaction.
func (r *invoiceRepository) Update(ctx context.Context, invoice *models.Invoice, from string, trace *models.ValidationTrace) error {
	return r.guarded(ctx, invoice, from, trace, func(q *gorm.DB) *gorm.DB {
		return q.Select("*").Omit(append([]string{clause.Associations}, immutableColumns...)...)
	})
}

// Delete soft deletes an invoice
func (r *invoiceRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Invoice{}, id).Error
}

func (r *invoiceRepository) filtered(ctx context.Context, f InvoiceFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Invoice{})
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.CreatorID != nil {
		q = q.Where("creator_id = ?", *f.CreatorID)
	}
	if f.Validator1ID != nil {
		q = q.Where("validator1_id = ?", *f.Validator1ID)
	}
	if f.Validator2ID != nil {
		q = q.Where("validator2_id = ?", *f.Validator2ID)
	}
	if f.TreasuryQueueFor != nil {
		q = q.Where("(treasurer_id = ? OR treasurer_id IS NULL)", *f.TreasuryQueueFor)
	}
	if v := f.Visible; v != nil {
		cond := "creator_id = ? OR validator1_id = ? OR validator2_id = ? OR treasurer_id = ?"
		args := []interface{}{v.UserID, v.UserID, v.UserID, v.UserID}
		if v.OpenTreasury {
			cond += " OR (status = ? AND treasurer_id IS NULL)"
			args = append(args, string(domain.StatusPendingTreasury))
		}
		q = q.Where("("+cond+")", args...)
	}
	if f.DueFrom != nil {
		q = q.Where("due_date >= ?", *f.DueFrom)
	}
	if f.DueBefore != nil {
		q = q.Where("due_date < ?", *f.DueBefore)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("(LOWER(supplier_name) LIKE ? OR LOWER(number) LIKE ? OR LOWER(designation) LIKE ?)", like, like, like)
	}
	if f.LegalForm != "" {
		q = q.Where("legal_form = ?", f.LegalForm)
	}
	if f.Modality != "" {
		q = q.Where("modality = ?", f.Modality)
	}
	if n := strings.TrimSpace(f.Number); n != "" {
		q = q.Where("LOWER(number) LIKE ?", "%"+strings.ToLower(n)+"%")
	}
	q = withinDays(q, "issue_date", f.Issued)
	q = withinDays(q, "due_date", f.Due)
	return q
}

func withinDays(q *gorm.DB, column string, r DateRange) *gorm.DB {
	if r.From != nil {
		q = q.Where(column+" >= ?", dayStart(*r.From))
	}
	if r.To != nil {
		q = q.Where(column+" < ?", dayStart(*r.To).AddDate(0, 0, 1))
	}
	return q
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func listOrder(f InvoiceFilter) string {
	column, ok := SortFields[f.Sort]
	if !ok {
		return "created_at DESC, id DESC"
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	return column + " " + dir + ", id " + dir
}

// List lists invoices with pagination, newest first unless filter names a
// sort field. A non-positive limit returns every match.
func (r *invoiceRepository) List(ctx context.Context, filter InvoiceFilter, offset, limit int) ([]*models.Invoice, int64, error) {
	var invoices []*models.Invoice
	var total int64

	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := r.filtered(ctx, filter).
		Preload("Creator").
		Preload("Validator1").
		Preload("Validator2").
		Preload("Treasurer").
		Order(listOrder(filter))
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	if err := q.Find(&invoices).Error; err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

// Transition writes the workflow columns of invoice provided its stored
// status is still from, and records trace in the same transaction.
func (r *invoiceRepository) Transition(ctx context.Context, invoice *models.Invoice, from string, trace *models.ValidationTrace) error {
	return r.guarded(ctx, invoice, from, trace, func(q *gorm.DB) *gorm.DB {
		return q.Select(transitionColumns).Omit(clause.Associations)
	})
}

func (r *invoiceRepository) guarded(ctx context.Context, invoice *models.Invoice, from string, trace *models.ValidationTrace, columns func(*gorm.DB) *gorm.DB) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Invoice{}).Where("id = ? AND status = ?", invoice.ID, from)
		res := columns(q).Updates(invoice)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleStatus
		}

		if trace == nil {
			return nil
		}
		trace.InvoiceID = invoice.ID
		return tx.Omit(clause.Associations).Create(trace).Error
	})
}

// CountByStatus counts matching invoices per status
func (r *invoiceRepository) CountByStatus(ctx context.Context, filter InvoiceFilter) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := r.filtered(ctx, filter).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// Count counts matching invoices
func (r *invoiceRepository) Count(ctx context.Context, filter InvoiceFilter) (int64, error) {
	var total int64
	err := r.filtered(ctx, filter).Count(&total).Error
	return total, err
}

// SumTTC sums the TTC amount of matching invoices
func (r *invoiceRepository) SumTTC(ctx context.Context, filter InvoiceFilter) (float64, error) {
	var total float64
	err := r.filtered(ctx, filter).
		Select("COALESCE(SUM(amount_ttc), 0)").
		Row().
		Scan(&total)
	return total, err
}

// TopSuppliers ranks suppliers by paid TTC volume
func (r *invoiceRepository) TopSuppliers(ctx context.Context, limit int) ([]SupplierTotal, error) {
	var rows []SupplierTotal
	err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Select("supplier_name, COUNT(*) AS invoice_count, COALESCE(SUM(amount_ttc), 0) AS total_ttc").
		Where("status = ?", string(domain.StatusPaid)).
		Group("supplier_name").
		Order("total_ttc DESC, supplier_name ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
