package repositories

import (
	"context"

	"facture-workflow/internal/adapters/persistence/models"
	"facture-workflow/internal/core/domain"

	"gorm.io/gorm"
)

// traceRepository implements TraceRepository interface
type traceRepository struct {
	db *gorm.DB
}

// NewTraceRepository creates a new validation trace repository
func NewTraceRepository(db *gorm.DB) TraceRepository {
	return &traceRepository{db: db}
}

// ListByInvoice returns the audit trail of an invoice, oldest first
func (r *traceRepository) ListByInvoice(ctx context.Context, invoiceID uint) ([]*models.ValidationTrace, error) {
	var traces []*models.ValidationTrace
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC, id ASC").
		Find(&traces).Error
	return traces, err
}

// CountByUser counts the transitions of one kind performed by a user
func (r *traceRepository) CountByUser(ctx context.Context, userID uint, action string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ValidationTrace{}).
		Where("user_id = ? AND action = ?", userID, action).
		Count(&count).Error
	return count, err
}

// ValidatorPerformance counts approvals and rejections per validator and level
func (r *traceRepository) ValidatorPerformance(ctx context.Context) ([]ValidatorStat, error) {
	var rows []ValidatorStat
	err := r.db.WithContext(ctx).
		Table("validation_traces AS t").
		Select(`t.user_id AS user_id, u.nom AS nom, u.prenom AS prenom, t.level AS level,
			SUM(CASE WHEN t.approved THEN 1 ELSE 0 END) AS approved,
			SUM(CASE WHEN t.approved THEN 0 ELSE 1 END) AS rejected`).
		Joins("JOIN users u ON u.id = t.user_id").
		Where("t.action IN ?", []string{
			string(domain.ActionApproveV1), string(domain.ActionRejectV1),
			string(domain.ActionApproveV2), string(domain.ActionRejectV2),
		}).
		Group("t.user_id, u.nom, u.prenom, t.level").
		Order("t.level ASC, approved DESC, t.user_id ASC").
		Scan(&rows).Error
	return rows, err
}
