package repositories

import (
	"context"
	"time"

	"facture-workflow/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// notificationRepository implements NotificationRepository interface
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create creates a new notification
func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepository) byRecipient(ctx context.Context, userID uint, unreadOnly bool) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	return q
}

// ListByRecipient lists a user's notifications, newest first
func (r *notificationRepository) ListByRecipient(ctx context.Context, userID uint, unreadOnly bool, offset, limit int) ([]*models.Notification, int64, error) {
	var items []*models.Notification
	var total int64

	if err := r.byRecipient(ctx, userID, unreadOnly).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.byRecipient(ctx, userID, unreadOnly).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// CountUnread counts a user's unread notifications
func (r *notificationRepository) CountUnread(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.byRecipient(ctx, userID, true).Count(&count).Error
	return count, err
}

// MarkRead marks one notification as read; it must belong to userID
func (r *notificationRepository) MarkRead(ctx context.Context, id, userID uint) error {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, userID).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of a user as read
func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

// ExistsSince reports whether userID already got a notification of kind
// about invoiceID at or after since
func (r *notificationRepository) ExistsSince(ctx context.Context, userID, invoiceID uint, kind string, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND invoice_id = ? AND type = ? AND created_at >= ?", userID, invoiceID, kind, since).
		Count(&count).Error
	return count > 0, err
}
