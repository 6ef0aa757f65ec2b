package repository

import (
	"context"

	"github.com/onegreenvn/assign-services-backend/internal/models"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores a notification
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// ListForUser returns a user's notifications, newest first
func (r *NotificationRepository) ListForUser(ctx context.Context, userID uint64, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&notifications).Error
	return notifications, err
}

// CountByType counts a user's notifications of one type
func (r *NotificationRepository) CountByType(ctx context.Context, userID uint64, notificationType string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND notification_type = ?", userID, notificationType).
		Count(&count).Error
	return count, err
}
