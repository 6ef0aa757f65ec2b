package repository

import (
	"context"
	"time"

	"github.com/onegreenvn/assign-services-backend/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("LOWER(username) = LOWER(?)", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByIDs retrieves users by IDs, keyed by ID
func (r *UserRepository) GetByIDs(ctx context.Context, ids []uint64) (map[uint64]*models.User, error) {
	result := make(map[uint64]*models.User)
	if len(ids) == 0 {
		return result, nil
	}

	var users []*models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, user := range users {
		result[user.ID] = user
	}
	return result, nil
}

// UpdateLastRemindedAt stamps the last reminder time for a user
func (r *UserRepository) UpdateLastRemindedAt(ctx context.Context, userID uint64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_reminded_at", at).Error
}

// SetSnoozedUntil pauses the user's reminders until the given time; nil
// clears the snooze
func (r *UserRepository) SetSnoozedUntil(ctx context.Context, userID uint64, until *time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("snoozed_until", until)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetRemindersFrequency stores the user's reminder frequency; nil restores
// the site default
func (r *UserRepository) SetRemindersFrequency(ctx context.Context, userID uint64, minutes *int) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("reminders_frequency", minutes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
