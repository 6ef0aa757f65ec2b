package repository

import (
	"context"
	"errors"
	"time"

	"github.com/onegreenvn/assign-services-backend/internal/models"

	"gorm.io/gorm"
)

// APIKeyRepository handles database operations for APIKey entities
type APIKeyRepository struct {
	db *gorm.DB
}

// NewAPIKeyRepository creates a new APIKeyRepository instance
func NewAPIKeyRepository(db *gorm.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// GetByHash retrieves an API key by the hash of its value
func (r *APIKeyRepository) GetByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	var apiKey models.APIKey
	if err := r.db.WithContext(ctx).Where("key_hash = ?", hash).First(&apiKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &apiKey, nil
}

// GetByUserID retrieves the API key owned by a user
func (r *APIKeyRepository) GetByUserID(ctx context.Context, userID uint64) (*models.APIKey, error) {
	var apiKey models.APIKey
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&apiKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &apiKey, nil
}

// Replace deletes any key the user owns and stores the new one
func (r *APIKeyRepository) Replace(ctx context.Context, apiKey *models.APIKey) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.APIKey{}, "user_id = ?", apiKey.UserID).Error; err != nil {
			return err
		}
		return tx.Create(apiKey).Error
	})
}

// SetActive toggles a user's key and returns the updated row
func (r *APIKeyRepository) SetActive(ctx context.Context, userID uint64, active bool) (*models.APIKey, error) {
	res := r.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("user_id = ?", userID).
		Update("is_active", active)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByUserID(ctx, userID)
}

// UpdateLastUsed stamps the last used time for an API key
func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, id uint64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.APIKey{}).Where("id = ?", id).Update("last_used_at", at).Error
}

// DeleteByUserID removes a user's API key
func (r *APIKeyRepository) DeleteByUserID(ctx context.Context, userID uint64) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.APIKey{}, "user_id = ?", userID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
