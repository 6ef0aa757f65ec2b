package repository

import (
	"context"
	"errors"

	"github.com/onegreenvn/assign-services-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SiteSettingRepository struct {
	db *gorm.DB
}

func NewSiteSettingRepository(db *gorm.DB) *SiteSettingRepository {
	return &SiteSettingRepository{db: db}
}

// Get returns a setting value and whether it was present
func (r *SiteSettingRepository) Get(ctx context.Context, name string) (string, bool, error) {
	var setting models.SiteSetting
	err := r.db.WithContext(ctx).First(&setting, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return setting.Value, true, nil
}

// Set creates or replaces a setting value
func (r *SiteSettingRepository) Set(ctx context.Context, name, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.SiteSetting{Name: name, Value: value}).Error
}
