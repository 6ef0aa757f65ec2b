package repository

import (
	"context"

	"github.com/onegreenvn/assign-services-backend/internal/models"
	"gorm.io/gorm"
)

type TopicRepository struct {
	db *gorm.DB
}

func NewTopicRepository(db *gorm.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

// Create creates a new topic
func (r *TopicRepository) Create(ctx context.Context, topic *models.Topic) error {
	return r.db.WithContext(ctx).Create(topic).Error
}

// GetByID retrieves a live (not deleted) topic by ID
func (r *TopicRepository) GetByID(ctx context.Context, id uint64) (*models.Topic, error) {
	var topic models.Topic
	err := r.db.WithContext(ctx).First(&topic, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &topic, nil
}

// GetByIDUnscoped retrieves a topic by ID including deleted ones
func (r *TopicRepository) GetByIDUnscoped(ctx context.Context, id uint64) (*models.Topic, error) {
	var topic models.Topic
	err := r.db.WithContext(ctx).Unscoped().First(&topic, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &topic, nil
}

// GetByIDs retrieves live topics by IDs (batch load)
func (r *TopicRepository) GetByIDs(ctx context.Context, ids []uint64) ([]models.Topic, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var topics []models.Topic
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&topics).Error
	return topics, err
}

// ListUnassigned returns live, open topics without an active assignment
func (r *TopicRepository) ListUnassigned(ctx context.Context, offset, limit int) ([]models.Topic, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Topic{}).
		Where("closed = ?", false).
		Where("NOT EXISTS (SELECT 1 FROM assignments a WHERE a.topic_id = topics.id AND a.active = ?)", true)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var topics []models.Topic
	query = query.Order("id DESC")
	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}
	err := query.Find(&topics).Error
	return topics, total, err
}
