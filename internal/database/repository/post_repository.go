package repository

import (
	"context"

	"github.com/onegreenvn/assign-services-backend/internal/models"
	"gorm.io/gorm"
)

type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

// GetByID retrieves a live (not deleted) post by ID
func (r *PostRepository) GetByID(ctx context.Context, id uint64) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetByIDUnscoped retrieves a post by ID including deleted ones
func (r *PostRepository) GetByIDUnscoped(ctx context.Context, id uint64) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Unscoped().First(&post, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetByIDs retrieves live posts by IDs, keyed by ID
func (r *PostRepository) GetByIDs(ctx context.Context, ids []uint64) (map[uint64]*models.Post, error) {
	result := make(map[uint64]*models.Post)
	if len(ids) == 0 {
		return result, nil
	}

	var posts []*models.Post
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, err
	}
	for _, post := range posts {
		result[post.ID] = post
	}
	return result, nil
}

// Create appends a post to its topic, numbering it after the last post
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if post.PostNumber == 0 {
			var last int
			err := tx.Unscoped().Model(&models.Post{}).
				Where("topic_id = ?", post.TopicID).
				Select("COALESCE(MAX(post_number), 0)").
				Scan(&last).Error
			if err != nil {
				return err
			}
			post.PostNumber = last + 1
		}
		return tx.Create(post).Error
	})
}

// DestroyAnnotationsFor soft deletes small action and whisper posts that
// reference the given post
func (r *PostRepository) DestroyAnnotationsFor(ctx context.Context, postID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("action_code_post_id = ? AND post_type IN ?", postID,
			[]models.PostType{models.PostTypeSmallAction, models.PostTypeWhisper}).
		Delete(&models.Post{})
	return res.RowsAffected, res.Error
}
