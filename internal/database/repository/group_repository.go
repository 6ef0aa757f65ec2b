package repository

import (
	"context"

	"github.com/onegreenvn/assign-services-backend/internal/models"
	"gorm.io/gorm"
)

type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// GetByID retrieves a group by ID
func (r *GroupRepository) GetByID(ctx context.Context, id uint64) (*models.Group, error) {
	var group models.Group
	err := r.db.WithContext(ctx).First(&group, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// GetByName retrieves a group by name (case insensitive)
func (r *GroupRepository) GetByName(ctx context.Context, name string) (*models.Group, error) {
	var group models.Group
	err := r.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// GetByIDs retrieves groups by IDs, keyed by ID
func (r *GroupRepository) GetByIDs(ctx context.Context, ids []uint64) (map[uint64]*models.Group, error) {
	result := make(map[uint64]*models.Group)
	if len(ids) == 0 {
		return result, nil
	}

	var groups []*models.Group
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return nil, err
	}
	for _, group := range groups {
		result[group.ID] = group
	}
	return result, nil
}

// Members returns the active users of a group
func (r *GroupRepository) Members(ctx context.Context, groupID uint64) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN group_users ON group_users.user_id = users.id").
		Where("group_users.group_id = ? AND users.active = ?", groupID, true).
		Order("users.id ASC").
		Find(&users).Error
	return users, err
}

// MemberIDs returns the ids of every user in a group
func (r *GroupRepository) MemberIDs(ctx context.Context, groupID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&models.GroupUser{}).
		Where("group_id = ?", groupID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// GroupsForUser returns the groups a user belongs to
func (r *GroupRepository) GroupsForUser(ctx context.Context, userID uint64) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).
		Joins("JOIN group_users ON group_users.group_id = groups.id").
		Where("group_users.user_id = ?", userID).
		Order("groups.id ASC").
		Find(&groups).Error
	return groups, err
}

// GroupIDsForUser returns the ids of the groups a user belongs to
func (r *GroupRepository) GroupIDsForUser(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&models.GroupUser{}).
		Where("user_id = ?", userID).
		Order("group_id ASC").
		Pluck("group_id", &ids).Error
	return ids, err
}

// Membership returns the user's membership row in a group
func (r *GroupRepository) Membership(ctx context.Context, groupID, userID uint64) (*models.GroupUser, error) {
	var membership models.GroupUser
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// RemoveMember deletes a group membership
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, userID uint64) error {
	return r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupUser{}).Error
}
