package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/onegreenvn/assign-services-backend/internal/models"
)

// ErrConcurrentModification is returned when a guarded write lost a race
var ErrConcurrentModification = errors.New("assignment was modified concurrently")

// ReminderCandidate is a user with enough active assignments to be reminded
type ReminderCandidate struct {
	UserID uint64
	Count  int64
}

// AssignmentFilter narrows List results
type AssignmentFilter struct {
	Assignee   *models.Assignee
	ActiveOnly bool
	Offset     int
	Limit      int
}

type AssignmentRepository struct {
	db      *gorm.DB
	timeout time.Duration
	now     func() time.Time
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db, now: time.Now}
}

// SetTimeout bounds every store call; zero disables the bound
func (r *AssignmentRepository) SetTimeout(timeout time.Duration) {
	r.timeout = timeout
}

// SetNow overrides the clock used for AssignedAt
func (r *AssignmentRepository) SetNow(now func() time.Time) {
	r.now = now
}

func (r *AssignmentRepository) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if r.timeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		return r.db.WithContext(ctx), cancel
	}
	return r.db.WithContext(ctx), func() {}
}

// FindActive returns the active assignment of a target
func (r *AssignmentRepository) FindActive(ctx context.Context, target models.Target) (*models.Assignment, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var assignment models.Assignment
	err := db.Where("target_type = ? AND target_id = ? AND active = ?", target.Type, target.ID, true).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindByTarget returns the assignment row of a target in any state,
// preferring the active one
func (r *AssignmentRepository) FindByTarget(ctx context.Context, target models.Target) (*models.Assignment, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var assignment models.Assignment
	err := db.Where("target_type = ? AND target_id = ?", target.Type, target.ID).
		Order("active DESC, id DESC").
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindByID retrieves an assignment by ID
func (r *AssignmentRepository) FindByID(ctx context.Context, id uint64) (*models.Assignment, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var assignment models.Assignment
	if err := db.First(&assignment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindActiveByTopic returns the active topic and post assignments of a topic
func (r *AssignmentRepository) FindActiveByTopic(ctx context.Context, topicID uint64) ([]models.Assignment, error) {
	return r.FindByTopic(ctx, topicID, true)
}

// FindByTopic returns the topic's assignments in the given state
func (r *AssignmentRepository) FindByTopic(ctx context.Context, topicID uint64, active bool) ([]models.Assignment, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var assignments []models.Assignment
	err := db.Where("topic_id = ? AND active = ?", topicID, active).
		Order("id ASC").
		Find(&assignments).Error
	return assignments, err
}

// ExistsForTopic checks if the topic has an assignment in the given state
func (r *AssignmentRepository) ExistsForTopic(ctx context.Context, topicID uint64, active bool) (bool, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var count int64
	err := db.Model(&models.Assignment{}).
		Where("topic_id = ? AND active = ?", topicID, active).
		Count(&count).Error
	return count > 0, err
}

// Upsert writes the assignment for its target. An existing row (active or
// not) is updated in place under a row lock; otherwise a new row is
// inserted. The returned previous value is nil when a row was inserted.
//
// When another writer inserted the active row first, the winning row is
// returned together with ErrConcurrentModification.
func (r *AssignmentRepository) Upsert(ctx context.Context, assignment *models.Assignment) (*models.Assignment, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	now := r.now()
	var previous *models.Assignment

	err := db.Transaction(func(tx *gorm.DB) error {
		var existing models.Assignment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("target_type = ? AND target_id = ?", assignment.TargetType, assignment.TargetID).
			Order("active DESC, id DESC").
			First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			assignment.ID = 0
			assignment.Active = true
			if assignment.AssignedAt.IsZero() {
				assignment.AssignedAt = now
			}
			return tx.Create(assignment).Error
		}
		if err != nil {
			return err
		}

		prev := existing
		previous = &prev

		assignedAt := existing.AssignedAt
		if !existing.Active || existing.Assignee() != assignment.Assignee() {
			assignedAt = now
		}

		res := tx.Model(&models.Assignment{}).
			Where("id = ? AND active = ?", existing.ID, existing.Active).
			Updates(map[string]interface{}{
				"topic_id":         assignment.TopicID,
				"assigned_to_type": assignment.AssignedToType,
				"assigned_to_id":   assignment.AssignedToID,
				"assigned_by_id":   assignment.AssignedByID,
				"active":           true,
				"note":             assignment.Note,
				"status":           assignment.Status,
				"assigned_at":      assignedAt,
				"updated_at":       now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConcurrentModification
		}

		var updated models.Assignment
		if err := tx.First(&updated, "id = ?", existing.ID).Error; err != nil {
			return err
		}
		*assignment = updated
		return nil
	})

	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrConcurrentModification) {
		winner, findErr := r.FindActive(ctx, assignment.Target())
		if findErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrConcurrentModification, findErr)
		}
		return winner, ErrConcurrentModification
	}
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// Deactivate marks an active assignment inactive. It reports false when the
// row was already inactive.
func (r *AssignmentRepository) Deactivate(ctx context.Context, id uint64) (bool, error) {
	return r.setActive(ctx, id, false)
}

// Reactivate marks an inactive assignment active again, keeping AssignedAt.
// It reports false when the row was already active.
func (r *AssignmentRepository) Reactivate(ctx context.Context, id uint64) (bool, error) {
	changed, err := r.setActive(ctx, id, true)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, ErrConcurrentModification
	}
	return changed, err
}

func (r *AssignmentRepository) setActive(ctx context.Context, id uint64, active bool) (bool, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	res := db.Model(&models.Assignment{}).
		Where("id = ? AND active = ?", id, !active).
		Updates(map[string]interface{}{"active": active, "updated_at": r.now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Delete removes an assignment row
func (r *AssignmentRepository) Delete(ctx context.Context, id uint64) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	return db.Delete(&models.Assignment{}, "id = ?", id).Error
}

// MigrateTarget moves an assignment to another topic and optionally to a new
// target
func (r *AssignmentRepository) MigrateTarget(ctx context.Context, id, newTopicID uint64, newTarget *models.Target) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	updates := map[string]interface{}{"topic_id": newTopicID, "updated_at": r.now()}
	if newTarget != nil {
		updates["target_type"] = newTarget.Type
		updates["target_id"] = newTarget.ID
	}

	res := db.Model(&models.Assignment{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrConcurrentModification
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ReactivateForTopic reactivates the topic's inactive assignments whose
// target still exists and returns the rows that changed
func (r *AssignmentRepository) ReactivateForTopic(ctx context.Context, topicID uint64) ([]models.Assignment, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var reactivated []models.Assignment
	err := db.Transaction(func(tx *gorm.DB) error {
		var candidates []models.Assignment
		err := tx.Where("topic_id = ? AND active = ?", topicID, false).
			Where("target_type = ? OR (target_type = ? AND target_id IN (?))",
				models.TargetTopic,
				models.TargetPost,
				tx.Model(&models.Post{}).Select("id").Where("topic_id = ? AND deleted_at IS NULL", topicID),
			).
			Where(`NOT EXISTS (
				SELECT 1 FROM assignments AS other
				WHERE other.active AND other.target_type = assignments.target_type
				AND other.target_id = assignments.target_id
			)`).
			Order("id ASC").
			Find(&candidates).Error
		if err != nil {
			return err
		}

		// A row activated concurrently for the same target only skips that
		// candidate; the savepoint keeps the transaction usable on postgres.
		for _, candidate := range candidates {
			savepoint := fmt.Sprintf("reactivate_%d", candidate.ID)
			if err := tx.SavePoint(savepoint).Error; err != nil {
				return err
			}
			res := tx.Model(&models.Assignment{}).
				Where("id = ? AND active = ?", candidate.ID, false).
				Updates(map[string]interface{}{"active": true, "updated_at": r.now()})
			if res.Error != nil {
				if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
					if err := tx.RollbackTo(savepoint).Error; err != nil {
						return err
					}
					continue
				}
				return res.Error
			}
			if res.RowsAffected > 0 {
				candidate.Active = true
				reactivated = append(reactivated, candidate)
			}
		}
		return nil
	})
	return reactivated, err
}

// DeactivateForTopic deactivates every active assignment of a topic and
// returns the rows that changed
func (r *AssignmentRepository) DeactivateForTopic(ctx context.Context, topicID uint64) ([]models.Assignment, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var deactivated []models.Assignment
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("topic_id = ? AND active = ?", topicID, true).Find(&deactivated).Error; err != nil {
			return err
		}
		if len(deactivated) == 0 {
			return nil
		}
		ids := make([]uint64, len(deactivated))
		for i := range deactivated {
			ids[i] = deactivated[i].ID
			deactivated[i].Active = false
		}
		return tx.Model(&models.Assignment{}).
			Where("id IN ? AND active = ?", ids, true).
			Updates(map[string]interface{}{"active": false, "updated_at": r.now()}).Error
	})
	return deactivated, err
}

// ActiveForAssignee returns the active assignments of a user or group
func (r *AssignmentRepository) ActiveForAssignee(ctx context.Context, assignee models.Assignee) ([]models.Assignment, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var assignments []models.Assignment
	err := db.Where("assigned_to_type = ? AND assigned_to_id = ? AND active = ?", assignee.Type, assignee.ID, true).
		Order("assigned_at ASC").
		Find(&assignments).Error
	return assignments, err
}

// CountActiveForUser counts the user's direct active assignments
func (r *AssignmentRepository) CountActiveForUser(ctx context.Context, userID uint64) (int64, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var count int64
	err := db.Model(&models.Assignment{}).
		Where("assigned_to_type = ? AND assigned_to_id = ? AND active = ?", models.AssigneeUser, userID, true).
		Count(&count).Error
	return count, err
}

// ReminderCandidates returns users holding at least threshold active
// assignments
func (r *AssignmentRepository) ReminderCandidates(ctx context.Context, threshold int) ([]ReminderCandidate, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var candidates []ReminderCandidate
	err := db.Model(&models.Assignment{}).
		Select("assigned_to_id AS user_id, COUNT(*) AS count").
		Where("assigned_to_type = ? AND active = ?", models.AssigneeUser, true).
		Group("assigned_to_id").
		Having("COUNT(*) >= ?", threshold).
		Order("assigned_to_id ASC").
		Scan(&candidates).Error
	return candidates, err
}

// OldestActiveForUser returns the user's oldest active assignments
func (r *AssignmentRepository) OldestActiveForUser(ctx context.Context, userID uint64, limit int) ([]models.Assignment, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var assignments []models.Assignment
	query := db.Where("assigned_to_type = ? AND assigned_to_id = ? AND active = ?", models.AssigneeUser, userID, true).
		Order("assigned_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&assignments).Error
	return assignments, err
}

// TopicIDsAssignedToUser returns topics with an active assignment to the
// user, or to one of the given groups unless directOnly is set
func (r *AssignmentRepository) TopicIDsAssignedToUser(ctx context.Context, userID uint64, groupIDs []uint64, directOnly bool) ([]uint64, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	query := db.Model(&models.Assignment{}).Where("active = ?", true)
	if directOnly || len(groupIDs) == 0 {
		query = query.Where("assigned_to_type = ? AND assigned_to_id = ?", models.AssigneeUser, userID)
	} else {
		query = query.Where(
			db.Where("assigned_to_type = ? AND assigned_to_id = ?", models.AssigneeUser, userID).
				Or("assigned_to_type = ? AND assigned_to_id IN ?", models.AssigneeGroup, groupIDs),
		)
	}

	var topicIDs []uint64
	err := query.Distinct("topic_id").Order("topic_id ASC").Pluck("topic_id", &topicIDs).Error
	return topicIDs, err
}

// TopicIDsAssignedToGroup returns topics with an active assignment to the
// group, or to one of its members unless directOnly is set
func (r *AssignmentRepository) TopicIDsAssignedToGroup(ctx context.Context, groupID uint64, memberIDs []uint64, directOnly bool) ([]uint64, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	query := db.Model(&models.Assignment{}).Where("active = ?", true)
	if directOnly || len(memberIDs) == 0 {
		query = query.Where("assigned_to_type = ? AND assigned_to_id = ?", models.AssigneeGroup, groupID)
	} else {
		query = query.Where(
			db.Where("assigned_to_type = ? AND assigned_to_id = ?", models.AssigneeGroup, groupID).
				Or("assigned_to_type = ? AND assigned_to_id IN ?", models.AssigneeUser, memberIDs),
		)
	}

	var topicIDs []uint64
	err := query.Distinct("topic_id").Order("topic_id ASC").Pluck("topic_id", &topicIDs).Error
	return topicIDs, err
}

// CountForGroup counts topics assigned to the group or its members
func (r *AssignmentRepository) CountForGroup(ctx context.Context, groupID uint64, memberIDs []uint64) (int64, error) {
	topicIDs, err := r.TopicIDsAssignedToGroup(ctx, groupID, memberIDs, false)
	if err != nil {
		return 0, err
	}
	return int64(len(topicIDs)), nil
}

// List returns assignments matching the filter and the total match count
func (r *AssignmentRepository) List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, int64, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	query := db.Model(&models.Assignment{})
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	if filter.Assignee != nil {
		query = query.Where("assigned_to_type = ? AND assigned_to_id = ?", filter.Assignee.Type, filter.Assignee.ID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("assigned_at DESC, id DESC")
	if filter.Limit > 0 {
		query = query.Offset(filter.Offset).Limit(filter.Limit)
	}

	var assignments []models.Assignment
	err := query.Find(&assignments).Error
	return assignments, total, err
}
