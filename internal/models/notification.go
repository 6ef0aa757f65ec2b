package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types written by the dispatcher
const (
	NotificationAssigned   = "assigned"
	NotificationUnassigned = "unassigned"
	NotificationReminder   = "assignment_reminder"
)

// Message keys carried in notification data for client-side localization
const (
	MessageKeyAssigned      = "assign.assigned_notification"
	MessageKeyAssignedGroup = "assign.assigned_group_notification"
	MessageKeyUnassigned    = "assign.unassigned_notification"
	MessageKeyUnassignedGrp = "assign.unassigned_group_notification"
	MessageKeyReminder      = "assign.reminder_notification"
)

// Notification is a structured notification delivered to one user
type Notification struct {
	ID               uint64            `json:"id" gorm:"primaryKey"`
	UserID           uint64            `json:"user_id" gorm:"not null;index"`
	NotificationType string            `json:"notification_type" gorm:"type:varchar(64);not null;index"`
	TopicID          *uint64           `json:"topic_id,omitempty" gorm:"index"`
	PostNumber       int               `json:"post_number,omitempty"`
	HighPriority     bool              `json:"high_priority" gorm:"not null;default:false"`
	Read             bool              `json:"read" gorm:"not null;default:false"`
	Data             datatypes.JSONMap `json:"data"`
	CreatedAt        time.Time         `json:"created_at"`
}

// TableName specifies the table name for the Notification model
func (Notification) TableName() string {
	return "notifications"
}
