package models

import (
	"fmt"
	"strings"
	"time"
)

// TargetType is the kind of object an assignment points at
type TargetType string

const (
	TargetTopic TargetType = "Topic"
	TargetPost  TargetType = "Post"
)

// AssigneeType is the kind of party responsible for an assignment
type AssigneeType string

const (
	AssigneeUser  AssigneeType = "User"
	AssigneeGroup AssigneeType = "Group"
)

// SystemUserID is the actor id recorded for changes made by lifecycle sync
const SystemUserID uint64 = 0

// Target identifies a topic or a single post
type Target struct {
	Type TargetType `json:"target_type"`
	ID   uint64     `json:"target_id"`
}

// TopicTarget builds a topic-level target
func TopicTarget(topicID uint64) Target {
	return Target{Type: TargetTopic, ID: topicID}
}

// PostTarget builds a post-level target
func PostTarget(postID uint64) Target {
	return Target{Type: TargetPost, ID: postID}
}

// ParseTarget builds a target from its API form; the type is matched
// case-insensitively
func ParseTarget(targetType string, id uint64) (Target, bool) {
	switch strings.ToLower(targetType) {
	case "topic":
		return TopicTarget(id), id != 0
	case "post":
		return PostTarget(id), id != 0
	}
	return Target{}, false
}

// Key returns a stable string key, used for per-target locking
func (t Target) Key() string {
	return fmt.Sprintf("%s:%d", t.Type, t.ID)
}

// Valid reports whether the target type is known and the id is set
func (t Target) Valid() bool {
	return (t.Type == TargetTopic || t.Type == TargetPost) && t.ID != 0
}

// Assignee identifies a user or a group
type Assignee struct {
	Type AssigneeType `json:"assigned_to_type"`
	ID   uint64       `json:"assigned_to_id"`
}

// UserAssignee builds a user assignee
func UserAssignee(userID uint64) Assignee {
	return Assignee{Type: AssigneeUser, ID: userID}
}

// GroupAssignee builds a group assignee
func GroupAssignee(groupID uint64) Assignee {
	return Assignee{Type: AssigneeGroup, ID: groupID}
}

// Assignment binds one target (topic or post) to one responsible party.
// Rows are never re-created for the same target: the Active flag toggles.
type Assignment struct {
	ID      uint64 `json:"id" gorm:"primaryKey"`
	TopicID uint64 `json:"topic_id" gorm:"not null;index"`

	// Target
	TargetType TargetType `json:"target_type" gorm:"type:varchar(16);not null;index:idx_assignments_target"`
	TargetID   uint64     `json:"target_id" gorm:"not null;index:idx_assignments_target"`

	// Responsible party
	AssignedToType AssigneeType `json:"assigned_to_type" gorm:"type:varchar(16);not null;index:idx_assignments_assigned_to"`
	AssignedToID   uint64       `json:"assigned_to_id" gorm:"not null;index:idx_assignments_assigned_to"`
	AssignedByID   uint64       `json:"assigned_by_id" gorm:"not null"`

	// State
	Active     bool      `json:"active" gorm:"not null;index"`
	Note       string    `json:"note,omitempty" gorm:"type:text"`
	Status     string    `json:"status,omitempty" gorm:"type:varchar(64)"`
	AssignedAt time.Time `json:"assigned_at" gorm:"not null;index"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Assignment model
func (Assignment) TableName() string {
	return "assignments"
}

// Target returns the assignment's target
func (a *Assignment) Target() Target {
	return Target{Type: a.TargetType, ID: a.TargetID}
}

// Assignee returns the assignment's responsible party
func (a *Assignment) Assignee() Assignee {
	return Assignee{Type: a.AssignedToType, ID: a.AssignedToID}
}

// AssignedToUser reports whether the assignee is a user
func (a *Assignment) AssignedToUser() bool {
	return a.AssignedToType == AssigneeUser
}

// AssignedToGroup reports whether the assignee is a group
func (a *Assignment) AssignedToGroup() bool {
	return a.AssignedToType == AssigneeGroup
}

// AssignRequest represents the request to assign a topic or post
type AssignRequest struct {
	TargetType string `json:"target_type" binding:"required" example:"Topic"`
	TargetID   uint64 `json:"target_id" binding:"required" example:"42"`
	Username   string `json:"username,omitempty" example:"sam"`
	GroupName  string `json:"group_name,omitempty" example:"support"`
	Note       string `json:"note,omitempty" example:"Please follow up with the customer"`
	Status     string `json:"status,omitempty" example:"In Progress"`
}

// UnassignRequest represents the request to unassign a topic or post
type UnassignRequest struct {
	TargetType string `json:"target_type" binding:"required" example:"Topic"`
	TargetID   uint64 `json:"target_id" binding:"required" example:"42"`
}

// AssignmentResponse represents an assignment in API responses
type AssignmentResponse struct {
	ID             uint64  `json:"id"`
	TopicID        uint64  `json:"topic_id"`
	TopicTitle     string  `json:"topic_title,omitempty"`
	TargetType     string  `json:"target_type"`
	TargetID       uint64  `json:"target_id"`
	AssignedToType string  `json:"assigned_to_type"`
	AssignedToID   uint64  `json:"assigned_to_id"`
	AssignedToName string  `json:"assigned_to_name"`
	AssignedByID   uint64  `json:"assigned_by_id"`
	Active         bool    `json:"active"`
	Note           string  `json:"note,omitempty"`
	Status         *string `json:"status,omitempty"`
	PostNumber     int     `json:"post_number,omitempty"`
	AssignedAt     string  `json:"assigned_at"`
}

// TopicAssignmentsResponse is the assignment view of a topic: the direct
// assignee plus post-level (indirect) assignees
type TopicAssignmentsResponse struct {
	TopicID            uint64               `json:"topic_id"`
	AssignedTo         *AssignmentResponse  `json:"assigned_to,omitempty"`
	IndirectlyAssigned []AssignmentResponse `json:"indirectly_assigned_to,omitempty"`
}

// AssignedTopicResponse pairs a topic with its active assignment, if any
type AssignedTopicResponse struct {
	Topic      TopicResponse       `json:"topic"`
	Assignment *AssignmentResponse `json:"assignment,omitempty"`
}
