package models

import (
	"time"
)

// Group assignable levels, who may assign work to the group
const (
	AssignableNobody               = 0
	AssignableOnlyAdmins           = 1
	AssignableModsAndAdmins        = 2
	AssignableMembersModsAndAdmins = 3
	AssignableOwnersModsAndAdmins  = 4
	AssignableEveryone             = 99
)

// Group is the local mirror of a forum group
type Group struct {
	ID              uint64    `json:"id" gorm:"primaryKey"`
	Name            string    `json:"name" gorm:"type:varchar(255);not null;uniqueIndex"`
	AssignableLevel int       `json:"assignable_level" gorm:"not null;default:0"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Group model
func (Group) TableName() string {
	return "groups"
}

// GroupUser is a group membership
type GroupUser struct {
	GroupID   uint64    `json:"group_id" gorm:"primaryKey"`
	UserID    uint64    `json:"user_id" gorm:"primaryKey;index"`
	Owner     bool      `json:"owner" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the GroupUser model
func (GroupUser) TableName() string {
	return "group_users"
}

// GroupAssignedResponse is the response for a group's assigned topics
type GroupAssignedResponse struct {
	GroupID         uint64          `json:"group_id"`
	Name            string          `json:"name"`
	AssignmentCount int64           `json:"assignment_count"`
	Topics          []TopicResponse `json:"topics"`
}
