package models

import (
	"time"

	"gorm.io/gorm"
)

// PostType mirrors the forum's post types
type PostType int

const (
	PostTypeRegular         PostType = 1
	PostTypeModeratorAction PostType = 2
	PostTypeSmallAction     PostType = 3
	PostTypeWhisper         PostType = 4
)

// Action codes written on assignment annotation posts
const (
	ActionCodeAssigned            = "assigned"
	ActionCodeAssignedGroup       = "assigned_group"
	ActionCodeAssignedToPost      = "assigned_to_post"
	ActionCodeAssignedGroupToPost = "assigned_group_to_post"
)

// Post is the local mirror of a post within a topic
type Post struct {
	ID         uint64   `json:"id" gorm:"primaryKey"`
	TopicID    uint64   `json:"topic_id" gorm:"not null;index"`
	PostNumber int      `json:"post_number" gorm:"not null"`
	PostType   PostType `json:"post_type" gorm:"not null;default:1"`
	UserID     uint64   `json:"user_id" gorm:"index"`
	Raw        string   `json:"raw" gorm:"type:text"`

	// Annotation posts point back at the post they describe
	ActionCode       string  `json:"action_code,omitempty" gorm:"type:varchar(64)"`
	ActionCodeWho    string  `json:"action_code_who,omitempty" gorm:"type:varchar(255)"`
	ActionCodePostID *uint64 `json:"action_code_post_id,omitempty" gorm:"index"`

	// Timestamps
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name for the Post model
func (Post) TableName() string {
	return "posts"
}

// IsFirstPost reports whether the post opens its topic
func (p *Post) IsFirstPost() bool {
	return p.PostNumber == 1
}

// IsAnnotation reports whether the post is a small action or whisper
func (p *Post) IsAnnotation() bool {
	return p.PostType == PostTypeSmallAction || p.PostType == PostTypeWhisper
}
