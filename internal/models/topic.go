package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ArchetypeRegular        = "regular"
	ArchetypePrivateMessage = "private_message"
)

// Topic is the local mirror of a discussion topic.
// Topics are owned by the forum core; this service only reads them.
type Topic struct {
	ID        uint64 `json:"id" gorm:"primaryKey"`
	UserID    uint64 `json:"user_id" gorm:"index"`
	Title     string `json:"title" gorm:"type:varchar(255);not null"`
	Archetype string `json:"archetype" gorm:"type:varchar(32);not null;default:'regular'"`

	// Status
	Closed   bool `json:"closed" gorm:"not null;default:false"`
	Archived bool `json:"archived" gorm:"not null;default:false"`

	// Timestamps
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name for the Topic model
func (Topic) TableName() string {
	return "topics"
}

// IsPrivateMessage reports whether the topic is a private message
func (t *Topic) IsPrivateMessage() bool {
	return t.Archetype == ArchetypePrivateMessage
}

// TopicResponse is the short topic shape used by assignment lists
type TopicResponse struct {
	ID        uint64 `json:"id"`
	Title     string `json:"title"`
	Archetype string `json:"archetype"`
	Closed    bool   `json:"closed"`
}
