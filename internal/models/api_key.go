package models

import (
	"time"
)

// APIKey lets a forum process (webhooks, background jobs) act as a user
// without a JWT. Only the SHA-256 of the key is stored.
type APIKey struct {
	ID         uint64     `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	KeyHash    string     `json:"-" gorm:"type:varchar(64);not null;uniqueIndex"`
	Prefix     string     `json:"prefix" gorm:"type:varchar(16);not null"`
	UserID     uint64     `json:"user_id" gorm:"not null;uniqueIndex"`
	IsActive   bool       `json:"is_active" gorm:"not null;default:true;index"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// TableName specifies the table name for the APIKey model
func (APIKey) TableName() string {
	return "api_keys"
}

// APIKeyStatusRequest represents the request body for enabling or disabling a key
type APIKeyStatusRequest struct {
	IsActive bool `json:"is_active"`
}

// GeneratedAPIKeyResponse carries the plaintext key, shown once
type GeneratedAPIKeyResponse struct {
	Key    string  `json:"key"`
	APIKey *APIKey `json:"api_key"`
}
