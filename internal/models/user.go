package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the local mirror of a forum user plus the assignment preferences
// this service owns (reminder frequency, snooze and last reminder time)
type User struct {
	ID       uint64 `json:"id" gorm:"primaryKey"`
	Username string `json:"username" gorm:"type:varchar(255);not null;uniqueIndex"`
	Name     string `json:"name" gorm:"type:varchar(255)"`
	Admin    bool   `json:"admin" gorm:"not null;default:false;index"`
	Active   bool   `json:"active" gorm:"not null;index"`

	SuspendedTill *time.Time `json:"suspended_till,omitempty"`
	Timezone      string     `json:"timezone,omitempty" gorm:"type:varchar(64)"`

	// Reminder preferences (minutes, nil means site default, 0 means never)
	RemindersFrequency *int       `json:"reminders_frequency,omitempty"`
	LastRemindedAt     *time.Time `json:"last_reminded_at,omitempty"`
	// No reminders are sent before SnoozedUntil
	SnoozedUntil       *time.Time `json:"reminders_snoozed_until,omitempty"`

	// Timestamps
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsSuspended reports whether the user is suspended at the given instant
func (u *User) IsSuspended(now time.Time) bool {
	return u.SuspendedTill != nil && u.SuspendedTill.After(now)
}

// CanReceiveNotifications reports whether the user is active and not suspended
func (u *User) CanReceiveNotifications(now time.Time) bool {
	return u.Active && !u.IsSuspended(now)
}

// DisplayName returns the name shown in notifications
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// UpdateRemindersFrequencyRequest represents the reminder preference update
type UpdateRemindersFrequencyRequest struct {
	Frequency *int `json:"frequency" binding:"required" example:"1440"`
}

// SnoozeRemindersRequest pauses reminders for a number of minutes; 0 ends
// the snooze
type SnoozeRemindersRequest struct {
	Minutes *int `json:"minutes" binding:"required" example:"480"`
}

// IsSnoozed reports whether reminders are paused at the given instant
func (u *User) IsSnoozed(now time.Time) bool {
	return u.SnoozedUntil != nil && u.SnoozedUntil.After(now)
}
