package models

import "time"

// SettingAssignAllowedOnGroups is the persisted allow-list of groups whose
// members may assign
const SettingAssignAllowedOnGroups = "assign_allowed_on_groups"

// SiteSetting is a mutable, persisted setting
type SiteSetting struct {
	Name      string    `json:"name" gorm:"primaryKey;type:varchar(128)"`
	Value     string    `json:"value" gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the SiteSetting model
func (SiteSetting) TableName() string {
	return "site_settings"
}
