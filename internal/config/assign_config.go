package config

import (
	"time"
)

// Reminder frequencies in minutes
const (
	RemindNever     = 0
	RemindDaily     = 1440
	RemindWeekly    = 10080
	RemindMonthly   = 43200
	RemindQuarterly = 129600
)

// AssignSettings holds the assignment feature configuration
type AssignSettings struct {
	Enabled bool
	// Public makes assignments visible to everyone and annotation posts
	// small actions instead of whispers
	Public bool
	// AllowedOnGroups seeds the persisted allow-list (ids or names)
	AllowedOnGroups []string

	UnassignOnClose        bool
	ReassignOnOpen         bool
	UnassignOnGroupArchive bool

	EnableStatus      bool
	Statuses          []string
	DefaultStatus     string
	MaxAssignedTopics int
	ByStaffMention    bool

	// Reminders
	RemindFrequency             int
	ReminderInterval            time.Duration
	ReminderThreshold           int
	ReminderTopicLimit          int
	ReminderRespectWorkingHours bool
	WorkingHoursStart           int
	WorkingHoursEnd             int

	StoreTimeout      time.Duration
	NotifyConcurrency int

	// Outbound webhook, disabled when WebhookURL is empty
	WebhookURL     string
	WebhookSecret  string
	WebhookTimeout time.Duration
}

// GetAssignSettings returns assignment configuration from environment variables
func GetAssignSettings() *AssignSettings {
	return &AssignSettings{
		Enabled:                getEnvBool("ASSIGN_ENABLED", true),
		Public:                 getEnvBool("ASSIGN_PUBLIC", false),
		AllowedOnGroups:        getEnvList("ASSIGN_ALLOWED_ON_GROUPS", "staff"),
		UnassignOnClose:        getEnvBool("ASSIGN_UNASSIGN_ON_CLOSE", false),
		ReassignOnOpen:         getEnvBool("ASSIGN_REASSIGN_ON_OPEN", false),
		UnassignOnGroupArchive: getEnvBool("ASSIGN_UNASSIGN_ON_GROUP_ARCHIVE", false),

		EnableStatus:      getEnvBool("ASSIGN_ENABLE_STATUS", false),
		Statuses:          getEnvList("ASSIGN_STATUSES", "New|In Progress|Done"),
		DefaultStatus:     getEnv("ASSIGN_DEFAULT_STATUS", "New"),
		MaxAssignedTopics: getEnvInt("ASSIGN_MAX_ASSIGNED_TOPICS", 10),
		ByStaffMention:    getEnvBool("ASSIGN_BY_STAFF_MENTION", false),

		RemindFrequency:             getEnvInt("ASSIGN_REMIND_FREQUENCY", RemindNever),
		ReminderInterval:            getEnvDuration("ASSIGN_REMINDER_INTERVAL", time.Hour),
		ReminderThreshold:           getEnvInt("ASSIGN_REMINDER_THRESHOLD", 1),
		ReminderTopicLimit:          getEnvInt("ASSIGN_REMINDER_TOPIC_LIMIT", 3),
		ReminderRespectWorkingHours: getEnvBool("ASSIGN_REMINDER_RESPECT_WORKING_HOURS", true),
		WorkingHoursStart:           getEnvInt("ASSIGN_WORKING_HOURS_START", 9),
		WorkingHoursEnd:             getEnvInt("ASSIGN_WORKING_HOURS_END", 17),

		StoreTimeout:      getEnvDuration("ASSIGN_STORE_TIMEOUT", 5*time.Second),
		NotifyConcurrency: getEnvInt("ASSIGN_NOTIFY_CONCURRENCY", 8),

		WebhookURL:     getEnv("ASSIGN_WEBHOOK_URL", ""),
		WebhookSecret:  getEnv("ASSIGN_WEBHOOK_SECRET", ""),
		WebhookTimeout: getEnvDuration("ASSIGN_WEBHOOK_TIMEOUT", 10*time.Second),
	}
}

// DefaultAssignSettings returns settings with every default applied,
// ignoring the environment
func DefaultAssignSettings() *AssignSettings {
	return &AssignSettings{
		Enabled:                     true,
		AllowedOnGroups:             []string{"staff"},
		Statuses:                    []string{"New", "In Progress", "Done"},
		DefaultStatus:               "New",
		MaxAssignedTopics:           10,
		RemindFrequency:             RemindNever,
		ReminderInterval:            time.Hour,
		ReminderThreshold:           1,
		ReminderTopicLimit:          3,
		ReminderRespectWorkingHours: true,
		WorkingHoursStart:           9,
		WorkingHoursEnd:             17,
		StoreTimeout:                5 * time.Second,
		NotifyConcurrency:           8,
		WebhookTimeout:              10 * time.Second,
	}
}

// IsValidStatus reports whether status is one of the configured statuses
func (s *AssignSettings) IsValidStatus(status string) bool {
	for _, allowed := range s.Statuses {
		if allowed == status {
			return true
		}
	}
	return false
}
