package model

import "time"

// Activity is an append-only audit entry. Display fields are copied at
// write time so entries survive deletion of what they describe.
type Activity struct {
	ID            string       `json:"id" db:"id"`
	TenantID      string       `json:"-" db:"tenant_id"`
	Type          ActivityType `json:"type" db:"type"`
	PlatformName  string       `json:"platform_name" db:"platform_name"`
	PlatformIcon  string       `json:"platform_icon" db:"platform_icon"`
	PlatformColor string       `json:"platform_color" db:"platform_color"`
	KeyName       string       `json:"key_name" db:"key_name"`
	WorkflowName  string       `json:"workflow_name" db:"workflow_name"`
	Status        string       `json:"status" db:"status"`
	CreatedAt     time.Time    `json:"timestamp" db:"created_at"`

	Date string `json:"date" db:"-"`
}

type ActivityType string

const (
	ActivityPlatformAdded     ActivityType = "platform_added"
	ActivityWorkflowCreated   ActivityType = "workflow_created"
	ActivityKeyRotated        ActivityType = "key_rotated"
	ActivityWorkflowCompleted ActivityType = "workflow_completed"
)

const ActivityDateLayout = "Jan 2, 2006"

// WithDate fills the formatted date.
func (a Activity) WithDate() Activity {
	a.Date = a.CreatedAt.Format(ActivityDateLayout)
	return a
}
