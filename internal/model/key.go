package model

import (
	"fmt"
	"time"
)

type APIKey struct {
	ID            string    `json:"id" db:"id"`
	TenantID      string    `json:"-" db:"tenant_id"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description" db:"description"`
	PlatformID    string    `json:"platform_id" db:"platform_id"`
	PlatformName  string    `json:"platform_name" db:"platform_name"`
	PlatformIcon  string    `json:"platform_icon" db:"platform_icon"`
	PlatformColor string    `json:"platform_color" db:"platform_color"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	LastUsedAt    time.Time `json:"last_used_at" db:"last_used_at"`
	Risk          Risk      `json:"risk" db:"risk"`
	Status        KeyStatus `json:"status" db:"status"`

	// Derived at read time from CreatedAt, see WithAge.
	AgeDays int    `json:"age_days" db:"-"`
	Age     string `json:"age" db:"-"`
}

type KeyStatus string

const (
	KeyStatusHealthy    KeyStatus = "Healthy"
	KeyStatusRotateNow  KeyStatus = "Rotate Now"
	KeyStatusInProgress KeyStatus = "In Progress"
)

func (s KeyStatus) Valid() bool {
	switch s {
	case KeyStatusHealthy, KeyStatusRotateNow, KeyStatusInProgress:
		return true
	}
	return false
}

type Risk string

const (
	RiskLow    Risk = "Low"
	RiskMedium Risk = "Medium"
	RiskHigh   Risk = "High"
)

func (r Risk) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// AgeInDays returns the number of whole days between created and now.
func AgeInDays(created, now time.Time) int {
	if now.Before(created) {
		return 0
	}
	return int(now.Sub(created).Hours() / 24)
}

// AgeLabel renders an age the way the dashboard shows it, e.g. "45 days".
func AgeLabel(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// WithAge fills the derived age fields relative to now.
func (k APIKey) WithAge(now time.Time) APIKey {
	k.AgeDays = AgeInDays(k.CreatedAt, now)
	k.Age = AgeLabel(k.AgeDays)
	return k
}

// ClassifyAge derives risk and status from a key's age. Keys older than
// 180 days must be rotated, keys between 91 and 180 days are flagged as
// medium risk but stay healthy.
func ClassifyAge(ageDays int) (Risk, KeyStatus) {
	switch {
	case ageDays > 180:
		return RiskHigh, KeyStatusRotateNow
	case ageDays > 90:
		return RiskMedium, KeyStatusHealthy
	default:
		return RiskLow, KeyStatusHealthy
	}
}
