package model

import "time"

// Workflow is a fixed-length rotation checklist for one key.
type Workflow struct {
	ID                  string         `json:"id" db:"id"`
	TenantID            string         `json:"-" db:"tenant_id"`
	Name                string         `json:"name" db:"name"`
	Subtitle            string         `json:"subtitle" db:"subtitle"`
	KeyID               string         `json:"key_id" db:"key_id"`
	CurrentStep         int            `json:"current_step" db:"current_step"`
	TotalSteps          int            `json:"total_steps" db:"total_steps"`
	StartedAt           time.Time      `json:"started_at" db:"started_at"`
	EstimatedCompletion time.Time      `json:"estimated_completion" db:"estimated_completion"`
	Status              WorkflowStatus `json:"status" db:"status"`

	Steps []WorkflowStep `json:"steps" db:"-"`
}

type WorkflowStatus string

const (
	WorkflowPending    WorkflowStatus = "pending"
	WorkflowInProgress WorkflowStatus = "in_progress"
	WorkflowCompleted  WorkflowStatus = "completed"
	WorkflowFailed     WorkflowStatus = "failed"
)

func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowPending, WorkflowInProgress, WorkflowCompleted, WorkflowFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowCompleted || s == WorkflowFailed
}

type WorkflowStep struct {
	ID          string     `json:"id" db:"id"`
	WorkflowID  string     `json:"workflow_id" db:"workflow_id"`
	TenantID    string     `json:"-" db:"tenant_id"`
	StepNumber  int        `json:"step_number" db:"step_number"`
	Name        string     `json:"name" db:"name"`
	Status      StepStatus `json:"status" db:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepCurrent   StepStatus = "current"
	StepCompleted StepStatus = "completed"
)
