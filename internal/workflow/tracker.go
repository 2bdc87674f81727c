// Package workflow steps a rotation workflow through its fixed, ordered
// list of steps. Everything here is pure: callers persist the result.
package workflow

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/valu/keyrotation/internal/model"
)

var DefaultSteps = []string{
	"Generate new API key",
	"Update applications",
	"Test new key",
	"Disable old key",
	"Verify and complete",
}

// Time budgeted per step when estimating completion.
const StepEstimate = 24 * time.Hour

var (
	ErrWorkflowClosed = errors.New("workflow is no longer in progress")
	ErrStepOutOfRange = errors.New("step number out of range")
	ErrOutOfOrder     = errors.New("steps must be completed in order")
)

// New starts a workflow for key. An empty stepNames uses DefaultSteps.
func New(tenantID string, key model.APIKey, name string, stepNames []string, now time.Time) (model.Workflow, error) {
	if len(stepNames) == 0 {
		stepNames = DefaultSteps
	}
	for i, s := range stepNames {
		if strings.TrimSpace(s) == "" {
			return model.Workflow{}, model.NewValidationError("steps", "step %d has no name", i+1)
		}
	}
	if strings.TrimSpace(name) == "" {
		name = "Rotate " + key.Name
	}

	now = now.UTC()
	wf := model.Workflow{
		ID:                  uuid.NewString(),
		TenantID:            tenantID,
		Name:                name,
		Subtitle:            key.PlatformName,
		KeyID:               key.ID,
		CurrentStep:         1,
		TotalSteps:          len(stepNames),
		StartedAt:           now,
		EstimatedCompletion: now.Add(time.Duration(len(stepNames)) * StepEstimate),
		Status:              model.WorkflowInProgress,
		Steps:               make([]model.WorkflowStep, len(stepNames)),
	}
	for i, s := range stepNames {
		status := model.StepPending
		if i == 0 {
			status = model.StepCurrent
		}
		wf.Steps[i] = model.WorkflowStep{
			ID:         uuid.NewString(),
			WorkflowID: wf.ID,
			TenantID:   tenantID,
			StepNumber: i + 1,
			Name:       strings.TrimSpace(s),
			Status:     status,
		}
	}
	return wf, nil
}

// Result is the outcome of a single Advance call.
type Result struct {
	Workflow model.Workflow
	// Changed holds the steps whose status moved, in step order.
	Changed []model.WorkflowStep
	// Completed is set when the final step was just completed; the key the
	// workflow rotates is then due to be reset.
	Completed bool
}

// Advance completes (or un-completes) one step.
//
// Completing is only accepted for the current step: the next step becomes
// current and CurrentStep moves up by one, or, for the last step, the
// workflow is completed. Un-completing is only accepted for the most
// recently completed step, which becomes current again while the step
// after it goes back to pending.
func Advance(wf model.Workflow, stepNumber int, completed bool, now time.Time) (Result, error) {
	if wf.Status != model.WorkflowInProgress {
		return Result{}, fmt.Errorf("%w: status is %s", ErrWorkflowClosed, wf.Status)
	}
	if stepNumber < 1 || stepNumber > wf.TotalSteps {
		return Result{}, fmt.Errorf("%w: %d not in [1, %d]", ErrStepOutOfRange, stepNumber, wf.TotalSteps)
	}
	if err := Check(wf); err != nil {
		return Result{}, err
	}

	wf.Steps = slices.Clone(wf.Steps)
	step := func(n int) *model.WorkflowStep { return &wf.Steps[n-1] }
	var changed []int

	if completed {
		if stepNumber != wf.CurrentStep {
			return Result{}, fmt.Errorf("%w: step %d is current, not %d", ErrOutOfOrder, wf.CurrentStep, stepNumber)
		}
		at := now.UTC()
		step(stepNumber).Status = model.StepCompleted
		step(stepNumber).CompletedAt = &at
		changed = append(changed, stepNumber)

		if stepNumber == wf.TotalSteps {
			wf.Status = model.WorkflowCompleted
		} else {
			step(stepNumber + 1).Status = model.StepCurrent
			wf.CurrentStep++
			changed = append(changed, stepNumber+1)
		}
	} else {
		if stepNumber != wf.CurrentStep-1 {
			return Result{}, fmt.Errorf("%w: only step %d can be reopened", ErrOutOfOrder, wf.CurrentStep-1)
		}
		step(stepNumber).Status = model.StepCurrent
		step(stepNumber).CompletedAt = nil
		step(wf.CurrentStep).Status = model.StepPending
		changed = append(changed, stepNumber, wf.CurrentStep)
		wf.CurrentStep--
	}

	res := Result{Workflow: wf, Completed: wf.Status == model.WorkflowCompleted}
	for _, n := range changed {
		res.Changed = append(res.Changed, *step(n))
	}
	return res, nil
}

// Fail closes a workflow that has not finished.
func Fail(wf model.Workflow) (model.Workflow, error) {
	if wf.Status.Terminal() {
		return model.Workflow{}, fmt.Errorf("%w: status is %s", ErrWorkflowClosed, wf.Status)
	}
	wf.Status = model.WorkflowFailed
	return wf, nil
}

// Check verifies that CurrentStep is in range and that step statuses
// partition as completed, then current, then pending. A completed
// workflow has every step completed.
func Check(wf model.Workflow) error {
	if wf.TotalSteps < 1 || len(wf.Steps) != wf.TotalSteps {
		return fmt.Errorf("workflow %s has %d steps, want %d", wf.ID, len(wf.Steps), wf.TotalSteps)
	}
	if wf.CurrentStep < 1 || wf.CurrentStep > wf.TotalSteps {
		return fmt.Errorf("workflow %s current step %d not in [1, %d]", wf.ID, wf.CurrentStep, wf.TotalSteps)
	}
	for i, s := range wf.Steps {
		n := i + 1
		if s.StepNumber != n {
			return fmt.Errorf("workflow %s step at position %d is numbered %d", wf.ID, n, s.StepNumber)
		}
		want := expectedStatus(wf, n)
		if s.Status != want {
			return fmt.Errorf("workflow %s step %d is %s, want %s", wf.ID, n, s.Status, want)
		}
	}
	return nil
}

func expectedStatus(wf model.Workflow, n int) model.StepStatus {
	switch {
	case n < wf.CurrentStep:
		return model.StepCompleted
	case n > wf.CurrentStep:
		return model.StepPending
	case wf.Status == model.WorkflowCompleted:
		return model.StepCompleted
	default:
		return model.StepCurrent
	}
}
