package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valu/keyrotation/internal/model"
)

var start = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newWorkflow(t *testing.T, steps ...string) model.Workflow {
	t.Helper()
	k := model.APIKey{ID: "key-1", Name: "Production API", PlatformName: "AWS"}
	wf, err := New("tenant", k, "", steps, start)
	require.NoError(t, err)
	return wf
}

func statuses(wf model.Workflow) []model.StepStatus {
	out := make([]model.StepStatus, len(wf.Steps))
	for i, s := range wf.Steps {
		out[i] = s.Status
	}
	return out
}

func TestNew_DefaultSteps(t *testing.T) {
	wf := newWorkflow(t)

	assert.Equal(t, "Rotate Production API", wf.Name)
	assert.Equal(t, "AWS", wf.Subtitle)
	assert.Equal(t, "key-1", wf.KeyID)
	assert.Equal(t, 1, wf.CurrentStep)
	assert.Equal(t, 5, wf.TotalSteps)
	assert.Equal(t, model.WorkflowInProgress, wf.Status)
	assert.Equal(t, start.Add(5*StepEstimate), wf.EstimatedCompletion)

	require.Len(t, wf.Steps, 5)
	for i, s := range wf.Steps {
		assert.Equal(t, DefaultSteps[i], s.Name)
		assert.Equal(t, i+1, s.StepNumber)
		assert.Equal(t, wf.ID, s.WorkflowID)
		assert.Nil(t, s.CompletedAt)
	}
	assert.Equal(t, []model.StepStatus{model.StepCurrent, model.StepPending, model.StepPending, model.StepPending, model.StepPending}, statuses(wf))
	assert.NoError(t, Check(wf))
}

func TestNew_CustomSteps(t *testing.T) {
	wf := newWorkflow(t, "Create key", " Swap secret ")
	assert.Equal(t, 2, wf.TotalSteps)
	assert.Equal(t, "Swap secret", wf.Steps[1].Name)

	_, err := New("tenant", model.APIKey{}, "", []string{"ok", "  "}, start)
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAdvance_CompletesInOrder(t *testing.T) {
	wf := newWorkflow(t)
	n := wf.TotalSteps

	for step := 1; step <= n; step++ {
		assert.Equal(t, step, wf.CurrentStep)
		res, err := Advance(wf, step, true, start.Add(time.Duration(step)*time.Hour))
		require.NoError(t, err)
		wf = res.Workflow
		require.NoError(t, Check(wf))
		assert.Equal(t, step == n, res.Completed)
		require.NotNil(t, wf.Steps[step-1].CompletedAt)
	}

	assert.Equal(t, n, wf.CurrentStep)
	assert.Equal(t, model.WorkflowCompleted, wf.Status)
	for _, s := range wf.Steps {
		assert.Equal(t, model.StepCompleted, s.Status)
	}
}

func TestAdvance_ReportsChangedSteps(t *testing.T) {
	wf := newWorkflow(t)
	res, err := Advance(wf, 1, true, start)
	require.NoError(t, err)
	require.Len(t, res.Changed, 2)
	assert.Equal(t, model.StepCompleted, res.Changed[0].Status)
	assert.Equal(t, 2, res.Changed[1].StepNumber)
	assert.Equal(t, model.StepCurrent, res.Changed[1].Status)

	// input is left untouched
	assert.Equal(t, model.StepCurrent, wf.Steps[0].Status)
	assert.Equal(t, 1, wf.CurrentStep)
}

func TestAdvance_RejectsOutOfOrder(t *testing.T) {
	wf := newWorkflow(t)
	_, err := Advance(wf, 3, true, start)
	assert.ErrorIs(t, err, ErrOutOfOrder)

	_, err = Advance(wf, 0, true, start)
	assert.ErrorIs(t, err, ErrStepOutOfRange)
	_, err = Advance(wf, 6, true, start)
	assert.ErrorIs(t, err, ErrStepOutOfRange)
}

func TestAdvance_Uncomplete(t *testing.T) {
	wf := newWorkflow(t)
	res, err := Advance(wf, 1, true, start)
	require.NoError(t, err)
	res, err = Advance(res.Workflow, 2, true, start)
	require.NoError(t, err)
	wf = res.Workflow
	assert.Equal(t, 3, wf.CurrentStep)

	_, err = Advance(wf, 1, false, start)
	assert.ErrorIs(t, err, ErrOutOfOrder)

	res, err = Advance(wf, 2, false, start)
	require.NoError(t, err)
	wf = res.Workflow
	assert.Equal(t, 2, wf.CurrentStep)
	assert.Nil(t, wf.Steps[1].CompletedAt)
	assert.Equal(t, []model.StepStatus{model.StepCompleted, model.StepCurrent, model.StepPending, model.StepPending, model.StepPending}, statuses(wf))
	assert.NoError(t, Check(wf))
	assert.False(t, res.Completed)

	_, err = Advance(newWorkflow(t), 1, false, start)
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func TestAdvance_ClosedWorkflow(t *testing.T) {
	wf := newWorkflow(t, "only")
	res, err := Advance(wf, 1, true, start)
	require.NoError(t, err)
	assert.True(t, res.Completed)

	_, err = Advance(res.Workflow, 1, false, start)
	assert.ErrorIs(t, err, ErrWorkflowClosed)
	_, err = Fail(res.Workflow)
	assert.ErrorIs(t, err, ErrWorkflowClosed)
}

func TestFail(t *testing.T) {
	wf, err := Fail(newWorkflow(t))
	require.NoError(t, err)
	assert.Equal(t, model.WorkflowFailed, wf.Status)

	_, err = Advance(wf, 1, true, start)
	assert.ErrorIs(t, err, ErrWorkflowClosed)
	_, err = Fail(wf)
	assert.ErrorIs(t, err, ErrWorkflowClosed)
}

func TestCheck_DetectsBrokenPartition(t *testing.T) {
	wf := newWorkflow(t)
	wf.Steps[3].Status = model.StepCompleted
	assert.Error(t, Check(wf))

	wf = newWorkflow(t)
	wf.CurrentStep = 9
	assert.Error(t, Check(wf))

	wf = newWorkflow(t)
	wf.Steps = wf.Steps[:4]
	assert.Error(t, Check(wf))
}
