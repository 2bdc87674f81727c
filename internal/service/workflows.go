package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/valu/keyrotation/internal/metrics"
	"github.com/valu/keyrotation/internal/model"
	"github.com/valu/keyrotation/internal/repository"
	"github.com/valu/keyrotation/internal/workflow"
)

type WorkflowInput struct {
	KeyID string `json:"key_id"`
	Name  string `json:"name"`
	// Steps overrides workflow.DefaultSteps when not empty.
	Steps []string `json:"steps"`
}

func (s *Service) ListWorkflows(ctx context.Context, tenantID string, status model.WorkflowStatus) ([]model.Workflow, error) {
	if status != "" && !status.Valid() {
		return nil, model.NewValidationError("status", "unknown workflow status %q", status)
	}
	workflows, err := s.store.ListWorkflows(ctx, tenantID, repository.WorkflowFilter{Status: status})
	if err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Msg("Failed to list workflows")
		return nil, err
	}
	return workflows, nil
}

func (s *Service) GetWorkflow(ctx context.Context, tenantID, id string) (*model.Workflow, error) {
	return s.store.GetWorkflow(ctx, tenantID, id)
}

// StartWorkflow opens a rotation for a key. A key has at most one
// workflow in progress.
func (s *Service) StartWorkflow(ctx context.Context, tenantID string, in WorkflowInput) (*model.Workflow, error) {
	if in.KeyID == "" {
		return nil, model.NewValidationError("key_id", "key is required")
	}
	k, err := s.store.GetKey(ctx, tenantID, in.KeyID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.NewValidationError("key_id", "unknown key")
	}
	if err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Msg("Failed to load key for workflow")
		return nil, err
	}

	active, err := s.store.ListWorkflows(ctx, tenantID, repository.WorkflowFilter{KeyID: k.ID, Status: model.WorkflowInProgress})
	if err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Msg("Failed to check running workflows")
		return nil, err
	}
	if len(active) > 0 {
		return nil, fmt.Errorf("%w: key %s is already being rotated by workflow %s", ErrConflict, k.Name, active[0].ID)
	}

	wf, err := workflow.New(tenantID, *k, in.Name, in.Steps, s.clock())
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertWorkflow(ctx, &wf); err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Str("key", k.ID).Msg("Failed to create workflow")
		return nil, fmt.Errorf("creating workflow: %w", err)
	}
	metrics.WorkflowTransitions.WithLabelValues(string(wf.Status)).Inc()
	s.log.Info().Str("tenant", tenantID).Str("workflow", wf.ID).Str("key", k.ID).Msg("Rotation workflow started")

	s.record(ctx, model.Activity{
		TenantID:      tenantID,
		Type:          model.ActivityWorkflowCreated,
		PlatformName:  k.PlatformName,
		PlatformIcon:  k.PlatformIcon,
		PlatformColor: k.PlatformColor,
		KeyName:       k.Name,
		WorkflowName:  wf.Name,
		Status:        string(wf.Status),
	})
	return &wf, nil
}

// AdvanceStep completes or reopens one step. Completing the last step
// closes the workflow and resets the rotated key to low risk.
func (s *Service) AdvanceStep(ctx context.Context, tenantID, id string, stepNumber int, completed bool) (*model.Workflow, error) {
	wf, err := s.store.GetWorkflow(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	res, err := workflow.Advance(*wf, stepNumber, completed, s.clock())
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateWorkflow(ctx, &res.Workflow); err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Str("workflow", id).Int("step", stepNumber).Msg("Failed to save workflow progress")
		return nil, fmt.Errorf("saving workflow progress: %w", err)
	}
	metrics.WorkflowTransitions.WithLabelValues(string(res.Workflow.Status)).Inc()
	for _, step := range res.Changed {
		s.log.Info().Str("tenant", tenantID).Str("workflow", id).
			Int("step", step.StepNumber).Str("status", string(step.Status)).Msg("Workflow step moved")
	}

	if res.Completed {
		if err := s.finishRotation(ctx, res.Workflow); err != nil {
			return nil, err
		}
	}
	return &res.Workflow, nil
}

// finishRotation resets the key a completed workflow rotated.
func (s *Service) finishRotation(ctx context.Context, wf model.Workflow) error {
	s.log.Info().Str("tenant", wf.TenantID).Str("workflow", wf.ID).Msg("Rotation workflow completed")

	k, err := s.store.GetKey(ctx, wf.TenantID, wf.KeyID)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Warn().Str("workflow", wf.ID).Str("key", wf.KeyID).Msg("Rotated key no longer exists")
		s.record(ctx, model.Activity{TenantID: wf.TenantID, Type: model.ActivityWorkflowCompleted, WorkflowName: wf.Name, Status: string(wf.Status)})
		return nil
	}
	if err != nil {
		s.log.Error().Err(err).Str("workflow", wf.ID).Msg("Failed to load rotated key")
		return fmt.Errorf("resetting rotated key: %w", err)
	}

	k.Risk = model.RiskLow
	k.Status = model.KeyStatusHealthy
	k.LastUsedAt = s.clock()
	if err := s.store.UpdateKey(ctx, k); err != nil {
		s.log.Error().Err(err).Str("workflow", wf.ID).Str("key", k.ID).Msg("Failed to reset rotated key")
		return fmt.Errorf("resetting rotated key: %w", err)
	}

	base := model.Activity{
		TenantID:      wf.TenantID,
		PlatformName:  k.PlatformName,
		PlatformIcon:  k.PlatformIcon,
		PlatformColor: k.PlatformColor,
		KeyName:       k.Name,
		WorkflowName:  wf.Name,
	}
	rotated := base
	rotated.Type = model.ActivityKeyRotated
	rotated.Status = string(k.Status)
	s.record(ctx, rotated)

	done := base
	done.Type = model.ActivityWorkflowCompleted
	done.Status = string(wf.Status)
	s.record(ctx, done)
	return nil
}

// FailWorkflow abandons a rotation. The key keeps its current state.
func (s *Service) FailWorkflow(ctx context.Context, tenantID, id string) (*model.Workflow, error) {
	wf, err := s.store.GetWorkflow(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	failed, err := workflow.Fail(*wf)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateWorkflow(ctx, &failed); err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Str("workflow", id).Msg("Failed to mark workflow failed")
		return nil, err
	}
	metrics.WorkflowTransitions.WithLabelValues(string(failed.Status)).Inc()
	return &failed, nil
}

func (s *Service) DeleteWorkflow(ctx context.Context, tenantID, id string) error {
	if err := s.store.DeleteWorkflow(ctx, tenantID, id); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error().Err(err).Str("tenant", tenantID).Str("workflow", id).Msg("Failed to delete workflow")
		}
		return err
	}
	return nil
}
