package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/valu/keyrotation/internal/model"
)

const workflowColumns = `id, tenant_id, name, subtitle, key_id, current_step, total_steps,
	started_at, estimated_completion, status`

const workflowValues = `:id, :tenant_id, :name, :subtitle, :key_id, :current_step, :total_steps,
	:started_at, :estimated_completion, :status`

const stepColumns = `id, workflow_id, tenant_id, step_number, name, status, completed_at`

const stepValues = `:id, :workflow_id, :tenant_id, :step_number, :name, :status, :completed_at`

func (s *SQLStore) ListWorkflows(ctx context.Context, tenantID string, f WorkflowFilter) ([]model.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM rotation_workflows WHERE tenant_id = ?`
	args := []any{tenantID}
	if f.KeyID != "" {
		query += ` AND key_id = ?`
		args = append(args, f.KeyID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY started_at DESC, id`

	workflows := []model.Workflow{}
	if err := s.sel(ctx, &workflows, query, args...); err != nil {
		return nil, fmt.Errorf("listing workflows: %w", err)
	}
	if err := s.attachSteps(ctx, workflows); err != nil {
		return nil, err
	}
	return workflows, nil
}

func (s *SQLStore) GetWorkflow(ctx context.Context, tenantID, id string) (*model.Workflow, error) {
	var wf model.Workflow
	err := s.get(ctx, &wf,
		`SELECT `+workflowColumns+` FROM rotation_workflows WHERE tenant_id = ? AND id = ?`,
		tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("getting workflow %s: %w", id, err)
	}
	list := []model.Workflow{wf}
	if err := s.attachSteps(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// attachSteps loads the steps of every workflow in one query.
func (s *SQLStore) attachSteps(ctx context.Context, workflows []model.Workflow) error {
	if len(workflows) == 0 {
		return nil
	}
	ids := lo.Map(workflows, func(wf model.Workflow, _ int) string { return wf.ID })
	query, args, err := sqlx.In(
		`SELECT `+stepColumns+` FROM workflow_steps WHERE workflow_id IN (?) ORDER BY workflow_id, step_number`, ids)
	if err != nil {
		return fmt.Errorf("building step query: %w", err)
	}
	var steps []model.WorkflowStep
	if err := s.sel(ctx, &steps, query, args...); err != nil {
		return fmt.Errorf("loading workflow steps: %w", err)
	}
	byWorkflow := lo.GroupBy(steps, func(st model.WorkflowStep) string { return st.WorkflowID })
	for i := range workflows {
		workflows[i].Steps = byWorkflow[workflows[i].ID]
		if workflows[i].Steps == nil {
			workflows[i].Steps = []model.WorkflowStep{}
		}
	}
	return nil
}

// InsertWorkflow writes the workflow and all its steps in one
// transaction, so a workflow never exists without its steps.
func (s *SQLStore) InsertWorkflow(ctx context.Context, wf *model.Workflow) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO rotation_workflows (`+workflowColumns+`) VALUES (`+workflowValues+`)`, wf); err != nil {
			return err
		}
		return insertSteps(ctx, tx, wf.Steps)
	})
	if err != nil {
		return fmt.Errorf("inserting workflow: %w", err)
	}
	return nil
}

func insertSteps(ctx context.Context, tx *sqlx.Tx, steps []model.WorkflowStep) error {
	for i := range steps {
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO workflow_steps (`+stepColumns+`) VALUES (`+stepValues+`)`, &steps[i]); err != nil {
			return fmt.Errorf("inserting step %d: %w", steps[i].StepNumber, err)
		}
	}
	return nil
}

// UpdateWorkflow saves the workflow row and the state of each of its
// steps in one transaction.
func (s *SQLStore) UpdateWorkflow(ctx context.Context, wf *model.Workflow) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := namedOne(ctx, tx, `
			UPDATE rotation_workflows
			SET name = :name, subtitle = :subtitle, current_step = :current_step,
				total_steps = :total_steps, estimated_completion = :estimated_completion, status = :status
			WHERE tenant_id = :tenant_id AND id = :id`, wf); err != nil {
			return err
		}
		for i := range wf.Steps {
			if err := namedOne(ctx, tx, `
				UPDATE workflow_steps
				SET name = :name, status = :status, completed_at = :completed_at
				WHERE workflow_id = :workflow_id AND id = :id`, &wf.Steps[i]); err != nil {
				return fmt.Errorf("updating step %d: %w", wf.Steps[i].StepNumber, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("updating workflow %s: %w", wf.ID, err)
	}
	return nil
}

func (s *SQLStore) PutWorkflow(ctx context.Context, wf model.Workflow) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO rotation_workflows (`+workflowColumns+`) VALUES (`+workflowValues+`)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name, subtitle = excluded.subtitle, key_id = excluded.key_id,
				current_step = excluded.current_step, total_steps = excluded.total_steps,
				started_at = excluded.started_at, estimated_completion = excluded.estimated_completion,
				status = excluded.status`, &wf); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM workflow_steps WHERE workflow_id = ?`), wf.ID); err != nil {
			return err
		}
		return insertSteps(ctx, tx, wf.Steps)
	})
	if err != nil {
		return fmt.Errorf("putting workflow %s: %w", wf.ID, err)
	}
	return nil
}

func (s *SQLStore) DeleteWorkflow(ctx context.Context, tenantID, id string) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM workflow_steps WHERE tenant_id = ? AND workflow_id = ?`), tenantID, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM rotation_workflows WHERE tenant_id = ? AND id = ?`), tenantID, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting workflow %s: %w", id, err)
	}
	return nil
}
