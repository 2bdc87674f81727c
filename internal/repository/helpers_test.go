package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/valu/keyrotation/internal/model"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func tmpStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func newPlatform(tenant, name string) *model.Platform {
	return &model.Platform{
		ID:              uuid.NewString(),
		TenantID:        tenant,
		Name:            name,
		Icon:            "aws",
		Color:           "orange",
		Status:          model.PlatformConnected,
		AdminPermission: model.DefaultAdminPermission,
		LastSync:        base,
		RotationPolicy:  model.DefaultRotationPolicy,
		AutoDiscovery:   model.AutoDiscoveryEnabled,
		CreatedAt:       base,
	}
}

func newKey(tenant string, p *model.Platform, name string, created time.Time) *model.APIKey {
	return &model.APIKey{
		ID:           uuid.NewString(),
		TenantID:     tenant,
		Name:         name,
		Description:  name + " key",
		PlatformID:   p.ID,
		PlatformName: p.Name,
		CreatedAt:    created,
		LastUsedAt:   created,
		Risk:         model.RiskLow,
		Status:       model.KeyStatusHealthy,
	}
}

func newWorkflow(tenant string, k *model.APIKey, steps ...string) *model.Workflow {
	wf := &model.Workflow{
		ID:                  uuid.NewString(),
		TenantID:            tenant,
		Name:                "Rotate " + k.Name,
		Subtitle:            k.PlatformName,
		KeyID:               k.ID,
		CurrentStep:         1,
		TotalSteps:          len(steps),
		StartedAt:           base,
		EstimatedCompletion: base.Add(24 * time.Hour),
		Status:              model.WorkflowInProgress,
	}
	for i, name := range steps {
		status := model.StepPending
		if i == 0 {
			status = model.StepCurrent
		}
		wf.Steps = append(wf.Steps, model.WorkflowStep{
			ID:         uuid.NewString(),
			WorkflowID: wf.ID,
			TenantID:   tenant,
			StepNumber: i + 1,
			Name:       name,
			Status:     status,
		})
	}
	return wf
}

func newActivity(tenant string, at time.Time) *model.Activity {
	return &model.Activity{
		ID:           uuid.NewString(),
		TenantID:     tenant,
		Type:         model.ActivityPlatformAdded,
		PlatformName: "AWS",
		Status:       "Connected",
		CreatedAt:    at,
	}
}
