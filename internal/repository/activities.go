package repository

import (
	"context"
	"fmt"

	"github.com/valu/keyrotation/internal/model"
)

const activityColumns = `id, tenant_id, type, platform_name, platform_icon, platform_color,
	key_name, workflow_name, status, created_at`

func (s *SQLStore) InsertActivity(ctx context.Context, a *model.Activity) error {
	_, err := s.q.NamedExecContext(ctx, `
		INSERT INTO activities (`+activityColumns+`)
		VALUES (:id, :tenant_id, :type, :platform_name, :platform_icon, :platform_color,
			:key_name, :workflow_name, :status, :created_at)
		ON CONFLICT (id) DO NOTHING`, a)
	if err != nil {
		return fmt.Errorf("inserting activity: %w", err)
	}
	return nil
}

// ListActivities returns the newest activities first.
func (s *SQLStore) ListActivities(ctx context.Context, tenantID string, limit int) ([]model.Activity, error) {
	activities := []model.Activity{}
	err := s.sel(ctx, &activities,
		`SELECT `+activityColumns+` FROM activities WHERE tenant_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	return activities, nil
}

func (s *SQLStore) GetActivity(ctx context.Context, tenantID, id string) (*model.Activity, error) {
	var a model.Activity
	err := s.get(ctx, &a,
		`SELECT `+activityColumns+` FROM activities WHERE tenant_id = ? AND id = ?`,
		tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("getting activity %s: %w", id, err)
	}
	return &a, nil
}
