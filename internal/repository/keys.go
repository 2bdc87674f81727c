package repository

import (
	"context"
	"fmt"

	"github.com/valu/keyrotation/internal/model"
)

const keyColumns = `id, tenant_id, name, description, platform_id, platform_name, platform_icon,
	platform_color, created_at, last_used_at, risk, status`

const keyValues = `:id, :tenant_id, :name, :description, :platform_id, :platform_name, :platform_icon,
	:platform_color, :created_at, :last_used_at, :risk, :status`

func (s *SQLStore) ListKeys(ctx context.Context, tenantID string, f KeyFilter) ([]model.APIKey, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys WHERE tenant_id = ?`
	args := []any{tenantID}
	if f.PlatformID != "" {
		query += ` AND platform_id = ?`
		args = append(args, f.PlatformID)
	}
	query += ` ORDER BY created_at DESC, id`

	keys := []model.APIKey{}
	if err := s.sel(ctx, &keys, query, args...); err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	return keys, nil
}

func (s *SQLStore) GetKey(ctx context.Context, tenantID, id string) (*model.APIKey, error) {
	var k model.APIKey
	err := s.get(ctx, &k,
		`SELECT `+keyColumns+` FROM api_keys WHERE tenant_id = ? AND id = ?`,
		tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("getting key %s: %w", id, err)
	}
	return &k, nil
}

func (s *SQLStore) InsertKey(ctx context.Context, k *model.APIKey) error {
	_, err := s.q.NamedExecContext(ctx,
		`INSERT INTO api_keys (`+keyColumns+`) VALUES (`+keyValues+`)`, k)
	if err != nil {
		return fmt.Errorf("inserting key: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdateKey(ctx context.Context, k *model.APIKey) error {
	err := namedOne(ctx, s.q, `
		UPDATE api_keys
		SET name = :name, description = :description, platform_id = :platform_id,
			platform_name = :platform_name, platform_icon = :platform_icon,
			platform_color = :platform_color, last_used_at = :last_used_at,
			risk = :risk, status = :status
		WHERE tenant_id = :tenant_id AND id = :id`, k)
	if err != nil {
		return fmt.Errorf("updating key %s: %w", k.ID, err)
	}
	return nil
}

func (s *SQLStore) PutKey(ctx context.Context, k model.APIKey) error {
	_, err := s.q.NamedExecContext(ctx, `
		INSERT INTO api_keys (`+keyColumns+`) VALUES (`+keyValues+`)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, description = excluded.description,
			platform_id = excluded.platform_id, platform_name = excluded.platform_name,
			platform_icon = excluded.platform_icon, platform_color = excluded.platform_color,
			created_at = excluded.created_at, last_used_at = excluded.last_used_at,
			risk = excluded.risk, status = excluded.status`, k)
	if err != nil {
		return fmt.Errorf("putting key %s: %w", k.ID, err)
	}
	return nil
}

func (s *SQLStore) DeleteKey(ctx context.Context, tenantID, id string) error {
	err := s.execOne(ctx, `DELETE FROM api_keys WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("deleting key %s: %w", id, err)
	}
	return nil
}
