package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/valu/keyrotation/internal/model"
)

const platformColumns = `id, tenant_id, name, icon, color, status, key_count, admin_permission,
	last_sync, rotation_policy, auto_discovery, created_at`

const platformValues = `:id, :tenant_id, :name, :icon, :color, :status, :key_count, :admin_permission,
	:last_sync, :rotation_policy, :auto_discovery, :created_at`

func (s *SQLStore) ListPlatforms(ctx context.Context, tenantID string) ([]model.Platform, error) {
	platforms := []model.Platform{}
	err := s.sel(ctx, &platforms,
		`SELECT `+platformColumns+` FROM platforms WHERE tenant_id = ? ORDER BY created_at, id`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing platforms: %w", err)
	}
	return platforms, nil
}

func (s *SQLStore) GetPlatform(ctx context.Context, tenantID, id string) (*model.Platform, error) {
	var p model.Platform
	err := s.get(ctx, &p,
		`SELECT `+platformColumns+` FROM platforms WHERE tenant_id = ? AND id = ?`,
		tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("getting platform %s: %w", id, err)
	}
	return &p, nil
}

func (s *SQLStore) InsertPlatform(ctx context.Context, p *model.Platform) error {
	_, err := s.q.NamedExecContext(ctx,
		`INSERT INTO platforms (`+platformColumns+`) VALUES (`+platformValues+`)`, p)
	if err != nil {
		return fmt.Errorf("inserting platform: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdatePlatform(ctx context.Context, p *model.Platform) error {
	err := namedOne(ctx, s.q, `
		UPDATE platforms
		SET name = :name, icon = :icon, color = :color, status = :status, key_count = :key_count,
			admin_permission = :admin_permission, last_sync = :last_sync,
			rotation_policy = :rotation_policy, auto_discovery = :auto_discovery
		WHERE tenant_id = :tenant_id AND id = :id`, p)
	if err != nil {
		return fmt.Errorf("updating platform %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLStore) PutPlatform(ctx context.Context, p model.Platform) error {
	_, err := s.q.NamedExecContext(ctx, `
		INSERT INTO platforms (`+platformColumns+`) VALUES (`+platformValues+`)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, icon = excluded.icon, color = excluded.color,
			status = excluded.status, key_count = excluded.key_count,
			admin_permission = excluded.admin_permission, last_sync = excluded.last_sync,
			rotation_policy = excluded.rotation_policy, auto_discovery = excluded.auto_discovery`, p)
	if err != nil {
		return fmt.Errorf("putting platform %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLStore) DeletePlatform(ctx context.Context, tenantID, id string) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM api_keys WHERE tenant_id = ? AND platform_id = ?`), tenantID, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM platforms WHERE tenant_id = ? AND id = ?`), tenantID, id)
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
		return fmt.Errorf("deleting platform %s: %w", id, err)
	}
	return nil
}

func (s *SQLStore) IncrementKeyCount(ctx context.Context, tenantID, platformID string) error {
	err := s.execOne(ctx,
		`UPDATE platforms SET key_count = key_count + 1 WHERE tenant_id = ? AND id = ?`,
		tenantID, platformID)
	if err != nil {
		return fmt.Errorf("incrementing key count of %s: %w", platformID, err)
	}
	return nil
}

func (s *SQLStore) DecrementKeyCount(ctx context.Context, tenantID, platformID string) error {
	err := s.execOne(ctx,
		`UPDATE platforms SET key_count = CASE WHEN key_count > 0 THEN key_count - 1 ELSE 0 END
		WHERE tenant_id = ? AND id = ?`,
		tenantID, platformID)
	if err != nil {
		return fmt.Errorf("decrementing key count of %s: %w", platformID, err)
	}
	return nil
}
