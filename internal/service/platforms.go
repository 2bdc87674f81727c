package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/valu/keyrotation/internal/model"
	"github.com/valu/keyrotation/internal/repository"
)

// MaxSyntheticAge bounds the random age given to a synthesized key.
const MaxSyntheticAge = 365

type PlatformInput struct {
	Name            string              `json:"name"`
	AdminPermission string              `json:"admin_permission"`
	RotationPolicy  string              `json:"rotation_policy"`
	AutoDiscovery   model.AutoDiscovery `json:"auto_discovery"`
}

type PlatformPatch struct {
	Name            *string               `json:"name"`
	Status          *model.PlatformStatus `json:"status"`
	AdminPermission *string               `json:"admin_permission"`
	RotationPolicy  *string               `json:"rotation_policy"`
	AutoDiscovery   *model.AutoDiscovery  `json:"auto_discovery"`
	// Synced marks the platform as synchronized now.
	Synced bool `json:"synced"`
}

func (s *Service) ListPlatforms(ctx context.Context, tenantID string) ([]model.Platform, error) {
	platforms, err := s.store.ListPlatforms(ctx, tenantID)
	if err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Msg("Failed to list platforms")
		return nil, err
	}
	now := s.clock()
	for i := range platforms {
		platforms[i] = platforms[i].WithSyncLabel(now)
	}
	return platforms, nil
}

func (s *Service) GetPlatform(ctx context.Context, tenantID, id string) (*model.Platform, error) {
	p, err := s.store.GetPlatform(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	out := p.WithSyncLabel(s.clock())
	return &out, nil
}

// AddPlatform connects a platform and synthesizes its first key.
func (s *Service) AddPlatform(ctx context.Context, tenantID string, in PlatformInput) (*model.Platform, *model.APIKey, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, nil, model.NewValidationError("name", "platform name is required")
	}
	discovery := in.AutoDiscovery
	if discovery == "" {
		discovery = model.AutoDiscoveryEnabled
	}
	if !discovery.Valid() {
		return nil, nil, model.NewValidationError("auto_discovery", "must be Enabled or Disabled")
	}

	now := s.clock()
	look := model.AppearanceFor(name)
	p := model.Platform{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		Name:            name,
		Icon:            look.Icon,
		Color:           look.Color,
		Status:          model.PlatformConnected,
		AdminPermission: orDefault(in.AdminPermission, model.DefaultAdminPermission),
		LastSync:        now,
		RotationPolicy:  orDefault(in.RotationPolicy, model.DefaultRotationPolicy),
		AutoDiscovery:   discovery,
		CreatedAt:       now,
	}
	if err := s.store.InsertPlatform(ctx, &p); err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Str("platform", name).Msg("Failed to add platform")
		return nil, nil, fmt.Errorf("adding platform: %w", err)
	}
	s.log.Info().Str("tenant", tenantID).Str("platform", name).Msg("Platform connected")

	s.record(ctx, model.Activity{
		TenantID:      tenantID,
		Type:          model.ActivityPlatformAdded,
		PlatformName:  p.Name,
		PlatformIcon:  p.Icon,
		PlatformColor: p.Color,
		Status:        string(p.Status),
	})

	key, err := s.OnPlatformConnected(ctx, &p)
	if err != nil {
		return nil, nil, err
	}
	out := p.WithSyncLabel(now)
	return &out, key, nil
}

// OnPlatformConnected is the rule that every newly connected platform
// starts with exactly one tracked key. The key gets a random age; its
// risk and status follow from that age alone.
func (s *Service) OnPlatformConnected(ctx context.Context, p *model.Platform) (*model.APIKey, error) {
	now := s.clock()
	k := SyntheticKey(*p, s.intN(MaxSyntheticAge), now)
	if err := s.store.InsertKey(ctx, &k); err != nil {
		s.log.Error().Err(err).Str("tenant", p.TenantID).Str("platform", p.Name).Msg("Failed to create platform key")
		return nil, fmt.Errorf("creating key for %s: %w", p.Name, err)
	}
	if err := s.store.IncrementKeyCount(ctx, p.TenantID, p.ID); err != nil {
		s.log.Error().Err(err).Str("tenant", p.TenantID).Str("platform", p.Name).Msg("Failed to increment key count")
		return nil, fmt.Errorf("counting key for %s: %w", p.Name, err)
	}
	p.KeyCount++
	out := k.WithAge(now)
	return &out, nil
}

// SyntheticKey builds the key tracked for a freshly connected platform.
func SyntheticKey(p model.Platform, ageDays int, now time.Time) model.APIKey {
	risk, status := model.ClassifyAge(ageDays)
	created := now.AddDate(0, 0, -ageDays)
	return model.APIKey{
		ID:            uuid.NewString(),
		TenantID:      p.TenantID,
		Name:          p.Name + " API Key",
		Description:   "Primary API key for " + p.Name,
		PlatformID:    p.ID,
		PlatformName:  p.Name,
		PlatformIcon:  p.Icon,
		PlatformColor: p.Color,
		CreatedAt:     created,
		LastUsedAt:    now,
		Risk:          risk,
		Status:        status,
	}
}

func (s *Service) UpdatePlatform(ctx context.Context, tenantID, id string, patch PlatformPatch) (*model.Platform, error) {
	p, err := s.store.GetPlatform(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	renamed := false
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, model.NewValidationError("name", "platform name is required")
		}
		renamed = name != p.Name
		p.Name = name
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, model.NewValidationError("status", "must be Connected or Disconnected")
		}
		p.Status = *patch.Status
	}
	if patch.AutoDiscovery != nil {
		if !patch.AutoDiscovery.Valid() {
			return nil, model.NewValidationError("auto_discovery", "must be Enabled or Disabled")
		}
		p.AutoDiscovery = *patch.AutoDiscovery
	}
	if patch.AdminPermission != nil {
		p.AdminPermission = *patch.AdminPermission
	}
	if patch.RotationPolicy != nil {
		p.RotationPolicy = *patch.RotationPolicy
	}
	if patch.Synced {
		p.LastSync = s.clock()
	}

	if err := s.store.UpdatePlatform(ctx, p); err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Str("platform", id).Msg("Failed to update platform")
		return nil, err
	}
	if renamed {
		s.renameKeys(ctx, *p)
	}
	out := p.WithSyncLabel(s.clock())
	return &out, nil
}

// renameKeys refreshes the platform name copied onto its keys.
func (s *Service) renameKeys(ctx context.Context, p model.Platform) {
	keys, err := s.store.ListKeys(ctx, p.TenantID, repository.KeyFilter{PlatformID: p.ID})
	if err != nil {
		s.log.Error().Err(err).Str("platform", p.ID).Msg("Failed to load keys for rename")
		return
	}
	for i := range keys {
		keys[i].PlatformName = p.Name
		if err := s.store.UpdateKey(ctx, &keys[i]); err != nil {
			s.log.Error().Err(err).Str("key", keys[i].ID).Msg("Failed to rename platform on key")
		}
	}
}

// DisconnectPlatform deletes the platform and every key tracked under it.
func (s *Service) DisconnectPlatform(ctx context.Context, tenantID, id string) error {
	if err := s.store.DeletePlatform(ctx, tenantID, id); err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Str("platform", id).Msg("Failed to disconnect platform")
		return err
	}
	s.log.Info().Str("tenant", tenantID).Str("platform", id).Msg("Platform disconnected")
	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
