package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/valu/keyrotation/internal/inventory"
	"github.com/valu/keyrotation/internal/model"
	"github.com/valu/keyrotation/internal/repository"
)

type KeyInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PlatformID  string `json:"platform_id"`
	// CreatedAt backdates an existing key being imported. Zero means now.
	CreatedAt time.Time `json:"created_at"`
}

type KeyPatch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Risk        *model.Risk      `json:"risk"`
	Status      *model.KeyStatus `json:"status"`
	LastUsedAt  *time.Time       `json:"last_used_at"`
}

// ListKeys returns every key of the tenant with its age filled in.
func (s *Service) ListKeys(ctx context.Context, tenantID string) ([]model.APIKey, error) {
	keys, err := s.store.ListKeys(ctx, tenantID, repository.KeyFilter{})
	if err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Msg("Failed to list keys")
		return nil, err
	}
	now := s.clock()
	for i := range keys {
		keys[i] = keys[i].WithAge(now)
	}
	return keys, nil
}

// SearchKeys runs the key table query over the tenant's keys.
func (s *Service) SearchKeys(ctx context.Context, tenantID string, q inventory.Query) (inventory.Page, error) {
	keys, err := s.ListKeys(ctx, tenantID)
	if err != nil {
		return inventory.Page{}, err
	}
	return inventory.Apply(keys, q), nil
}

func (s *Service) GetKey(ctx context.Context, tenantID, id string) (*model.APIKey, error) {
	k, err := s.store.GetKey(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	out := k.WithAge(s.clock())
	return &out, nil
}

// CreateKey tracks a key under an existing platform. Risk and status are
// derived from the key's age.
func (s *Service) CreateKey(ctx context.Context, tenantID string, in KeyInput) (*model.APIKey, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, model.NewValidationError("name", "key name is required")
	}
	if in.PlatformID == "" {
		return nil, model.NewValidationError("platform_id", "platform is required")
	}
	p, err := s.store.GetPlatform(ctx, tenantID, in.PlatformID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.NewValidationError("platform_id", "unknown platform")
	}
	if err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Msg("Failed to load platform for key")
		return nil, err
	}

	now := s.clock()
	created := in.CreatedAt.UTC()
	if in.CreatedAt.IsZero() {
		created = now
	}
	if created.After(now) {
		return nil, model.NewValidationError("created_at", "cannot be in the future")
	}
	risk, status := model.ClassifyAge(model.AgeInDays(created, now))
	k := model.APIKey{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		Name:          name,
		Description:   strings.TrimSpace(in.Description),
		PlatformID:    p.ID,
		PlatformName:  p.Name,
		PlatformIcon:  p.Icon,
		PlatformColor: p.Color,
		CreatedAt:     created,
		LastUsedAt:    now,
		Risk:          risk,
		Status:        status,
	}
	if err := s.store.InsertKey(ctx, &k); err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Msg("Failed to create key")
		return nil, fmt.Errorf("creating key: %w", err)
	}
	if err := s.store.IncrementKeyCount(ctx, tenantID, p.ID); err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Str("platform", p.ID).Msg("Failed to increment key count")
		return nil, fmt.Errorf("counting key: %w", err)
	}
	out := k.WithAge(now)
	return &out, nil
}

// UpdateKey applies a manual edit.
func (s *Service) UpdateKey(ctx context.Context, tenantID, id string, patch KeyPatch) (*model.APIKey, error) {
	k, err := s.store.GetKey(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, model.NewValidationError("name", "key name is required")
		}
		k.Name = name
	}
	if patch.Description != nil {
		k.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Risk != nil {
		if !patch.Risk.Valid() {
			return nil, model.NewValidationError("risk", "unknown risk level %q", *patch.Risk)
		}
		k.Risk = *patch.Risk
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, model.NewValidationError("status", "unknown status %q", *patch.Status)
		}
		k.Status = *patch.Status
	}
	if patch.LastUsedAt != nil {
		k.LastUsedAt = patch.LastUsedAt.UTC()
	}
	if err := s.store.UpdateKey(ctx, k); err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Str("key", id).Msg("Failed to update key")
		return nil, err
	}
	out := k.WithAge(s.clock())
	return &out, nil
}

func (s *Service) DeleteKey(ctx context.Context, tenantID, id string) error {
	k, err := s.store.GetKey(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteKey(ctx, tenantID, id); err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Str("key", id).Msg("Failed to delete key")
		return err
	}
	if err := s.store.DecrementKeyCount(ctx, tenantID, k.PlatformID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.log.Error().Err(err).Str("tenant", tenantID).Str("platform", k.PlatformID).Msg("Failed to decrement key count")
		return fmt.Errorf("uncounting key: %w", err)
	}
	return nil
}
