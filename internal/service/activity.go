package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/valu/keyrotation/internal/model"
)

const (
	DefaultActivityLimit = 20
	MaxActivityLimit     = 100
)

// record appends an activity. A failure is logged and otherwise ignored:
// the mutation it describes has already happened.
func (s *Service) record(ctx context.Context, a model.Activity) {
	a.ID = uuid.NewString()
	a.CreatedAt = s.clock()
	if err := s.store.InsertActivity(ctx, &a); err != nil {
		s.log.Error().Err(err).Str("tenant", a.TenantID).Str("type", string(a.Type)).Msg("Failed to record activity")
	}
}

// ListActivities returns the newest activities first. limit is clamped
// to [1, MaxActivityLimit]; zero means DefaultActivityLimit.
func (s *Service) ListActivities(ctx context.Context, tenantID string, limit int) ([]model.Activity, error) {
	switch {
	case limit <= 0:
		limit = DefaultActivityLimit
	case limit > MaxActivityLimit:
		limit = MaxActivityLimit
	}
	activities, err := s.store.ListActivities(ctx, tenantID, limit)
	if err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Msg("Failed to list activities")
		return nil, err
	}
	for i := range activities {
		activities[i] = activities[i].WithDate()
	}
	return activities, nil
}
