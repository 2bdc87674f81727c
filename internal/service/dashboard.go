package service

import (
	"context"

	"github.com/samber/lo"

	"github.com/valu/keyrotation/internal/inventory"
	"github.com/valu/keyrotation/internal/model"
	"github.com/valu/keyrotation/internal/repository"
)

const recentActivities = 5

// Dashboard is the overview page: counters plus the latest activity.
type Dashboard struct {
	Keys               inventory.Summary `json:"keys"`
	Platforms          int               `json:"platforms"`
	ConnectedPlatforms int               `json:"connected_platforms"`
	ActiveWorkflows    int               `json:"active_workflows"`
	CompletedWorkflows int               `json:"completed_workflows"`
	RecentActivity     []model.Activity  `json:"recent_activity"`
}

func (s *Service) Dashboard(ctx context.Context, tenantID string) (*Dashboard, error) {
	keys, err := s.ListKeys(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	platforms, err := s.store.ListPlatforms(ctx, tenantID)
	if err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Msg("Failed to list platforms")
		return nil, err
	}
	workflows, err := s.store.ListWorkflows(ctx, tenantID, repository.WorkflowFilter{})
	if err != nil {
		s.log.Error().Err(err).Str("tenant", tenantID).Msg("Failed to list workflows")
		return nil, err
	}
	activity, err := s.ListActivities(ctx, tenantID, recentActivities)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Keys:      inventory.Summarize(keys),
		Platforms: len(platforms),
		ConnectedPlatforms: len(lo.Filter(platforms, func(p model.Platform, _ int) bool {
			return p.Status == model.PlatformConnected
		})),
		ActiveWorkflows: len(lo.Filter(workflows, func(wf model.Workflow, _ int) bool {
			return wf.Status == model.WorkflowInProgress
		})),
		CompletedWorkflows: len(lo.Filter(workflows, func(wf model.Workflow, _ int) bool {
			return wf.Status == model.WorkflowCompleted
		})),
		RecentActivity: activity,
	}, nil
}
