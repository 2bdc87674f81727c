package service

import (
	"context"

	"github.com/valu/keyrotation/internal/model"
)

// DemoPlatforms is what Seed connects when no names are given.
var DemoPlatforms = []string{"AWS", "GitHub", "Stripe", "Datadog", "Slack", "OpenAI"}

// Seed connects demo platforms for a tenant. Each one gets its synthetic
// key, so the ages (and hence risks) are fixed by the service's rand.
func (s *Service) Seed(ctx context.Context, tenantID string, names []string) ([]model.Platform, error) {
	if len(names) == 0 {
		names = DemoPlatforms
	}
	var out []model.Platform
	for _, name := range names {
		p, _, err := s.AddPlatform(ctx, tenantID, PlatformInput{Name: name})
		if err != nil {
			return out, err
		}
		out = append(out, *p)
	}
	return out, nil
}
