package inventory

import (
	"github.com/samber/lo"

	"github.com/valu/keyrotation/internal/model"
)

// Summary holds the counters shown above the key table.
type Summary struct {
	Total         int                     `json:"total"`
	ByStatus      map[model.KeyStatus]int `json:"by_status"`
	ByRisk        map[model.Risk]int      `json:"by_risk"`
	ByPlatform    map[string]int          `json:"by_platform"`
	NeedsRotation int                     `json:"needs_rotation"`
}

func Summarize(keys []model.APIKey) Summary {
	s := Summary{
		Total:      len(keys),
		ByStatus:   map[model.KeyStatus]int{model.KeyStatusHealthy: 0, model.KeyStatusRotateNow: 0, model.KeyStatusInProgress: 0},
		ByRisk:     map[model.Risk]int{model.RiskLow: 0, model.RiskMedium: 0, model.RiskHigh: 0},
		ByPlatform: map[string]int{},
	}
	for status, group := range lo.GroupBy(keys, func(k model.APIKey) model.KeyStatus { return k.Status }) {
		s.ByStatus[status] = len(group)
	}
	for risk, group := range lo.GroupBy(keys, func(k model.APIKey) model.Risk { return k.Risk }) {
		s.ByRisk[risk] = len(group)
	}
	for name, group := range lo.GroupBy(keys, func(k model.APIKey) string { return k.PlatformName }) {
		s.ByPlatform[name] = len(group)
	}
	s.NeedsRotation = s.ByStatus[model.KeyStatusRotateNow]
	return s
}

// Platforms lists the distinct platform names in first-seen order, for
// the platform filter drop-down.
func Platforms(keys []model.APIKey) []string {
	return lo.Uniq(lo.Map(keys, func(k model.APIKey, _ int) string { return k.PlatformName }))
}
