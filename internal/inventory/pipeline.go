package inventory

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/valu/keyrotation/internal/model"
)

// Page is the visible slice of the key table plus what the pager needs.
type Page struct {
	Items      []model.APIKey `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
	Filtered   bool           `json:"filtered"`
	// Platforms are the filter options, taken from every key so that an
	// active filter does not hide the others.
	Platforms []string `json:"platforms"`
}

// Apply filters, sorts and paginates keys. The input slice is not
// modified.
func Apply(keys []model.APIKey, q Query) Page {
	visible := Sort(Filter(keys, q), q.SortField, q.SortDir)

	size := q.PageSize
	if size < 1 {
		size = DefaultPageSize
	}
	total := len(visible)
	pages := max(1, (total+size-1)/size)
	page := min(max(q.Page, 1), pages)

	items := lo.Subset(visible, (page-1)*size, uint(size))
	if items == nil {
		items = []model.APIKey{}
	}
	return Page{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: pages,
		Filtered:   q.Active(),
		Platforms:  Platforms(keys),
	}
}

// Filter keeps the keys that match the search text and every active
// filter.
func Filter(keys []model.APIKey, q Query) []model.APIKey {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	return lo.Filter(keys, func(k model.APIKey, _ int) bool {
		if search != "" && !matchesSearch(k, search) {
			return false
		}
		if q.Platform != "" && k.PlatformName != q.Platform {
			return false
		}
		if q.Status != "" && k.Status != q.Status {
			return false
		}
		if q.Risk != "" && k.Risk != q.Risk {
			return false
		}
		if q.Age != "" && BucketOf(ageOf(k)) != q.Age {
			return false
		}
		return true
	})
}

func matchesSearch(k model.APIKey, search string) bool {
	return strings.Contains(strings.ToLower(k.Name), search) ||
		strings.Contains(strings.ToLower(k.Description), search) ||
		strings.Contains(strings.ToLower(k.PlatformName), search)
}

// Sort orders keys by a single field, ties broken by id. A descending sort
// is the exact reverse of the ascending one. With no field the input
// order is kept.
func Sort(keys []model.APIKey, field SortField, dir SortDir) []model.APIKey {
	out := slices.Clone(keys)
	if field == SortNone {
		return out
	}
	compare := comparator(field)
	slices.SortStableFunc(out, func(a, b model.APIKey) int {
		c := compare(a, b)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if dir == Desc {
			return -c
		}
		return c
	})
	return out
}

func comparator(field SortField) func(a, b model.APIKey) int {
	if field == SortAge {
		return func(a, b model.APIKey) int { return cmp.Compare(ageOf(a), ageOf(b)) }
	}
	value := textValue(field)
	return func(a, b model.APIKey) int { return cmp.Compare(value(a), value(b)) }
}

func textValue(field SortField) func(model.APIKey) string {
	switch field {
	case SortDescription:
		return func(k model.APIKey) string { return k.Description }
	case SortPlatform:
		return func(k model.APIKey) string { return k.PlatformName }
	case SortCreated:
		return func(k model.APIKey) string { return stamp(k.CreatedAt) }
	case SortLastUsed:
		return func(k model.APIKey) string { return stamp(k.LastUsedAt) }
	case SortRisk:
		return func(k model.APIKey) string { return string(k.Risk) }
	case SortStatus:
		return func(k model.APIKey) string { return string(k.Status) }
	default:
		return func(k model.APIKey) string { return k.Name }
	}
}

// stamp renders a time so that string order equals time order.
func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}
