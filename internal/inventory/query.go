// Package inventory turns a tenant's key list into the page the
// dashboard displays: free-text search, categorical filters, a single
// sort field and fixed-size pages.
package inventory

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/valu/keyrotation/internal/model"
)

const DefaultPageSize = 10

type SortField string

const (
	SortNone        SortField = ""
	SortName        SortField = "name"
	SortDescription SortField = "description"
	SortPlatform    SortField = "platform"
	SortCreated     SortField = "created"
	SortLastUsed    SortField = "last_used"
	SortAge         SortField = "age"
	SortRisk        SortField = "risk"
	SortStatus      SortField = "status"
)

var sortFields = []SortField{SortName, SortDescription, SortPlatform, SortCreated, SortLastUsed, SortAge, SortRisk, SortStatus}

type SortDir string

const (
	Asc  SortDir = "asc"
	Desc SortDir = "desc"
)

// Toggle flips the direction, the way clicking a column header does.
func (d SortDir) Toggle() SortDir {
	if d == Desc {
		return Asc
	}
	return Desc
}

// Query is everything the key table is computed from.
type Query struct {
	Search    string
	Platform  string
	Status    model.KeyStatus
	Age       Bucket
	Risk      model.Risk
	SortField SortField
	SortDir   SortDir
	Page      int
	PageSize  int
}

// Active reports whether any search text or filter is set.
func (q Query) Active() bool {
	return strings.TrimSpace(q.Search) != "" || q.Platform != "" || q.Status != "" || q.Age != "" || q.Risk != ""
}

// Reset clears the search text and every filter in one step. Sorting and
// page size are kept, the page goes back to the first one.
func (q Query) Reset() Query {
	return Query{SortField: q.SortField, SortDir: q.SortDir, Page: 1, PageSize: q.PageSize}
}

// ParseQuery reads a query from URL parameters:
// q, platform, status, age, risk, sort, dir, page, page_size.
func ParseQuery(v url.Values) (Query, error) {
	q := Query{
		Search:   v.Get("q"),
		Platform: v.Get("platform"),
		Page:     1,
		PageSize: DefaultPageSize,
	}

	if s := v.Get("status"); s != "" {
		q.Status = model.KeyStatus(s)
		if !q.Status.Valid() {
			return Query{}, model.NewValidationError("status", "unknown status %q", s)
		}
	}
	if r := v.Get("risk"); r != "" {
		q.Risk = model.Risk(r)
		if !q.Risk.Valid() {
			return Query{}, model.NewValidationError("risk", "unknown risk level %q", r)
		}
	}
	if a := v.Get("age"); a != "" {
		b, err := ParseBucket(a)
		if err != nil {
			return Query{}, err
		}
		q.Age = b
	}
	if s := v.Get("sort"); s != "" {
		q.SortField = SortField(s)
		if !validSortField(q.SortField) {
			return Query{}, model.NewValidationError("sort", "cannot sort by %q", s)
		}
	}
	switch d := SortDir(strings.ToLower(v.Get("dir"))); d {
	case "", Asc:
		q.SortDir = Asc
	case Desc:
		q.SortDir = Desc
	default:
		return Query{}, model.NewValidationError("dir", "direction must be asc or desc")
	}

	var err error
	if q.Page, err = positiveInt(v, "page", 1); err != nil {
		return Query{}, err
	}
	if q.PageSize, err = positiveInt(v, "page_size", DefaultPageSize); err != nil {
		return Query{}, err
	}
	return q, nil
}

func validSortField(f SortField) bool {
	for _, s := range sortFields {
		if s == f {
			return true
		}
	}
	return false
}

func positiveInt(v url.Values, name string, def int) (int, error) {
	raw := v.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, model.NewValidationError(name, "must be a positive integer")
	}
	return n, nil
}
