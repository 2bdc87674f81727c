package inventory

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/valu/keyrotation/internal/model"
)

// Bucket is one of the three age ranges the age filter offers.
type Bucket string

const (
	BucketUnder30 Bucket = "lt30"
	Bucket30To90  Bucket = "30to90"
	BucketOver90  Bucket = "gt90"
)

var Buckets = []Bucket{BucketUnder30, Bucket30To90, BucketOver90}

func ParseBucket(s string) (Bucket, error) {
	b := Bucket(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Buckets {
		if b == known {
			return b, nil
		}
	}
	return "", model.NewValidationError("age", "unknown age bucket %q", s)
}

// BucketOf places an age in exactly one bucket. 30 and 90 both belong to
// the middle bucket.
func BucketOf(ageDays int) Bucket {
	switch {
	case ageDays < 30:
		return BucketUnder30
	case ageDays <= 90:
		return Bucket30To90
	default:
		return BucketOver90
	}
}

// ParseAge reads an age label such as "45 days" by dropping the unit.
func ParseAge(label string) (int, error) {
	s := strings.TrimRightFunc(strings.TrimSpace(label), func(r rune) bool {
		return !unicode.IsDigit(r)
	})
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, model.NewValidationError("age", "cannot read age %q", label)
	}
	return n, nil
}

// ageOf prefers the rendered label, which is what the table shows, and
// falls back to the numeric field.
func ageOf(k model.APIKey) int {
	if k.Age != "" {
		if n, err := ParseAge(k.Age); err == nil {
			return n
		}
	}
	return k.AgeDays
}
