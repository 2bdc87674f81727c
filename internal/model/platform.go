package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

type Platform struct {
	ID              string         `json:"id" db:"id"`
	TenantID        string         `json:"-" db:"tenant_id"`
	Name            string         `json:"name" db:"name"`
	Icon            string         `json:"icon" db:"icon"`
	Color           string         `json:"color" db:"color"`
	Status          PlatformStatus `json:"status" db:"status"`
	KeyCount        int            `json:"key_count" db:"key_count"`
	AdminPermission string         `json:"admin_permission" db:"admin_permission"`
	LastSync        time.Time      `json:"last_sync" db:"last_sync"`
	RotationPolicy  string         `json:"rotation_policy" db:"rotation_policy"`
	AutoDiscovery   AutoDiscovery  `json:"auto_discovery" db:"auto_discovery"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`

	LastSyncLabel string `json:"last_sync_label" db:"-"`
}

type PlatformStatus string

const (
	PlatformConnected    PlatformStatus = "Connected"
	PlatformDisconnected PlatformStatus = "Disconnected"
)

func (s PlatformStatus) Valid() bool {
	return s == PlatformConnected || s == PlatformDisconnected
}

type AutoDiscovery string

const (
	AutoDiscoveryEnabled  AutoDiscovery = "Enabled"
	AutoDiscoveryDisabled AutoDiscovery = "Disabled"
)

func (a AutoDiscovery) Valid() bool {
	return a == AutoDiscoveryEnabled || a == AutoDiscoveryDisabled
}

const (
	DefaultAdminPermission = "Full Access"
	DefaultRotationPolicy  = "90 days"
)

// WithSyncLabel fills LastSyncLabel relative to now.
func (p Platform) WithSyncLabel(now time.Time) Platform {
	p.LastSyncLabel = SinceLabel(p.LastSync, now)
	return p
}

// SinceLabel renders a coarse "x ago" label.
func SinceLabel(t, now time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour") + " ago"
	default:
		return plural(int(d/(24*time.Hour)), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Appearance is the icon glyph and color token a platform is drawn with.
type Appearance struct {
	Icon  string
	Color string
}

var catalog = map[string]Appearance{
	"aws":        {Icon: "aws", Color: "orange"},
	"azure":      {Icon: "azure", Color: "blue"},
	"datadog":    {Icon: "datadog", Color: "purple"},
	"github":     {Icon: "github", Color: "slate"},
	"gitlab":     {Icon: "gitlab", Color: "orange"},
	"google":     {Icon: "google", Color: "red"},
	"openai":     {Icon: "openai", Color: "emerald"},
	"sendgrid":   {Icon: "sendgrid", Color: "sky"},
	"slack":      {Icon: "slack", Color: "pink"},
	"stripe":     {Icon: "stripe", Color: "indigo"},
	"twilio":     {Icon: "twilio", Color: "red"},
	"cloudflare": {Icon: "cloudflare", Color: "amber"},
}

// AppearanceFor looks a platform name up in the catalog of well known
// integrations. Unknown names get their initial on a gray badge.
func AppearanceFor(name string) Appearance {
	name = strings.TrimSpace(name)
	if a, ok := catalog[strings.ToLower(name)]; ok {
		return a
	}
	if name == "" {
		return Appearance{Icon: "?", Color: "gray"}
	}
	initial, _ := utf8.DecodeRuneInString(name)
	return Appearance{Icon: string(unicode.ToUpper(initial)), Color: "gray"}
}
