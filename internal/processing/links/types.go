package links

import (
	"strings"
	"time"
)

// Owner identifies the caller on whose behalf a link is created or changed.
// The zero value is the guest, which may create and resolve links but never
// owns one.
type Owner struct {
	ID string
}

func Guest() Owner { return Owner{} }

func NewOwner(id string) Owner { return Owner{ID: strings.TrimSpace(id)} }

func (o Owner) IsGuest() bool { return o.ID == "" }

type Link struct {
	ID          uint64
	OriginalURL string
	CustomCode  string
	Owner       Owner
	Clicks      uint64
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Code returns the public short code: the alias when one was chosen,
// otherwise the encoded ID.
func (l *Link) Code(c Codec) string {
	if l.CustomCode != "" {
		return l.CustomCode
	}
	return c.Encode(l.ID)
}

// ExpiredAt reports whether the link is unreachable at t.
func (l *Link) ExpiredAt(t time.Time) bool {
	return !t.Before(l.ExpiresAt)
}

type ClickSummary struct {
	TotalClicks int64      `json:"totalClicks"`
	LastClick   *time.Time `json:"lastClick"`
}

type ReferrerCount struct {
	Referer string `json:"referer"`
	Count   int64  `json:"count"`
}

type DeviceCount struct {
	DeviceType string `json:"deviceType"`
	Count      int64  `json:"count"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type Analytics struct {
	Summary         ClickSummary    `json:"summary"`
	TopReferrers    []ReferrerCount `json:"topReferrers"`
	DeviceBreakdown []DeviceCount   `json:"deviceBreakdown"`
	DailyTrend      []DailyCount    `json:"dailyTrend"`
}

// ResolveInput carries the request details recorded with each click.
type ResolveInput struct {
	Code      string
	Referer   string
	UserAgent string
	Visitor   Owner
}
