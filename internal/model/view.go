package model

import "time"

// ViewCounter is the authoritative per-profile view total.
type ViewCounter struct {
	ProfileID    string    `db:"profile_id" json:"profileId"`
	Count        int64     `db:"count" json:"count"`
	LastViewedAt time.Time `db:"last_viewed_at" json:"lastViewedAt"`
}

// SiteStats is the singleton site-wide counter. UniqueVisitors is approximate.
type SiteStats struct {
	TotalViews     int64     `db:"total_views" json:"totalViews"`
	UniqueVisitors int64     `db:"unique_visitors" json:"uniqueVisitors"`
	LastUpdatedAt  time.Time `db:"last_updated_at" json:"lastUpdatedAt"`
}

// ViewResult is returned by a recorded view.
type ViewResult struct {
	ProfileViewCount int64 `json:"profileViewCount"`
	SiteTotalViews   int64 `json:"siteTotalViews"`
}

// Visitor identifies the source of a view for approximate unique counting.
// The raw values are hashed and never stored.
type Visitor struct {
	IP        string
	UserAgent string
}
