package models

import (
	"time"
)

// PostStatus enumerates the lifecycle states persisted in Postgres.
// Transitions are one-directional: pending -> posting -> posted.
// There is no separate failed state; a failed publish still lands on
// posted with an error log and an empty URL.
const (
	StatusPending = "pending"
	StatusPosting = "posting"
	StatusPosted  = "posted"
)

// Post is one scheduled publish request for one (media, platform) pair.
type Post struct {
	ID            int64      `json:"id"`
	MediaRef      string     `json:"media_ref"`
	Caption       string     `json:"caption"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	Platform      string     `json:"platform"`
	Status        string     `json:"status"`
	Log           string     `json:"log"`
	PostedURL     string     `json:"posted_url"`
	ClaimedBy     *string    `json:"claimed_by,omitempty"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AuditLog is a simple audit event row.
type AuditLog struct {
	PostID   int64     `json:"post_id"`
	Event    string    `json:"event"`
	Detail   string    `json:"detail"`
	Recorded time.Time `json:"recorded_at"`
}
