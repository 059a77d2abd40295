package domain

import "time"

type Platform string

const (
	PlatformGoogle   Platform = "google"
	PlatformYelp     Platform = "yelp"
	PlatformFacebook Platform = "facebook"
)

// Platforms lists every supported review source.
var Platforms = []Platform{PlatformGoogle, PlatformYelp, PlatformFacebook}

func (p Platform) Valid() bool {
	switch p {
	case PlatformGoogle, PlatformYelp, PlatformFacebook:
		return true
	}
	return false
}

// Connection links one business to one external review source.
// Unique on (BusinessID, Platform).
type Connection struct {
	ID             string
	BusinessID     string
	Platform       Platform
	ExternalID     string // location resource / yelp business id / facebook page id
	AccessToken    string
	RefreshToken   *string // google only
	TokenExpiresAt *time.Time
	SyncStatus     SyncStatus
	LastSyncedAt   *time.Time
	TotalReviews   int
	AverageRating  float64
}

// ConnectionView is the read model served by the API.
type ConnectionView struct {
	ID                string     `json:"id"`
	BusinessID        string     `json:"business_id"`
	Platform          Platform   `json:"platform"`
	SyncStatus        SyncStatus `json:"sync_status"`
	ReconnectRequired bool       `json:"reconnect_required"`
	LastSyncedAt      *time.Time `json:"last_synced_at,omitempty"`
	TotalReviews      int        `json:"total_reviews"`
	AverageRating     float64    `json:"average_rating"`
}

func (c Connection) View() ConnectionView {
	return ConnectionView{
		ID:                c.ID,
		BusinessID:        c.BusinessID,
		Platform:          c.Platform,
		SyncStatus:        c.SyncStatus,
		ReconnectRequired: c.SyncStatus.RequiresReconnect(),
		LastSyncedAt:      c.LastSyncedAt,
		TotalReviews:      c.TotalReviews,
		AverageRating:     c.AverageRating,
	}
}
