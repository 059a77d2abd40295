package domain

import (
	"context"
	"time"
)

type Repository interface {
	// Connections
	GetConnection(ctx context.Context, id string) (Connection, error)
	ListConnections(ctx context.Context, q ConnectionsQuery) ([]Connection, error)
	// UpdateConnectionTokens stores a refreshed token and marks the connection active.
	UpdateConnectionTokens(ctx context.Context, id, accessToken string, expiresAt time.Time) error
	UpdateConnectionStatus(ctx context.Context, id string, status SyncStatus) error
	CompleteSync(ctx context.Context, id string, st Stats, status SyncStatus, at time.Time) error

	// Reviews
	// UpsertReview inserts or updates by (BusinessID, Platform, ExternalID) and
	// returns the stored row. Local response and processing state survive updates
	// unless the candidate carries a provider reply.
	UpsertReview(ctx context.Context, r Review) (Review, error)
	GetReview(ctx context.Context, id string) (Review, error)
	SaveAnalysis(ctx context.Context, reviewID string, a Analysis) error
	MarkAnalysisFailed(ctx context.Context, reviewID string) error
	MarkResponded(ctx context.Context, reviewID, text string, at time.Time) error
	AggregateRatings(ctx context.Context, businessID string, p Platform) (Stats, error)
}

// Analyzer is the AI analysis collaborator. A nil result means "no analysis".
type Analyzer interface {
	Analyze(ctx context.Context, r Review) (*Analysis, error)
}

// Notifier is the alerting collaborator. sent reports whether an alert went out.
type Notifier interface {
	Notify(ctx context.Context, r EnrichedReview) (sent bool, err error)
}

// TokenRefresher exchanges a refresh token at the OAuth token endpoint.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenGrant, error)
}

type TokenGrant struct {
	AccessToken string
	ExpiresIn   time.Duration
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Locker hands out short leases so one connection is never synced twice at once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type ConnectionsQuery struct {
	Platform              *Platform
	SkipReconnectRequired bool // leave out connections only a user can repair
	Limit                 int
}

type Stats struct {
	TotalReviews  int
	AverageRating float64
}
