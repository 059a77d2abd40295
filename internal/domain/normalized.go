package domain

import (
	"context"
	"time"
)

// NormalizedReview is the provider-independent shape every adapter produces.
type NormalizedReview struct {
	ExternalID      string
	AuthorName      string
	AuthorAvatarURL *string
	Rating          int // 1..5; google maps unknown enums to 0
	Content         string
	PublishedAt     time.Time
	ExternalURL     *string
	Reply           *ProviderReply // owner reply as reported by the provider
}

type ProviderReply struct {
	Text string
	At   *time.Time
}

type NormalizedSummary struct {
	Rating float64
	Count  int
}

type Capabilities struct {
	// MaxReviewsPerFetch bounds one FetchReviews call; 0 means unbounded.
	MaxReviewsPerFetch int
	SupportsReplies    bool
}

// PlatformAdapter normalizes one provider's API. Both fetch calls are pure I/O.
type PlatformAdapter interface {
	Platform() Platform
	Capabilities() Capabilities
	FetchReviews(ctx context.Context, c Connection) ([]NormalizedReview, error)
	FetchSummary(ctx context.Context, c Connection) (NormalizedSummary, error)
}

// Replier is implemented by adapters whose provider accepts owner replies.
type Replier interface {
	ReplyToReview(ctx context.Context, c Connection, reviewExternalID, text string) error
}
