package yelp

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"review_sync/internal/domain"
)

// MaxReviewsPerFetch is Yelp's hard cap: the reviews endpoint only ever
// returns the three most recent reviews, whatever the business total is.
const MaxReviewsPerFetch = 3

const timeLayout = "2006-01-02 15:04:05"

type Adapter struct {
	client *Client
}

var _ domain.PlatformAdapter = (*Adapter)(nil)

func NewAdapter(c *Client) *Adapter { return &Adapter{client: c} }

func (a *Adapter) Platform() domain.Platform { return domain.PlatformYelp }

func (a *Adapter) Capabilities() domain.Capabilities {
	return domain.Capabilities{MaxReviewsPerFetch: MaxReviewsPerFetch}
}

func (a *Adapter) FetchReviews(ctx context.Context, c domain.Connection) ([]domain.NormalizedReview, error) {
	resp, err := a.client.GetReviews(ctx, c.AccessToken, c.ExternalID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.NormalizedReview, 0, len(resp.Reviews))
	for _, r := range resp.Reviews {
		out = append(out, normalize(r))
	}
	return out, nil
}

func (a *Adapter) FetchSummary(ctx context.Context, c domain.Connection) (domain.NormalizedSummary, error) {
	b, err := a.client.GetBusiness(ctx, c.AccessToken, c.ExternalID)
	if err != nil {
		return domain.NormalizedSummary{}, err
	}
	return domain.NormalizedSummary{Rating: b.Rating, Count: b.ReviewCount}, nil
}

func normalize(r review) domain.NormalizedReview {
	n := domain.NormalizedReview{
		ExternalID: r.ID,
		AuthorName: r.User.Name,
		Rating:     r.Rating,
		Content:    r.Text,
	}
	if t, err := time.ParseInLocation(timeLayout, r.TimeCreated, time.UTC); err == nil {
		n.PublishedAt = t
	} else {
		log.Warn().Err(err).Str("external_id", r.ID).Msg("yelp: unparseable time_created")
	}
	if r.User.ImageURL != "" {
		u := r.User.ImageURL
		n.AuthorAvatarURL = &u
	}
	if r.URL != "" {
		u := r.URL
		n.ExternalURL = &u
	}
	return n
}
