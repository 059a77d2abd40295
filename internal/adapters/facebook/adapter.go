package facebook

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"review_sync/internal/domain"
)

const (
	pageSize = 100
	maxPages = 20
)

const (
	graphTimeLayout = "2006-01-02T15:04:05-0700"

	neutralRating = 3
)

type Adapter struct {
	client *Client
}

var _ domain.PlatformAdapter = (*Adapter)(nil)

func NewAdapter(c *Client) *Adapter { return &Adapter{client: c} }

func (a *Adapter) Platform() domain.Platform { return domain.PlatformFacebook }

func (a *Adapter) Capabilities() domain.Capabilities {
	return domain.Capabilities{MaxReviewsPerFetch: pageSize * maxPages}
}

func (a *Adapter) FetchReviews(ctx context.Context, c domain.Connection) ([]domain.NormalizedReview, error) {
	var out []domain.NormalizedReview
	next := ""
	for i := 0; i < maxPages; i++ {
		p, err := a.client.GetRatings(ctx, c.AccessToken, c.ExternalID, next)
		if err != nil {
			return nil, err
		}
		for _, r := range p.Data {
			out = append(out, normalize(r))
		}
		if p.Paging.Next == "" || len(p.Data) == 0 {
			return out, nil
		}
		next = p.Paging.Next
	}
	log.Warn().Str("connection_id", c.ID).Int("pages", maxPages).Int("fetched", len(out)).
		Msg("facebook: page cap reached, remaining ratings skipped")
	return out, nil
}

func (a *Adapter) FetchSummary(ctx context.Context, c domain.Connection) (domain.NormalizedSummary, error) {
	p, err := a.client.GetPage(ctx, c.AccessToken, c.ExternalID)
	if err != nil {
		return domain.NormalizedSummary{}, err
	}
	return domain.NormalizedSummary{Rating: p.OverallStarRating, Count: p.RatingCount}, nil
}

// starRating: an explicit legacy star rating wins, then the binary
// recommendation, then a neutral 3.
func starRating(r rating) int {
	if r.Rating != nil {
		return *r.Rating
	}
	switch r.RecommendationType {
	case "positive":
		return 5
	case "negative":
		return 1
	}
	return neutralRating
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(graphTimeLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	return t.UTC(), err
}

func normalize(r rating) domain.NormalizedReview {
	published, err := parseTime(r.CreatedTime)
	if err != nil {
		log.Warn().Err(err).Str("reviewer_id", r.Reviewer.ID).Msg("facebook: unparseable created_time")
	}
	n := domain.NormalizedReview{
		AuthorName:  r.Reviewer.Name,
		Rating:      starRating(r),
		Content:     r.ReviewText,
		PublishedAt: published,
	}
	if r.OpenGraphStory != nil && r.OpenGraphStory.ID != "" {
		n.ExternalID = r.OpenGraphStory.ID
		u := "https://www.facebook.com/" + r.OpenGraphStory.ID
		n.ExternalURL = &u
	} else {
		n.ExternalID = fmt.Sprintf("%s_%d", r.Reviewer.ID, published.Unix())
	}
	if u := r.Reviewer.Picture.Data.URL; u != "" {
		n.AuthorAvatarURL = &u
	}
	return n
}
