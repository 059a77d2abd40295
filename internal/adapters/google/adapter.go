package google

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"review_sync/internal/domain"
)

const (
	pageSize = 50
	maxPages = 20
)

var starRatings = map[string]int{"ONE": 1, "TWO": 2, "THREE": 3, "FOUR": 4, "FIVE": 5}

// starRating maps the API enum to 1..5. Unknown values (STAR_RATING_UNSPECIFIED included) map to 0.
func starRating(s string) int {
	return starRatings[strings.ToUpper(strings.TrimSpace(s))]
}

type Adapter struct {
	client *Client
}

var (
	_ domain.PlatformAdapter = (*Adapter)(nil)
	_ domain.Replier         = (*Adapter)(nil)
)

func NewAdapter(c *Client) *Adapter { return &Adapter{client: c} }

func (a *Adapter) Platform() domain.Platform { return domain.PlatformGoogle }

func (a *Adapter) Capabilities() domain.Capabilities {
	return domain.Capabilities{MaxReviewsPerFetch: pageSize * maxPages, SupportsReplies: true}
}

func (a *Adapter) FetchReviews(ctx context.Context, c domain.Connection) ([]domain.NormalizedReview, error) {
	parent, err := a.resolveParent(ctx, c)
	if err != nil {
		return nil, err
	}
	var out []domain.NormalizedReview
	token := ""
	for page := 0; page < maxPages; page++ {
		p, err := a.client.ListReviews(ctx, c.AccessToken, parent, pageSize, token)
		if err != nil {
			return nil, err
		}
		for _, r := range p.Reviews {
			out = append(out, normalize(r))
		}
		if p.NextPageToken == "" {
			return out, nil
		}
		token = p.NextPageToken
	}
	log.Warn().Str("connection_id", c.ID).Int("pages", maxPages).Int("fetched", len(out)).
		Msg("google: page cap reached, remaining reviews skipped")
	return out, nil
}

func (a *Adapter) FetchSummary(ctx context.Context, c domain.Connection) (domain.NormalizedSummary, error) {
	parent, err := a.resolveParent(ctx, c)
	if err != nil {
		return domain.NormalizedSummary{}, err
	}
	p, err := a.client.ListReviews(ctx, c.AccessToken, parent, 1, "")
	if err != nil {
		return domain.NormalizedSummary{}, err
	}
	return domain.NormalizedSummary{Rating: p.AverageRating, Count: p.TotalReviewCount}, nil
}

func (a *Adapter) ReplyToReview(ctx context.Context, c domain.Connection, reviewID, text string) error {
	parent, err := a.resolveParent(ctx, c)
	if err != nil {
		return err
	}
	return a.client.PutReply(ctx, c.AccessToken, parent+"/reviews/"+reviewID, text)
}

// resolveParent walks account -> location. A connection stores either the full
// "accounts/{a}/locations/{l}" name or just the location id, in which case the
// first account visible to the token owns it.
func (a *Adapter) resolveParent(ctx context.Context, c domain.Connection) (string, error) {
	ext := strings.Trim(strings.TrimSpace(c.ExternalID), "/")
	if strings.HasPrefix(ext, "accounts/") {
		return ext, nil
	}
	loc := strings.TrimPrefix(ext, "locations/")
	if loc == "" {
		return "", fmt.Errorf("google: connection %s has no location id", c.ID)
	}
	accts, err := a.client.ListAccounts(ctx, c.AccessToken)
	if err != nil {
		return "", err
	}
	if len(accts) == 0 {
		return "", fmt.Errorf("google: no accounts for connection %s: %w", c.ID, domain.ErrNotFound)
	}
	return accts[0].Name + "/locations/" + loc, nil
}

func normalize(r review) domain.NormalizedReview {
	n := domain.NormalizedReview{
		ExternalID:  r.ReviewID,
		AuthorName:  r.Reviewer.DisplayName,
		Rating:      starRating(r.StarRating),
		Content:     r.Comment,
		PublishedAt: r.CreateTime,
	}
	if n.ExternalID == "" {
		if i := strings.LastIndex(r.Name, "/"); i >= 0 {
			n.ExternalID = r.Name[i+1:]
		}
	}
	if n.AuthorName == "" || r.Reviewer.IsAnonymous {
		n.AuthorName = "Anonymous"
	}
	if r.Reviewer.ProfilePhotoURL != "" {
		u := r.Reviewer.ProfilePhotoURL
		n.AuthorAvatarURL = &u
	}
	if r.ReviewReply != nil && r.ReviewReply.Comment != "" {
		n.Reply = &domain.ProviderReply{Text: r.ReviewReply.Comment, At: r.ReviewReply.UpdateTime}
	}
	return n
}
