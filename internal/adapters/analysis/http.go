// Package analysis holds the review analysis collaborators.
package analysis

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"review_sync/internal/domain"
)

type request struct {
	ReviewID   string          `json:"review_id"`
	BusinessID string          `json:"business_id"`
	Platform   domain.Platform `json:"platform"`
	Rating     int             `json:"rating"`
	Author     string          `json:"author"`
	Content    string          `json:"content"`
}

// HTTPAnalyzer posts a review to the AI analysis service.
// A 204 answer means the service declined to analyze it.
type HTTPAnalyzer struct {
	client *resty.Client
	url    string
}

var _ domain.Analyzer = (*HTTPAnalyzer)(nil)

func NewHTTPAnalyzer(url, apiKey string, timeout time.Duration) *HTTPAnalyzer {
	c := resty.New().SetTimeout(timeout)
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &HTTPAnalyzer{client: c, url: url}
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, r domain.Review) (*domain.Analysis, error) {
	var out domain.Analysis
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(request{
			ReviewID:   r.ID,
			BusinessID: r.BusinessID,
			Platform:   r.Platform,
			Rating:     r.Rating,
			Author:     r.AuthorName,
			Content:    r.Content,
		}).
		SetResult(&out).
		Post(a.url)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	if resp.StatusCode() == http.StatusNoContent {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("analysis: status %d: %s", resp.StatusCode(), resp.String())
	}
	if out.Sentiment == "" {
		return nil, nil
	}
	return sanitize(out)
}

var sentiments = map[string]bool{"positive": true, "negative": true, "neutral": true, "mixed": true}

// sanitize fits a service answer into what storage accepts: a known
// sentiment label and an urgency in [0, 1].
func sanitize(a domain.Analysis) (*domain.Analysis, error) {
	a.Sentiment = strings.ToLower(strings.TrimSpace(a.Sentiment))
	if !sentiments[a.Sentiment] {
		return nil, fmt.Errorf("analysis: unknown sentiment %q", a.Sentiment)
	}
	switch {
	case math.IsNaN(a.UrgencyScore) || a.UrgencyScore < 0:
		a.UrgencyScore = 0
	case a.UrgencyScore > 1:
		a.UrgencyScore = 1
	}
	return &a, nil
}
