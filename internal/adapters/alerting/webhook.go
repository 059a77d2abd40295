package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"review_sync/internal/domain"
)

type webhookMessage struct {
	Title      string          `json:"title"`
	Text       string          `json:"text"`
	BusinessID string          `json:"business_id"`
	ReviewID   string          `json:"review_id"`
	Platform   domain.Platform `json:"platform"`
	Rating     int             `json:"rating"`
	Sentiment  string          `json:"sentiment"`
	Urgency    float64         `json:"urgency_score"`
}

// Webhook posts alerts as JSON to a chat or automation webhook.
type Webhook struct {
	client *resty.Client
	url    string
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{client: resty.New().SetTimeout(timeout), url: url}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, r domain.EnrichedReview) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookMessage{
			Title:      title(r),
			Text:       body(r),
			BusinessID: r.Review.BusinessID,
			ReviewID:   r.Review.ID,
			Platform:   r.Review.Platform,
			Rating:     r.Review.Rating,
			Sentiment:  r.Analysis.Sentiment,
			Urgency:    r.Analysis.UrgencyScore,
		}).
		Post(w.url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
