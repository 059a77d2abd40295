// Package alerting delivers alerts about newly analyzed reviews.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"review_sync/internal/domain"
)

// Policy decides which enriched reviews deserve an alert.
type Policy struct {
	MaxRating  int     // alert when rating <= MaxRating
	MinUrgency float64 // alert when urgency >= MinUrgency (0 disables)
}

func (p Policy) ShouldAlert(r domain.EnrichedReview) bool {
	if r.Analysis.Sentiment == "negative" {
		return true
	}
	if r.Review.Rating > 0 && r.Review.Rating <= p.MaxRating {
		return true
	}
	return p.MinUrgency > 0 && r.Analysis.UrgencyScore >= p.MinUrgency
}

// Channel is one delivery route (webhook, email, ...).
type Channel interface {
	Name() string
	Send(ctx context.Context, r domain.EnrichedReview) error
}

// Notifier fans an alert out to every configured channel.
// It reports sent=true when at least one channel delivered.
type Notifier struct {
	policy   Policy
	channels []Channel
}

var _ domain.Notifier = (*Notifier)(nil)

func NewNotifier(p Policy, channels ...Channel) *Notifier {
	return &Notifier{policy: p, channels: channels}
}

func (n *Notifier) Notify(ctx context.Context, r domain.EnrichedReview) (bool, error) {
	if len(n.channels) == 0 || !n.policy.ShouldAlert(r) {
		return false, nil
	}
	sent := false
	var errs []error
	for _, ch := range n.channels {
		if err := ch.Send(ctx, r); err != nil {
			log.Warn().Err(err).Str("channel", ch.Name()).Str("review_id", r.Review.ID).Msg("alert delivery failed")
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		sent = true
	}
	return sent, errors.Join(errs...)
}

func title(r domain.EnrichedReview) string {
	return fmt.Sprintf("New %d-star %s review (%s)", r.Review.Rating, platformLabel(r.Review.Platform), r.Analysis.Sentiment)
}

func body(r domain.EnrichedReview) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s wrote:\n%s\n\n", r.Review.AuthorName, r.Review.Content)
	fmt.Fprintf(&b, "Urgency: %.2f\n", r.Analysis.UrgencyScore)
	if len(r.Analysis.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(r.Analysis.Topics, ", "))
	}
	if r.Analysis.SuggestedReply != "" {
		fmt.Fprintf(&b, "Suggested reply: %s\n", r.Analysis.SuggestedReply)
	}
	return b.String()
}

func platformLabel(p domain.Platform) string {
	s := string(p)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
