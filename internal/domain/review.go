package domain

import "time"

type ResponseStatus string

const (
	ResponsePending   ResponseStatus = "pending"
	ResponseResponded ResponseStatus = "responded"
	ResponseIgnored   ResponseStatus = "ignored"
)

// ProcessingStatus marks whether the analysis/alert enrichment ran for a review.
// Anything other than ProcessingProcessed is picked up again on the next sync.
type ProcessingStatus string

const (
	ProcessingUnprocessed ProcessingStatus = "unprocessed"
	ProcessingProcessed   ProcessingStatus = "processed"
	ProcessingFailed      ProcessingStatus = "failed"
)

// Review is the canonical, locally owned copy of one provider review.
// Unique on (BusinessID, Platform, ExternalID).
type Review struct {
	ID               string
	BusinessID       string
	Platform         Platform
	ConnectionID     string
	ExternalID       string
	AuthorName       string
	AuthorAvatarURL  *string
	Rating           int
	Content          string
	PublishedAt      time.Time
	ExternalURL      *string
	ResponseStatus   ResponseStatus
	ResponseText     *string
	RespondedAt      *time.Time
	ProcessingStatus ProcessingStatus

	// enrichment, set by the analyzer
	Sentiment      *string
	UrgencyScore   *float64
	Topics         []string
	SuggestedReply *string
}

// NeedsAnalysis reports whether the review should be handed to the analyzer.
func (r Review) NeedsAnalysis() bool {
	return r.ProcessingStatus != ProcessingProcessed && r.Content != ""
}

// Analysis is what the analysis collaborator returns for one review.
type Analysis struct {
	Sentiment      string   `json:"sentiment"`
	UrgencyScore   float64  `json:"urgency_score"`
	Topics         []string `json:"topics"`
	SuggestedReply string   `json:"suggested_reply"`
}

// EnrichedReview is handed to the alerting collaborator.
type EnrichedReview struct {
	Review   Review
	Analysis Analysis
}
