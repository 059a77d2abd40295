package analysis

import (
	"context"
	"sort"
	"strings"

	"review_sync/internal/domain"
)

var (
	positiveWords = []string{"good", "great", "excellent", "love", "awesome", "fantastic", "friendly", "delicious", "recommend", "perfect"}
	negativeWords = []string{"bad", "terrible", "awful", "hate", "rude", "dirty", "cold", "slow", "worst", "never again"}
	topicWords    = map[string][]string{
		"service":     {"service", "staff", "waiter", "rude", "friendly"},
		"food":        {"food", "delicious", "meal", "dish", "taste"},
		"price":       {"price", "expensive", "cheap", "value"},
		"cleanliness": {"clean", "dirty"},
		"wait_time":   {"wait", "slow", "queue"},
	}
)

// KeywordAnalyzer is the offline fallback used when no analysis service is configured.
type KeywordAnalyzer struct{}

var _ domain.Analyzer = KeywordAnalyzer{}

func (KeywordAnalyzer) Analyze(_ context.Context, r domain.Review) (*domain.Analysis, error) {
	content := strings.ToLower(r.Content)

	pos, neg := 0, 0
	for _, w := range positiveWords {
		if strings.Contains(content, w) {
			pos++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(content, w) {
			neg++
		}
	}

	sentiment := "neutral"
	switch {
	case pos > neg:
		sentiment = "positive"
	case neg > pos:
		sentiment = "negative"
	case r.Rating >= 4:
		sentiment = "positive"
	case r.Rating > 0 && r.Rating <= 2:
		sentiment = "negative"
	}

	var topics []string
	for topic, words := range topicWords {
		for _, w := range words {
			if strings.Contains(content, w) {
				topics = append(topics, topic)
				break
			}
		}
	}

	sort.Strings(topics)

	return &domain.Analysis{
		Sentiment:      sentiment,
		UrgencyScore:   urgency(sentiment, r.Rating),
		Topics:         topics,
		SuggestedReply: suggestedReply(sentiment, r.AuthorName),
	}, nil
}

func urgency(sentiment string, rating int) float64 {
	score := 0.1
	if sentiment == "negative" {
		score = 0.6
	}
	if rating == 1 {
		score += 0.3
	} else if rating == 2 {
		score += 0.15
	}
	if score > 1 {
		score = 1
	}
	return score
}

func suggestedReply(sentiment, author string) string {
	name := strings.TrimSpace(author)
	if name == "" || name == "Anonymous" {
		name = "there"
	}
	switch sentiment {
	case "positive":
		return "Hi " + name + ", thank you for the kind words! We look forward to seeing you again."
	case "negative":
		return "Hi " + name + ", we're sorry to hear about your experience. Please reach out so we can make it right."
	}
	return "Hi " + name + ", thanks for taking the time to share your feedback."
}
