package app

import (
	"context"
	"fmt"
	"math"

	"review_sync/internal/adapters/observability"
	"review_sync/internal/domain"
)

type StatsAggregator struct {
	repo domain.Repository
}

func NewStatsAggregator(repo domain.Repository) *StatsAggregator {
	return &StatsAggregator{repo: repo}
}

// Recompute prefers the provider's live summary and falls back to the local
// aggregate over stored reviews. live reports which source was used.
func (s *StatsAggregator) Recompute(ctx context.Context, a domain.PlatformAdapter, c domain.Connection) (st domain.Stats, live bool, err error) {
	sum, err := a.FetchSummary(ctx, c)
	if err == nil {
		return domain.Stats{TotalReviews: sum.Count, AverageRating: Round1(sum.Rating)}, true, nil
	}
	observability.Ctx(ctx).Warn().Err(err).Str("connection_id", c.ID).Str("platform", string(c.Platform)).
		Msg("summary fetch failed, using local aggregate")
	observability.ObserveSummaryFallback(string(c.Platform))

	st, err = s.repo.AggregateRatings(ctx, c.BusinessID, c.Platform)
	if err != nil {
		return domain.Stats{}, false, fmt.Errorf("aggregate ratings: %w", err)
	}
	st.AverageRating = Round1(st.AverageRating)
	return st, false, nil
}

// Round1 rounds to one decimal place.
func Round1(f float64) float64 {
	return math.Round(f*10) / 10
}
