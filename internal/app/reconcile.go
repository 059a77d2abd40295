package app

import (
	"context"
	"errors"
	"time"

	"review_sync/internal/adapters/observability"
	"review_sync/internal/domain"
)

// Reconciler merges normalized provider reviews into canonical storage and
// runs analysis/alerting for reviews that have not been processed yet.
type Reconciler struct {
	repo     domain.Repository
	analyzer domain.Analyzer
	notifier domain.Notifier // optional
	timeout  time.Duration   // per collaborator call, 0 = none
}

func NewReconciler(repo domain.Repository, a domain.Analyzer, n domain.Notifier, collaboratorTimeout time.Duration) *Reconciler {
	return &Reconciler{repo: repo, analyzer: a, notifier: n, timeout: collaboratorTimeout}
}

var errNoAnalysis = errors.New("analyzer returned no result")

// Reconcile processes items strictly in order. Per-review failures never
// abort the batch; they are collected in the returned result.
func (r *Reconciler) Reconcile(ctx context.Context, c domain.Connection, items []domain.NormalizedReview) domain.SyncResult {
	res := domain.SyncResult{Total: len(items), OK: []string{}, Failed: []domain.ItemFailure{}}
	platform := string(c.Platform)

	for _, n := range items {
		l := observability.Ctx(ctx).With().Str("connection_id", c.ID).Str("platform", platform).Str("external_id", n.ExternalID).Logger()

		stored, err := r.repo.UpsertReview(ctx, toReview(c, n))
		if err != nil {
			l.Error().Err(err).Msg("review upsert failed")
			res.Failed = append(res.Failed, failure(n.ExternalID, domain.StagePersist, err))
			observability.ObserveReview(platform, "persist_failed")
			continue
		}
		if !stored.NeedsAnalysis() {
			res.OK = append(res.OK, n.ExternalID)
			observability.ObserveReview(platform, "stored")
			continue
		}

		a, err := r.analyze(ctx, stored)
		if err != nil {
			l.Warn().Err(err).Msg("analysis failed, will retry next sync")
			if merr := r.repo.MarkAnalysisFailed(ctx, stored.ID); merr != nil {
				l.Error().Err(merr).Msg("mark analysis failed")
			}
			res.Failed = append(res.Failed, failure(n.ExternalID, domain.StageAnalyze, err))
			observability.ObserveReview(platform, "analysis_failed")
			continue
		}

		if r.notifier != nil {
			sent, err := r.notify(ctx, domain.EnrichedReview{Review: stored, Analysis: *a})
			if sent {
				res.Alerts++
			}
			if err != nil {
				l.Warn().Err(err).Msg("alert failed")
				res.Failed = append(res.Failed, failure(n.ExternalID, domain.StageAlert, err))
			}
		}

		if err := r.repo.SaveAnalysis(ctx, stored.ID, *a); err != nil {
			l.Error().Err(err).Msg("save analysis failed")
			res.Failed = append(res.Failed, failure(n.ExternalID, domain.StagePersist, err))
			observability.ObserveReview(platform, "persist_failed")
			continue
		}
		res.Analyzed++
		res.OK = append(res.OK, n.ExternalID)
		observability.ObserveReview(platform, "analyzed")
	}
	return res
}

func (r *Reconciler) analyze(ctx context.Context, rv domain.Review) (*domain.Analysis, error) {
	if r.analyzer == nil {
		return nil, errNoAnalysis
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()
	a, err := r.analyzer.Analyze(ctx, rv)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errNoAnalysis
	}
	return a, nil
}

func (r *Reconciler) notify(ctx context.Context, er domain.EnrichedReview) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.notifier.Notify(ctx, er)
}

func (r *Reconciler) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// toReview builds the upsert candidate. Response fields are only set when the
// provider reports a reply; storage keeps local response state otherwise.
func toReview(c domain.Connection, n domain.NormalizedReview) domain.Review {
	rv := domain.Review{
		BusinessID:       c.BusinessID,
		Platform:         c.Platform,
		ConnectionID:     c.ID,
		ExternalID:       n.ExternalID,
		AuthorName:       n.AuthorName,
		AuthorAvatarURL:  n.AuthorAvatarURL,
		Rating:           n.Rating,
		Content:          n.Content,
		PublishedAt:      n.PublishedAt,
		ExternalURL:      n.ExternalURL,
		ResponseStatus:   domain.ResponsePending,
		ProcessingStatus: domain.ProcessingUnprocessed,
	}
	if n.Reply != nil {
		text := n.Reply.Text
		rv.ResponseStatus = domain.ResponseResponded
		rv.ResponseText = &text
		rv.RespondedAt = n.Reply.At
	}
	return rv
}

func failure(externalID, stage string, err error) domain.ItemFailure {
	return domain.ItemFailure{ExternalID: externalID, Stage: stage, Reason: err.Error()}
}
