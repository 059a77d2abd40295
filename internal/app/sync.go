package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"review_sync/internal/adapters/observability"
	"review_sync/internal/domain"
)

// SyncOptions carries the optional collaborators of SyncService.
type SyncOptions struct {
	Cache    domain.Cache  // connection view cache to invalidate
	Locker   domain.Locker // per-connection lease; nil disables
	LeaseTTL time.Duration
	Timeout  time.Duration // whole run, 0 = none
	Clock    func() time.Time
}

// SyncService runs one connection through token check, fetch,
// reconciliation, stats and status update.
type SyncService struct {
	repo       domain.Repository
	adapters   Adapters
	tokens     *TokenManager
	reconciler *Reconciler
	stats      *StatsAggregator
	opts       SyncOptions
}

func NewSyncService(repo domain.Repository, adapters Adapters, tokens *TokenManager, rec *Reconciler, opts SyncOptions) *SyncService {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 10 * time.Minute
	}
	return &SyncService{
		repo:       repo,
		adapters:   adapters,
		tokens:     tokens,
		reconciler: rec,
		stats:      NewStatsAggregator(repo),
		opts:       opts,
	}
}

func ConnectionCacheKey(id string) string { return "connection:" + id }

func (s *SyncService) Sync(ctx context.Context, connectionID string) (domain.SyncResult, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	if s.opts.Locker != nil {
		release, ok, err := s.opts.Locker.Acquire(ctx, "sync:connection:"+connectionID, s.opts.LeaseTTL)
		switch {
		case err != nil:
			// lease backend down: run unserialized
			observability.Ctx(ctx).Warn().Err(err).Str("connection_id", connectionID).
				Msg("sync lease unavailable, continuing without it")
		case !ok:
			return domain.SyncResult{}, domain.ErrSyncInProgress
		default:
			defer release()
		}
	}

	c, err := s.repo.GetConnection(ctx, connectionID)
	if err != nil {
		return domain.SyncResult{}, fmt.Errorf("load connection %s: %w", connectionID, err)
	}
	defer s.invalidate(ctx, connectionID)

	start := s.opts.Clock()
	res, err := s.run(ctx, c)
	status := domain.StatusFor(err)
	observability.ObserveSync(string(c.Platform), string(status), s.opts.Clock().Sub(start))

	l := observability.Ctx(ctx).With().Str("connection_id", c.ID).Str("platform", string(c.Platform)).Logger()
	if err != nil {
		var te *domain.TokenError
		if !errors.As(err, &te) {
			// token failures were persisted by the token manager
			if perr := s.repo.UpdateConnectionStatus(context.WithoutCancel(ctx), c.ID, status); perr != nil {
				l.Error().Err(perr).Msg("persist sync status failed")
			}
		}
		l.Error().Err(err).Str("status", string(status)).Msg("sync failed")
		return res, fmt.Errorf("sync connection %s: %w", c.ID, err)
	}

	l.Info().Int("total", res.Total).Int("analyzed", res.Analyzed).Int("alerts", res.Alerts).
		Int("failed", len(res.Failed)).Bool("truncated", res.Truncated).Msg("sync completed")
	return res, nil
}

func (s *SyncService) run(ctx context.Context, c domain.Connection) (domain.SyncResult, error) {
	adapter, err := s.adapters.For(c.Platform)
	if err != nil {
		return domain.SyncResult{}, err
	}
	if c, err = s.authorize(ctx, c); err != nil {
		return domain.SyncResult{}, err
	}

	items, err := adapter.FetchReviews(ctx, c)
	if err != nil {
		return domain.SyncResult{}, fmt.Errorf("fetch reviews: %w", err)
	}

	res := s.reconciler.Reconcile(ctx, c, items)

	st, live, err := s.stats.Recompute(ctx, adapter, c)
	if err != nil {
		return res, err
	}
	if limit := adapter.Capabilities().MaxReviewsPerFetch; limit > 0 && live && st.TotalReviews > len(items) {
		res.Truncated = true
	}

	if err := s.repo.CompleteSync(ctx, c.ID, st, domain.StatusActive, s.opts.Clock().UTC()); err != nil {
		return res, fmt.Errorf("complete sync: %w", err)
	}
	res.Success = true
	return res, nil
}

func (s *SyncService) authorize(ctx context.Context, c domain.Connection) (domain.Connection, error) {
	if c.Platform != domain.PlatformGoogle || s.tokens == nil {
		return c, nil
	}
	_, c, err := s.tokens.ValidAccessToken(ctx, c)
	return c, err
}

func (s *SyncService) invalidate(ctx context.Context, id string) {
	if s.opts.Cache == nil {
		return
	}
	if err := s.opts.Cache.Del(context.WithoutCancel(ctx), ConnectionCacheKey(id)); err != nil {
		observability.Ctx(ctx).Warn().Err(err).Str("connection_id", id).Msg("cache invalidation failed")
	}
}

// Reply posts an owner reply through the provider and records it locally.
func (s *SyncService) Reply(ctx context.Context, reviewID, text string) error {
	r, err := s.repo.GetReview(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("load review %s: %w", reviewID, err)
	}
	c, err := s.repo.GetConnection(ctx, r.ConnectionID)
	if err != nil {
		return fmt.Errorf("load connection %s: %w", r.ConnectionID, err)
	}
	adapter, err := s.adapters.For(c.Platform)
	if err != nil {
		return err
	}
	replier, ok := adapter.(domain.Replier)
	if !ok || !adapter.Capabilities().SupportsReplies {
		return fmt.Errorf("%w: %s", domain.ErrRepliesUnsupported, c.Platform)
	}
	if c, err = s.authorize(ctx, c); err != nil {
		return err
	}
	if err := replier.ReplyToReview(ctx, c, r.ExternalID, text); err != nil {
		return fmt.Errorf("post reply: %w", err)
	}
	if err := s.repo.MarkResponded(ctx, r.ID, text, s.opts.Clock().UTC()); err != nil {
		return fmt.Errorf("record reply: %w", err)
	}
	observability.Ctx(ctx).Info().Str("review_id", r.ID).Str("platform", string(c.Platform)).Msg("reply posted")
	return nil
}
