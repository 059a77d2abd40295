// Package scheduler periodically syncs every eligible connection.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"review_sync/internal/domain"
)

type ConnectionLister interface {
	ListConnections(ctx context.Context, q domain.ConnectionsQuery) ([]domain.Connection, error)
}

type Syncer interface {
	Sync(ctx context.Context, connectionID string) (domain.SyncResult, error)
}

// RunSummary counts the outcomes of one pass over the connections.
type RunSummary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int // another sync held the lease
}

type Service struct {
	lister   ConnectionLister
	syncer   Syncer
	schedule string
	workers  int64
	cron     *cron.Cron
}

// NewService accepts standard 5-field cron specs and descriptors such as "@every 6h".
func NewService(l ConnectionLister, s Syncer, schedule string, workers int) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		lister:   l,
		syncer:   s,
		schedule: schedule,
		workers:  int64(workers),
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

func (s *Service) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		log.Info().Msg("scheduled sync run starting")
		sum, err := s.RunOnce(ctx)
		if err != nil {
			log.Error().Err(err).Msg("scheduled sync run failed")
			return
		}
		log.Info().Int("total", sum.Total).Int("ok", sum.Succeeded).Int("failed", sum.Failed).
			Int("skipped", sum.Skipped).Msg("scheduled sync run completed")
	}); err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Str("schedule", s.schedule).Int64("workers", s.workers).Msg("scheduler started")
	return nil
}

// Stop halts the schedule and waits up to timeout for a running pass.
func (s *Service) Stop(timeout time.Duration) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn().Msg("scheduler stop timed out with a run in flight")
	}
	log.Info().Msg("scheduler stopped")
}

// RunOnce syncs all connections that do not need a user reconnect, at most
// workers at a time.
func (s *Service) RunOnce(ctx context.Context) (RunSummary, error) {
	conns, err := s.lister.ListConnections(ctx, domain.ConnectionsQuery{SkipReconnectRequired: true})
	if err != nil {
		return RunSummary{}, err
	}

	sem := semaphore.NewWeighted(s.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	sum := RunSummary{Total: len(conns)}

	for _, c := range conns {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(c domain.Connection) {
			defer wg.Done()
			defer sem.Release(1)

			_, err := s.syncer.Sync(ctx, c.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				sum.Succeeded++
			case errors.Is(err, domain.ErrSyncInProgress):
				sum.Skipped++
			default:
				sum.Failed++
				log.Warn().Err(err).Str("connection_id", c.ID).Str("platform", string(c.Platform)).Msg("sync failed")
			}
		}(c)
	}
	wg.Wait()
	return sum, ctx.Err()
}
