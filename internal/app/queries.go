package app

import (
	"context"
	"time"

	"review_sync/internal/domain"
)

type QueryService struct {
	repo     domain.Repository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.Repository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

func (s *QueryService) GetConnection(ctx context.Context, id string) (domain.ConnectionView, error) {
	key := ConnectionCacheKey(id)
	var v domain.ConnectionView
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &v); ok {
			return v, nil
		}
	}
	c, err := s.repo.GetConnection(ctx, id)
	if err != nil {
		return domain.ConnectionView{}, err
	}
	v = c.View()
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds()))
	}
	return v, nil
}
