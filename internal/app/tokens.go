package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"review_sync/internal/adapters/observability"
	"review_sync/internal/domain"
)

// RefreshSkew is how long before expiry a token is treated as expiring.
const RefreshSkew = 5 * time.Minute

// TokenManager keeps Google access tokens usable. Other platforms never pass through it.
type TokenManager struct {
	repo      domain.Repository
	refresher domain.TokenRefresher
	now       func() time.Time
}

func NewTokenManager(repo domain.Repository, refresher domain.TokenRefresher) *TokenManager {
	return &TokenManager{repo: repo, refresher: refresher, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

func (m *TokenManager) expiring(c domain.Connection) bool {
	if c.TokenExpiresAt == nil {
		return true
	}
	return !m.now().Before(c.TokenExpiresAt.Add(-RefreshSkew))
}

// ValidAccessToken returns a token that is good for at least RefreshSkew,
// refreshing and persisting it when needed. Token failures are persisted on
// the connection before the *domain.TokenError is returned.
func (m *TokenManager) ValidAccessToken(ctx context.Context, c domain.Connection) (string, domain.Connection, error) {
	if !m.expiring(c) {
		return c.AccessToken, c, nil
	}
	if c.RefreshToken == nil || *c.RefreshToken == "" {
		m.persistStatus(ctx, c, domain.StatusNoRefreshToken)
		return "", c, &domain.TokenError{Kind: domain.TokenNoRefreshToken}
	}

	grant, err := m.refresher.Refresh(ctx, *c.RefreshToken)
	if err == nil && grant.AccessToken == "" {
		err = errors.New("empty access token in refresh response")
	}
	if err != nil {
		m.persistStatus(ctx, c, domain.StatusRefreshFailed)
		return "", c, &domain.TokenError{Kind: domain.TokenRefreshFailed, Err: err}
	}

	exp := m.now().Add(grant.ExpiresIn)
	if err := m.repo.UpdateConnectionTokens(ctx, c.ID, grant.AccessToken, exp); err != nil {
		return "", c, fmt.Errorf("persist refreshed token: %w", err)
	}
	c.AccessToken = grant.AccessToken
	c.TokenExpiresAt = &exp
	c.SyncStatus = domain.StatusActive

	observability.Ctx(ctx).Info().Str("connection_id", c.ID).Time("expires_at", exp).Msg("access token refreshed")
	return c.AccessToken, c, nil
}

func (m *TokenManager) persistStatus(ctx context.Context, c domain.Connection, st domain.SyncStatus) {
	if err := m.repo.UpdateConnectionStatus(context.WithoutCancel(ctx), c.ID, st); err != nil {
		observability.Ctx(ctx).Error().Err(err).Str("connection_id", c.ID).Str("status", string(st)).Msg("persist connection status failed")
	}
}
