package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"review_sync/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

type scanner interface {
	Scan(dest ...any) error
}

type Repo struct{ db *sql.DB }

var _ domain.Repository = (*Repo)(nil)

func New(db *sql.DB) *Repo { return &Repo{db: db} }

/********** connections **********/

func scanConnection(s scanner) (domain.Connection, error) {
	var c domain.Connection
	var refresh sql.NullString
	var expires, synced sql.NullTime
	if err := s.Scan(
		&c.ID, &c.BusinessID, &c.Platform, &c.ExternalID, &c.AccessToken, &refresh,
		&expires, &c.SyncStatus, &synced, &c.TotalReviews, &c.AverageRating,
	); err != nil {
		return domain.Connection{}, err
	}
	c.RefreshToken = strPtr(refresh)
	c.TokenExpiresAt = timePtr(expires)
	c.LastSyncedAt = timePtr(synced)
	return c, nil
}

func (r *Repo) GetConnection(ctx context.Context, id string) (domain.Connection, error) {
	c, err := scanConnection(r.db.QueryRowContext(ctx, getConnectionSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Connection{}, domain.ErrNotFound
	}
	return c, err
}

// SaveConnection creates or re-links the connection for (BusinessID, Platform).
// Linking happens outside the sync pipeline; this is used by provisioning and tests.
func (r *Repo) SaveConnection(ctx context.Context, c domain.Connection) (domain.Connection, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.SyncStatus == "" {
		c.SyncStatus = domain.StatusActive
	}
	if _, err := r.db.ExecContext(ctx, upsertConnectionSQL,
		c.ID, c.BusinessID, c.Platform, c.ExternalID, c.AccessToken,
		valStr(c.RefreshToken), valTime(c.TokenExpiresAt), c.SyncStatus,
	); err != nil {
		return domain.Connection{}, err
	}
	return scanConnection(r.db.QueryRowContext(ctx, getConnectionByKeySQL, c.BusinessID, c.Platform))
}

// ListConnections returns connections least recently synced first.
func (r *Repo) ListConnections(ctx context.Context, q domain.ConnectionsQuery) ([]domain.Connection, error) {
	var where []string
	var args []any
	if q.Platform != nil {
		where = append(where, "platform = ?")
		args = append(args, *q.Platform)
	}
	if q.SkipReconnectRequired {
		where = append(where, "sync_status NOT IN (?, ?, ?)")
		args = append(args, domain.StatusTokenExpired, domain.StatusNoRefreshToken, domain.StatusRefreshFailed)
	}
	query := "SELECT" + connectionColumns + "\nFROM platform_connections"
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY last_synced_at IS NOT NULL, last_synced_at, id"
	if q.Limit > 0 {
		query += "\nLIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateConnectionTokens(ctx context.Context, id, accessToken string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, updateTokensSQL, accessToken, expiresAt.UTC(), id)
	return err
}

func (r *Repo) UpdateConnectionStatus(ctx context.Context, id string, status domain.SyncStatus) error {
	_, err := r.db.ExecContext(ctx, updateStatusSQL, status, id)
	return err
}

func (r *Repo) CompleteSync(ctx context.Context, id string, st domain.Stats, status domain.SyncStatus, at time.Time) error {
	_, err := r.db.ExecContext(ctx, completeSyncSQL, st.TotalReviews, st.AverageRating, status, at.UTC(), id)
	return err
}

/********** reviews **********/

func scanReview(s scanner) (domain.Review, error) {
	var rv domain.Review
	var avatar, url, respText, sentiment, suggested sql.NullString
	var respondedAt sql.NullTime
	var urgency sql.NullFloat64
	var topics []byte
	if err := s.Scan(
		&rv.ID, &rv.BusinessID, &rv.Platform, &rv.ConnectionID, &rv.ExternalID, &rv.AuthorName, &avatar,
		&rv.Rating, &rv.Content, &rv.PublishedAt, &url, &rv.ResponseStatus, &respText, &respondedAt,
		&rv.ProcessingStatus, &sentiment, &urgency, &topics, &suggested,
	); err != nil {
		return domain.Review{}, err
	}
	rv.AuthorAvatarURL = strPtr(avatar)
	rv.ExternalURL = strPtr(url)
	rv.ResponseText = strPtr(respText)
	rv.RespondedAt = timePtr(respondedAt)
	rv.Sentiment = strPtr(sentiment)
	rv.SuggestedReply = strPtr(suggested)
	if urgency.Valid {
		u := urgency.Float64
		rv.UrgencyScore = &u
	}
	if len(topics) > 0 {
		if err := json.Unmarshal(topics, &rv.Topics); err != nil {
			return domain.Review{}, fmt.Errorf("decode topics of review %s: %w", rv.ID, err)
		}
	}
	return rv, nil
}

func (r *Repo) UpsertReview(ctx context.Context, rv domain.Review) (domain.Review, error) {
	status := rv.ResponseStatus
	if status == "" {
		status = domain.ResponsePending
	}
	if _, err := r.db.ExecContext(ctx, upsertReviewSQL,
		uuid.NewString(),
		rv.BusinessID,
		rv.Platform,
		rv.ConnectionID,
		rv.ExternalID,
		rv.AuthorName,
		valStr(rv.AuthorAvatarURL),
		rv.Rating,
		rv.Content,
		rv.PublishedAt.UTC(),
		valStr(rv.ExternalURL),
		status,
		valStr(rv.ResponseText),
		valTime(rv.RespondedAt),
	); err != nil {
		return domain.Review{}, fmt.Errorf("upsert review %s: %w", rv.ExternalID, err)
	}
	stored, err := scanReview(r.db.QueryRowContext(ctx, getReviewByKeySQL, rv.BusinessID, rv.Platform, rv.ExternalID))
	if err != nil {
		return domain.Review{}, fmt.Errorf("reload review %s: %w", rv.ExternalID, err)
	}
	return stored, nil
}

func (r *Repo) GetReview(ctx context.Context, id string) (domain.Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx, getReviewSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Review{}, domain.ErrNotFound
	}
	return rv, err
}

func (r *Repo) SaveAnalysis(ctx context.Context, reviewID string, a domain.Analysis) error {
	topics, err := json.Marshal(a.Topics)
	if err != nil {
		return err
	}
	if a.Topics == nil {
		topics = []byte("[]")
	}
	_, err = r.db.ExecContext(ctx, saveAnalysisSQL, a.Sentiment, a.UrgencyScore, string(topics), a.SuggestedReply, reviewID)
	return err
}

func (r *Repo) MarkAnalysisFailed(ctx context.Context, reviewID string) error {
	_, err := r.db.ExecContext(ctx, markAnalysisFailedSQL, reviewID)
	return err
}

func (r *Repo) MarkResponded(ctx context.Context, reviewID, text string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, markRespondedSQL, text, at.UTC(), reviewID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AggregateRatings is the local fallback for connection stats; the mean is
// rounded to one decimal and is 0 when there are no reviews.
func (r *Repo) AggregateRatings(ctx context.Context, businessID string, p domain.Platform) (domain.Stats, error) {
	var st domain.Stats
	if err := r.db.QueryRowContext(ctx, aggregateRatingsSQL, businessID, p).Scan(&st.TotalReviews, &st.AverageRating); err != nil {
		return domain.Stats{}, err
	}
	st.AverageRating = math.Round(st.AverageRating*10) / 10
	return st, nil
}
