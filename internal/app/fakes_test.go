package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"review_sync/internal/domain"
)

// ---- repository ----

type memRepo struct {
	mu      sync.Mutex
	conns   map[string]domain.Connection
	reviews map[string]domain.Review // by id
	seq     int

	failUpsert    map[string]error // by external id
	aggregateErr  error
	statusHistory []domain.SyncStatus
}

func newMemRepo(conns ...domain.Connection) *memRepo {
	r := &memRepo{conns: map[string]domain.Connection{}, reviews: map[string]domain.Review{}, failUpsert: map[string]error{}}
	for _, c := range conns {
		r.conns[c.ID] = c
	}
	return r
}

func (r *memRepo) GetConnection(ctx context.Context, id string) (domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return domain.Connection{}, domain.ErrNotFound
	}
	return c, nil
}

func (r *memRepo) ListConnections(ctx context.Context, q domain.ConnectionsQuery) ([]domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Connection
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out, nil
}

func (r *memRepo) UpdateConnectionTokens(ctx context.Context, id, token string, exp time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.conns[id]
	c.AccessToken = token
	c.TokenExpiresAt = &exp
	c.SyncStatus = domain.StatusActive
	r.conns[id] = c
	return nil
}

func (r *memRepo) UpdateConnectionStatus(ctx context.Context, id string, st domain.SyncStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.conns[id]
	c.SyncStatus = st
	r.conns[id] = c
	r.statusHistory = append(r.statusHistory, st)
	return nil
}

func (r *memRepo) CompleteSync(ctx context.Context, id string, st domain.Stats, status domain.SyncStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.conns[id]
	c.TotalReviews = st.TotalReviews
	c.AverageRating = st.AverageRating
	c.SyncStatus = status
	c.LastSyncedAt = &at
	r.conns[id] = c
	r.statusHistory = append(r.statusHistory, status)
	return nil
}

func (r *memRepo) UpsertReview(ctx context.Context, in domain.Review) (domain.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failUpsert[in.ExternalID]; err != nil {
		return domain.Review{}, err
	}
	for id, cur := range r.reviews {
		if cur.BusinessID != in.BusinessID || cur.Platform != in.Platform || cur.ExternalID != in.ExternalID {
			continue
		}
		cur.AuthorName = in.AuthorName
		cur.AuthorAvatarURL = in.AuthorAvatarURL
		cur.Rating = in.Rating
		cur.Content = in.Content
		cur.PublishedAt = in.PublishedAt
		cur.ExternalURL = in.ExternalURL
		if in.ResponseStatus == domain.ResponseResponded {
			cur.ResponseStatus = in.ResponseStatus
			cur.ResponseText = in.ResponseText
			cur.RespondedAt = in.RespondedAt
		}
		r.reviews[id] = cur
		return cur, nil
	}
	r.seq++
	in.ID = fmt.Sprintf("rv-%d", r.seq)
	r.reviews[in.ID] = in
	return in, nil
}

func (r *memRepo) GetReview(ctx context.Context, id string) (domain.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv, ok := r.reviews[id]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	return rv, nil
}

func (r *memRepo) SaveAnalysis(ctx context.Context, id string, a domain.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv := r.reviews[id]
	rv.Sentiment = &a.Sentiment
	rv.UrgencyScore = &a.UrgencyScore
	rv.Topics = a.Topics
	rv.SuggestedReply = &a.SuggestedReply
	rv.ProcessingStatus = domain.ProcessingProcessed
	r.reviews[id] = rv
	return nil
}

func (r *memRepo) MarkAnalysisFailed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv := r.reviews[id]
	rv.ProcessingStatus = domain.ProcessingFailed
	r.reviews[id] = rv
	return nil
}

func (r *memRepo) MarkResponded(ctx context.Context, id, text string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv := r.reviews[id]
	rv.ResponseStatus = domain.ResponseResponded
	rv.ResponseText = &text
	rv.RespondedAt = &at
	r.reviews[id] = rv
	return nil
}

func (r *memRepo) AggregateRatings(ctx context.Context, businessID string, p domain.Platform) (domain.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.aggregateErr != nil {
		return domain.Stats{}, r.aggregateErr
	}
	var st domain.Stats
	sum := 0
	for _, rv := range r.reviews {
		if rv.BusinessID == businessID && rv.Platform == p {
			st.TotalReviews++
			sum += rv.Rating
		}
	}
	if st.TotalReviews > 0 {
		st.AverageRating = float64(sum) / float64(st.TotalReviews)
	}
	return st, nil
}

func (r *memRepo) byExternal(externalID string) (domain.Review, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rv := range r.reviews {
		if rv.ExternalID == externalID {
			return rv, true
		}
	}
	return domain.Review{}, false
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reviews)
}

// ---- adapters ----

type fakeAdapter struct {
	platform   domain.Platform
	caps       domain.Capabilities
	reviews    []domain.NormalizedReview
	fetchErr   error
	summary    domain.NormalizedSummary
	summaryErr error

	fetchCalls int
	lastConn   domain.Connection
}

func (a *fakeAdapter) Platform() domain.Platform         { return a.platform }
func (a *fakeAdapter) Capabilities() domain.Capabilities { return a.caps }
func (a *fakeAdapter) FetchReviews(ctx context.Context, c domain.Connection) ([]domain.NormalizedReview, error) {
	a.fetchCalls++
	a.lastConn = c
	return a.reviews, a.fetchErr
}
func (a *fakeAdapter) FetchSummary(ctx context.Context, c domain.Connection) (domain.NormalizedSummary, error) {
	return a.summary, a.summaryErr
}

type replyingAdapter struct {
	*fakeAdapter
	replies map[string]string
}

func (a *replyingAdapter) ReplyToReview(ctx context.Context, c domain.Connection, externalID, text string) error {
	a.replies[externalID] = text
	return nil
}

// ---- collaborators ----

type fakeAnalyzer struct {
	err       error
	result    *domain.Analysis
	nilResult bool
	calls     int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, r domain.Review) (*domain.Analysis, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.nilResult {
		return nil, nil
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.Analysis{Sentiment: "positive", UrgencyScore: 0.1, Topics: []string{"service"}, SuggestedReply: "Thanks!"}, nil
}

type fakeNotifier struct {
	sent  bool
	err   error
	calls int
}

func (f *fakeNotifier) Notify(ctx context.Context, r domain.EnrichedReview) (bool, error) {
	f.calls++
	return f.sent, f.err
}

type fakeRefresher struct {
	grant domain.TokenGrant
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (domain.TokenGrant, error) {
	f.calls++
	return f.grant, f.err
}

type fakeLocker struct {
	held     bool
	err      error
	released int
}

func (l *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	return func() { l.released++ }, true, nil
}

type fakeCache struct {
	store   map[string]any
	deleted []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if d, ok := dst.(*domain.ConnectionView); ok {
		*d = v.(domain.ConnectionView)
		return true, nil
	}
	return false, errors.New("unexpected cache type")
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	c.deleted = append(c.deleted, key)
	return nil
}

func ptr[T any](v T) *T { return &v }
