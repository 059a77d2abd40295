package app_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"review_sync/internal/app"
	"review_sync/internal/domain"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	repo      *memRepo
	adapter   *fakeAdapter
	analyzer  *fakeAnalyzer
	notifier  *fakeNotifier
	refresher *fakeRefresher
	locker    *fakeLocker
	cache     *fakeCache
	svc       *app.SyncService
}

func newHarness(conn domain.Connection, ad domain.PlatformAdapter) *harness {
	h := &harness{
		repo:      newMemRepo(conn),
		analyzer:  &fakeAnalyzer{},
		notifier:  &fakeNotifier{},
		refresher: &fakeRefresher{grant: domain.TokenGrant{AccessToken: "new-tok", ExpiresIn: time.Hour}},
		locker:    &fakeLocker{},
		cache:     &fakeCache{},
	}
	switch a := ad.(type) {
	case *fakeAdapter:
		h.adapter = a
	case *replyingAdapter:
		h.adapter = a.fakeAdapter
	}
	var adapters app.Adapters
	switch conn.Platform {
	case domain.PlatformGoogle:
		adapters.Google = ad
	case domain.PlatformYelp:
		adapters.Yelp = ad
	case domain.PlatformFacebook:
		adapters.Facebook = ad
	}
	clock := func() time.Time { return fixedNow }
	tokens := app.NewTokenManager(h.repo, h.refresher).WithClock(clock)
	rec := app.NewReconciler(h.repo, h.analyzer, h.notifier, time.Second)
	h.svc = app.NewSyncService(h.repo, adapters, tokens, rec, app.SyncOptions{
		Cache:   h.cache,
		Locker:  h.locker,
		Timeout: 5 * time.Second,
		Clock:   clock,
	})
	return h
}

func googleConn() domain.Connection {
	exp := fixedNow.Add(time.Hour)
	return domain.Connection{
		ID: "conn-1", BusinessID: "biz-1", Platform: domain.PlatformGoogle, ExternalID: "loc123",
		AccessToken: "tok", RefreshToken: ptr("refresh"), TokenExpiresAt: &exp, SyncStatus: domain.StatusActive,
	}
}

func yelpConn() domain.Connection {
	return domain.Connection{ID: "conn-2", BusinessID: "biz-1", Platform: domain.PlatformYelp, ExternalID: "yelp-biz", AccessToken: "key"}
}

func nr(id string, rating int, content string) domain.NormalizedReview {
	return domain.NormalizedReview{
		ExternalID:  id,
		AuthorName:  "Guest " + id,
		Rating:      rating,
		Content:     content,
		PublishedAt: fixedNow.Add(-24 * time.Hour),
	}
}

func TestSync_EndToEnd(t *testing.T) {
	ad := &fakeAdapter{
		platform:   domain.PlatformGoogle,
		caps:       domain.Capabilities{SupportsReplies: true},
		reviews:    []domain.NormalizedReview{nr("r1", 4, "Lovely brunch"), nr("r2", 5, "Great!")},
		summaryErr: errors.New("summary unavailable"),
	}
	h := newHarness(googleConn(), ad)
	ctx := context.Background()

	// r1 was ingested and analyzed by an earlier run
	stored, _ := h.repo.UpsertReview(ctx, domain.Review{
		BusinessID: "biz-1", Platform: domain.PlatformGoogle, ConnectionID: "conn-1",
		ExternalID: "r1", Rating: 4, Content: "Lovely brunch", ProcessingStatus: domain.ProcessingUnprocessed,
	})
	_ = h.repo.SaveAnalysis(ctx, stored.ID, domain.Analysis{Sentiment: "positive"})

	res, err := h.svc.Sync(ctx, "conn-1")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !res.Success || res.Total != 2 || res.Analyzed != 1 || res.Alerts > 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if h.analyzer.calls != 1 {
		t.Fatalf("analyzer calls = %d, want 1", h.analyzer.calls)
	}
	if h.repo.count() != 2 {
		t.Fatalf("rows = %d, want 2", h.repo.count())
	}
	if ad.lastConn.ExternalID != "loc123" {
		t.Fatalf("adapter got connection %q", ad.lastConn.ExternalID)
	}

	c, _ := h.repo.GetConnection(ctx, "conn-1")
	if c.TotalReviews != 2 || c.AverageRating != 4.5 {
		t.Fatalf("stats = %d/%.1f, want 2/4.5", c.TotalReviews, c.AverageRating)
	}
	if c.SyncStatus != domain.StatusActive || c.LastSyncedAt == nil || !c.LastSyncedAt.Equal(fixedNow) {
		t.Fatalf("unexpected connection state: %+v", c)
	}
	if len(h.cache.deleted) != 1 || h.cache.deleted[0] != "connection:conn-1" {
		t.Fatalf("cache not invalidated: %v", h.cache.deleted)
	}
	if h.locker.released != 1 {
		t.Fatalf("lease released %d times", h.locker.released)
	}
}

func TestSync_Idempotent(t *testing.T) {
	ad := &fakeAdapter{
		platform: domain.PlatformGoogle,
		reviews:  []domain.NormalizedReview{nr("r1", 4, "Nice"), nr("r2", 2, "Slow")},
		summary:  domain.NormalizedSummary{Rating: 3, Count: 2},
	}
	h := newHarness(googleConn(), ad)
	ctx := context.Background()

	if _, err := h.svc.Sync(ctx, "conn-1"); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	before := map[string]domain.Review{}
	for k, v := range h.repo.reviews {
		before[k] = v
	}

	res, err := h.svc.Sync(ctx, "conn-1")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if res.Analyzed != 0 || h.analyzer.calls != 2 {
		t.Fatalf("second run re-analyzed: %+v calls=%d", res, h.analyzer.calls)
	}
	if !reflect.DeepEqual(before, h.repo.reviews) {
		t.Fatalf("rows changed between identical syncs")
	}
}

func TestSync_AnalysisFailureRetriedNextRun(t *testing.T) {
	ad := &fakeAdapter{platform: domain.PlatformYelp, reviews: []domain.NormalizedReview{nr("r2", 5, "Great!")}}
	h := newHarness(yelpConn(), ad)
	ctx := context.Background()

	h.analyzer.err = errors.New("model overloaded")
	res, err := h.svc.Sync(ctx, "conn-2")
	if err != nil {
		t.Fatalf("analysis failure must not fail the sync: %v", err)
	}
	if res.Analyzed != 0 || len(res.Failed) != 1 || res.Failed[0].Stage != domain.StageAnalyze {
		t.Fatalf("unexpected result: %+v", res)
	}
	rv, _ := h.repo.byExternal("r2")
	if rv.Sentiment != nil || rv.ProcessingStatus != domain.ProcessingFailed {
		t.Fatalf("review should stay unanalyzed: %+v", rv)
	}

	h.analyzer.err = nil
	res, err = h.svc.Sync(ctx, "conn-2")
	if err != nil {
		t.Fatalf("retry sync: %v", err)
	}
	if res.Analyzed != 1 {
		t.Fatalf("expected retry to analyze, got %+v", res)
	}
	rv, _ = h.repo.byExternal("r2")
	if rv.Sentiment == nil || *rv.Sentiment != "positive" || rv.ProcessingStatus != domain.ProcessingProcessed {
		t.Fatalf("review not enriched: %+v", rv)
	}
}

func TestSync_NilAnalysisRetriedNextRun(t *testing.T) {
	ad := &fakeAdapter{platform: domain.PlatformYelp, reviews: []domain.NormalizedReview{nr("r1", 1, "Cold soup")}}
	h := newHarness(yelpConn(), ad)
	h.notifier.sent = true
	ctx := context.Background()

	h.analyzer.nilResult = true
	res, err := h.svc.Sync(ctx, "conn-2")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Analyzed != 0 || res.Alerts != 0 || len(res.Failed) != 1 || res.Failed[0].Stage != domain.StageAnalyze {
		t.Fatalf("unexpected result: %+v", res)
	}
	if h.notifier.calls != 0 {
		t.Fatalf("notifier called %d times without an analysis", h.notifier.calls)
	}
	rv, _ := h.repo.byExternal("r1")
	if rv.Sentiment != nil || rv.ProcessingStatus != domain.ProcessingFailed {
		t.Fatalf("review should stay unanalyzed: %+v", rv)
	}

	h.analyzer.nilResult = false
	res, err = h.svc.Sync(ctx, "conn-2")
	if err != nil {
		t.Fatalf("retry sync: %v", err)
	}
	if h.analyzer.calls != 2 || res.Analyzed != 1 {
		t.Fatalf("expected a second analysis attempt: calls=%d res=%+v", h.analyzer.calls, res)
	}
}

func TestSync_EmptyContentIsNotAnalyzed(t *testing.T) {
	ad := &fakeAdapter{platform: domain.PlatformYelp, reviews: []domain.NormalizedReview{nr("r1", 5, "")}}
	h := newHarness(yelpConn(), ad)

	res, err := h.svc.Sync(context.Background(), "conn-2")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if h.analyzer.calls != 0 || res.Analyzed != 0 || len(res.OK) != 1 {
		t.Fatalf("unexpected: %+v calls=%d", res, h.analyzer.calls)
	}
	rv, _ := h.repo.byExternal("r1")
	if rv.ProcessingStatus != domain.ProcessingUnprocessed {
		t.Fatalf("status = %s", rv.ProcessingStatus)
	}
}

func TestSync_AlertsCountedAndFailuresReported(t *testing.T) {
	ad := &fakeAdapter{platform: domain.PlatformYelp, reviews: []domain.NormalizedReview{nr("r1", 1, "Awful")}}
	h := newHarness(yelpConn(), ad)

	h.notifier.sent = true
	res, err := h.svc.Sync(context.Background(), "conn-2")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Alerts != 1 || res.Analyzed != 1 {
		t.Fatalf("unexpected: %+v", res)
	}

	ad.reviews = []domain.NormalizedReview{nr("r9", 1, "Still awful")}
	h.notifier.sent, h.notifier.err = false, errors.New("webhook 500")
	res, err = h.svc.Sync(context.Background(), "conn-2")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Analyzed != 1 || res.Alerts != 0 || len(res.Failed) != 1 || res.Failed[0].Stage != domain.StageAlert {
		t.Fatalf("alert failure should not block enrichment: %+v", res)
	}
}

func TestSync_PersistFailureSkipsOnlyThatReview(t *testing.T) {
	ad := &fakeAdapter{platform: domain.PlatformYelp, reviews: []domain.NormalizedReview{nr("r1", 4, "Ok"), nr("r2", 5, "Great!")}}
	h := newHarness(yelpConn(), ad)
	h.repo.failUpsert["r1"] = errors.New("deadlock")

	res, err := h.svc.Sync(context.Background(), "conn-2")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !res.Success || len(res.Failed) != 1 || res.Failed[0].ExternalID != "r1" || res.Failed[0].Stage != domain.StagePersist {
		t.Fatalf("unexpected: %+v", res)
	}
	if len(res.OK) != 1 || res.OK[0] != "r2" {
		t.Fatalf("ok = %v", res.OK)
	}
	c, _ := h.repo.GetConnection(context.Background(), "conn-2")
	if c.SyncStatus != domain.StatusActive {
		t.Fatalf("status = %s", c.SyncStatus)
	}
}

func TestSync_ProviderErrorsPersistStatus(t *testing.T) {
	cases := []struct {
		code int
		want domain.SyncStatus
	}{
		{500, domain.StatusAPICall},
		{401, domain.StatusTokenExpired},
	}
	for _, tc := range cases {
		ad := &fakeAdapter{platform: domain.PlatformYelp, fetchErr: &domain.ProviderAPIError{Provider: domain.PlatformYelp, Endpoint: "reviews", StatusCode: tc.code}}
		h := newHarness(yelpConn(), ad)

		_, err := h.svc.Sync(context.Background(), "conn-2")
		var pe *domain.ProviderAPIError
		if !errors.As(err, &pe) || pe.StatusCode != tc.code {
			t.Fatalf("expected provider error %d, got %v", tc.code, err)
		}
		c, _ := h.repo.GetConnection(context.Background(), "conn-2")
		if c.SyncStatus != tc.want {
			t.Fatalf("status = %s, want %s", c.SyncStatus, tc.want)
		}
		if len(h.cache.deleted) != 1 {
			t.Fatalf("cache should be invalidated on failure too")
		}
	}
}

func TestSync_TokenErrorAbortsBeforeFetch(t *testing.T) {
	conn := googleConn()
	past := fixedNow.Add(-time.Minute)
	conn.TokenExpiresAt = &past
	conn.RefreshToken = nil
	ad := &fakeAdapter{platform: domain.PlatformGoogle}
	h := newHarness(conn, ad)

	_, err := h.svc.Sync(context.Background(), "conn-1")
	var te *domain.TokenError
	if !errors.As(err, &te) || te.Kind != domain.TokenNoRefreshToken {
		t.Fatalf("expected no_refresh_token error, got %v", err)
	}
	if ad.fetchCalls != 0 || h.refresher.calls != 0 {
		t.Fatalf("fetch=%d refresh=%d, want 0/0", ad.fetchCalls, h.refresher.calls)
	}
	if len(h.repo.statusHistory) != 1 || h.repo.statusHistory[0] != domain.StatusNoRefreshToken {
		t.Fatalf("status history = %v", h.repo.statusHistory)
	}
}

func TestSync_RefreshesExpiringGoogleToken(t *testing.T) {
	conn := googleConn()
	soon := fixedNow.Add(2 * time.Minute)
	conn.TokenExpiresAt = &soon
	ad := &fakeAdapter{platform: domain.PlatformGoogle}
	h := newHarness(conn, ad)

	if _, err := h.svc.Sync(context.Background(), "conn-1"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if ad.lastConn.AccessToken != "new-tok" {
		t.Fatalf("adapter used token %q", ad.lastConn.AccessToken)
	}
	c, _ := h.repo.GetConnection(context.Background(), "conn-1")
	if c.AccessToken != "new-tok" || !c.TokenExpiresAt.Equal(fixedNow.Add(time.Hour)) {
		t.Fatalf("token not persisted: %+v", c)
	}
}

func TestSync_LiveSummaryAndTruncation(t *testing.T) {
	ad := &fakeAdapter{
		platform: domain.PlatformYelp,
		caps:     domain.Capabilities{MaxReviewsPerFetch: 3},
		reviews:  []domain.NormalizedReview{nr("a", 5, "x"), nr("b", 4, "y"), nr("c", 3, "z")},
		summary:  domain.NormalizedSummary{Rating: 4.26, Count: 120},
	}
	h := newHarness(yelpConn(), ad)

	res, err := h.svc.Sync(context.Background(), "conn-2")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !res.Truncated {
		t.Fatalf("expected truncated result")
	}
	c, _ := h.repo.GetConnection(context.Background(), "conn-2")
	if c.TotalReviews != 120 || c.AverageRating != 4.3 {
		t.Fatalf("stats = %d/%.2f", c.TotalReviews, c.AverageRating)
	}
}

func TestSync_FallbackFailureFailsRun(t *testing.T) {
	ad := &fakeAdapter{platform: domain.PlatformYelp, summaryErr: errors.New("down")}
	h := newHarness(yelpConn(), ad)
	h.repo.aggregateErr = errors.New("db gone")

	if _, err := h.svc.Sync(context.Background(), "conn-2"); err == nil {
		t.Fatal("expected error")
	}
	c, _ := h.repo.GetConnection(context.Background(), "conn-2")
	if c.SyncStatus != domain.StatusAPICall {
		t.Fatalf("status = %s", c.SyncStatus)
	}
}

func TestSync_ProviderReplyPrecedence(t *testing.T) {
	ad := &fakeAdapter{platform: domain.PlatformYelp, reviews: []domain.NormalizedReview{nr("r1", 2, "Meh")}}
	h := newHarness(yelpConn(), ad)
	ctx := context.Background()

	if _, err := h.svc.Sync(ctx, "conn-2"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	rv, _ := h.repo.byExternal("r1")
	rv.ResponseStatus = domain.ResponseIgnored
	h.repo.reviews[rv.ID] = rv

	if _, err := h.svc.Sync(ctx, "conn-2"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if rv, _ = h.repo.byExternal("r1"); rv.ResponseStatus != domain.ResponseIgnored {
		t.Fatalf("local ignore mark lost: %s", rv.ResponseStatus)
	}

	at := fixedNow
	withReply := nr("r1", 2, "Meh")
	withReply.Reply = &domain.ProviderReply{Text: "Sorry to hear", At: &at}
	ad.reviews = []domain.NormalizedReview{withReply}
	if _, err := h.svc.Sync(ctx, "conn-2"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	rv, _ = h.repo.byExternal("r1")
	if rv.ResponseStatus != domain.ResponseResponded || rv.ResponseText == nil || *rv.ResponseText != "Sorry to hear" {
		t.Fatalf("provider reply not applied: %+v", rv)
	}
}

func TestSync_LeaseHeld(t *testing.T) {
	h := newHarness(yelpConn(), &fakeAdapter{platform: domain.PlatformYelp})
	h.locker.held = true

	if _, err := h.svc.Sync(context.Background(), "conn-2"); !errors.Is(err, domain.ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
	if h.adapter.fetchCalls != 0 {
		t.Fatal("adapter must not be called while another sync holds the lease")
	}
}

func TestSync_LeaseBackendDownStillRecordsStatus(t *testing.T) {
	ad := &fakeAdapter{platform: domain.PlatformYelp, fetchErr: &domain.ProviderAPIError{Provider: domain.PlatformYelp, Endpoint: "reviews", StatusCode: 500}}
	h := newHarness(yelpConn(), ad)
	h.locker.err = errors.New("dial tcp: connection refused")

	_, err := h.svc.Sync(context.Background(), "conn-2")
	if err == nil {
		t.Fatal("expected provider failure")
	}
	if ad.fetchCalls != 1 {
		t.Fatalf("fetch calls = %d, want 1", ad.fetchCalls)
	}
	c, _ := h.repo.GetConnection(context.Background(), "conn-2")
	if c.SyncStatus != domain.StatusAPICall {
		t.Fatalf("status = %q, want %q", c.SyncStatus, domain.StatusAPICall)
	}
	if h.locker.released != 0 {
		t.Fatal("nothing to release without a lease")
	}
}

func TestSync_UnknownConnectionAndPlatform(t *testing.T) {
	h := newHarness(yelpConn(), &fakeAdapter{platform: domain.PlatformYelp})
	if _, err := h.svc.Sync(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	odd := domain.Connection{ID: "conn-x", BusinessID: "biz-1", Platform: "tripadvisor"}
	h = newHarness(odd, &fakeAdapter{})
	if _, err := h.svc.Sync(context.Background(), "conn-x"); !errors.Is(err, domain.ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
	c, _ := h.repo.GetConnection(context.Background(), "conn-x")
	if c.SyncStatus != domain.StatusAPICall {
		t.Fatalf("status = %s", c.SyncStatus)
	}
}

func TestReply(t *testing.T) {
	ra := &replyingAdapter{
		fakeAdapter: &fakeAdapter{platform: domain.PlatformGoogle, caps: domain.Capabilities{SupportsReplies: true}, reviews: []domain.NormalizedReview{nr("r1", 3, "Fine")}},
		replies:     map[string]string{},
	}
	h := newHarness(googleConn(), ra)
	ctx := context.Background()
	if _, err := h.svc.Sync(ctx, "conn-1"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	rv, _ := h.repo.byExternal("r1")

	if err := h.svc.Reply(ctx, rv.ID, "Thanks for visiting"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if ra.replies["r1"] != "Thanks for visiting" {
		t.Fatalf("reply not posted: %v", ra.replies)
	}
	rv, _ = h.repo.byExternal("r1")
	if rv.ResponseStatus != domain.ResponseResponded || rv.RespondedAt == nil {
		t.Fatalf("reply not recorded: %+v", rv)
	}
}

func TestReply_UnsupportedPlatform(t *testing.T) {
	ad := &fakeAdapter{platform: domain.PlatformYelp, reviews: []domain.NormalizedReview{nr("r1", 3, "Fine")}}
	h := newHarness(yelpConn(), ad)
	ctx := context.Background()
	if _, err := h.svc.Sync(ctx, "conn-2"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	rv, _ := h.repo.byExternal("r1")

	if err := h.svc.Reply(ctx, rv.ID, "hi"); !errors.Is(err, domain.ErrRepliesUnsupported) {
		t.Fatalf("expected ErrRepliesUnsupported, got %v", err)
	}
}
