package domain_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"review_sync/internal/domain"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domain.SyncStatus
	}{
		{"nil", nil, domain.StatusActive},
		{"no refresh token", &domain.TokenError{Kind: domain.TokenNoRefreshToken}, domain.StatusNoRefreshToken},
		{"refresh failed wrapped", fmt.Errorf("sync: %w", &domain.TokenError{Kind: domain.TokenRefreshFailed}), domain.StatusRefreshFailed},
		{"provider 401", &domain.ProviderAPIError{Provider: domain.PlatformYelp, StatusCode: http.StatusUnauthorized}, domain.StatusTokenExpired},
		{"provider 500", &domain.ProviderAPIError{Provider: domain.PlatformYelp, StatusCode: 500}, domain.StatusAPICall},
		{"other", errors.New("boom"), domain.StatusAPICall},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := domain.StatusFor(tc.err); got != tc.want {
				t.Fatalf("StatusFor(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestRequiresReconnect(t *testing.T) {
	for _, s := range []domain.SyncStatus{domain.StatusTokenExpired, domain.StatusNoRefreshToken, domain.StatusRefreshFailed} {
		if !s.RequiresReconnect() {
			t.Fatalf("%s should require reconnect", s)
		}
	}
	for _, s := range []domain.SyncStatus{domain.StatusActive, domain.StatusAPICall} {
		if s.RequiresReconnect() {
			t.Fatalf("%s should not require reconnect", s)
		}
	}
}

func TestReviewNeedsAnalysis(t *testing.T) {
	r := domain.Review{Content: "Great!", ProcessingStatus: domain.ProcessingUnprocessed}
	if !r.NeedsAnalysis() {
		t.Fatal("unprocessed review with content should need analysis")
	}
	r.ProcessingStatus = domain.ProcessingFailed
	if !r.NeedsAnalysis() {
		t.Fatal("failed review should be retried")
	}
	r.ProcessingStatus = domain.ProcessingProcessed
	if r.NeedsAnalysis() {
		t.Fatal("processed review must not be analyzed again")
	}
	r = domain.Review{ProcessingStatus: domain.ProcessingUnprocessed}
	if r.NeedsAnalysis() {
		t.Fatal("empty content is never analyzed")
	}
}
