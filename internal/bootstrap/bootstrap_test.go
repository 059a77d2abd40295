package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review_sync/internal/adapters/analysis"
	"review_sync/internal/domain"
	"review_sync/internal/shared"
)

func TestAdapters_CoverEveryPlatform(t *testing.T) {
	ads := Adapters(shared.Config{ProviderRPS: 5, ProviderMaxRetries: 1})
	for _, p := range domain.Platforms {
		a, err := ads.For(p)
		require.NoError(t, err, p)
		assert.Equal(t, p, a.Platform())
	}
	g, _ := ads.For(domain.PlatformGoogle)
	_, ok := g.(domain.Replier)
	assert.True(t, ok, "google accepts owner replies")
}

func TestAnalyzer_FallsBackToKeywords(t *testing.T) {
	assert.IsType(t, analysis.KeywordAnalyzer{}, Analyzer(shared.Config{}))
	assert.IsType(t, &analysis.HTTPAnalyzer{}, Analyzer(shared.Config{AnalysisURL: "http://analysis.local"}))
}

func TestNotifier_NilWithoutChannels(t *testing.T) {
	assert.Nil(t, Notifier(shared.Config{}))
	assert.NotNil(t, Notifier(shared.Config{AlertWebhookURL: "http://hooks.local/x"}))
}

func TestSyncService_Builds(t *testing.T) {
	assert.NotNil(t, SyncService(shared.Config{}, nil, nil, nil))
}
