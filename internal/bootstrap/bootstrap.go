// Package bootstrap assembles the sync pipeline from configuration.
// Both binaries share it so the API and the scheduler run the same pipeline.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"review_sync/internal/adapters/alerting"
	"review_sync/internal/adapters/analysis"
	"review_sync/internal/adapters/facebook"
	"review_sync/internal/adapters/google"
	"review_sync/internal/adapters/oauth"
	"review_sync/internal/adapters/provider"
	"review_sync/internal/adapters/yelp"
	"review_sync/internal/app"
	"review_sync/internal/domain"
	"review_sync/internal/shared"
)

func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(5 * time.Minute)
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func Adapters(cfg shared.Config) app.Adapters {
	hc := func(p domain.Platform) *provider.Client {
		return provider.New(provider.Options{
			Platform:   p,
			RPS:        cfg.ProviderRPS,
			MaxRetries: cfg.ProviderMaxRetries,
			Timeout:    cfg.ProviderTimeout,
		})
	}
	return app.Adapters{
		Google:   google.NewAdapter(google.NewClient(hc(domain.PlatformGoogle), cfg.GoogleAPIBase, cfg.GoogleAccountsBase)),
		Yelp:     yelp.NewAdapter(yelp.NewClient(hc(domain.PlatformYelp), cfg.YelpAPIBase)),
		Facebook: facebook.NewAdapter(facebook.NewClient(hc(domain.PlatformFacebook), cfg.FacebookGraphBase)),
	}
}

func Analyzer(cfg shared.Config) domain.Analyzer {
	if cfg.AnalysisURL == "" {
		log.Info().Msg("ANALYSIS_URL empty, using keyword analyzer")
		return analysis.KeywordAnalyzer{}
	}
	return analysis.NewHTTPAnalyzer(cfg.AnalysisURL, cfg.AnalysisAPIKey, cfg.CollaboratorTimeout)
}

// Notifier returns nil when no alert channel is configured.
func Notifier(cfg shared.Config) domain.Notifier {
	var channels []alerting.Channel
	if cfg.AlertWebhookURL != "" {
		channels = append(channels, alerting.NewWebhook(cfg.AlertWebhookURL, cfg.CollaboratorTimeout))
	}
	if cfg.SMTPHost != "" && cfg.AlertEmailTo != "" {
		channels = append(channels, alerting.NewEmail(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.AlertEmailFrom, cfg.AlertEmailTo))
	}
	if len(channels) == 0 {
		log.Info().Msg("no alert channel configured")
		return nil
	}
	return alerting.NewNotifier(alerting.Policy{MaxRating: cfg.AlertMaxRating, MinUrgency: cfg.AlertMinUrgency}, channels...)
}

func SyncService(cfg shared.Config, repo domain.Repository, cache domain.Cache, locker domain.Locker) *app.SyncService {
	refresher := oauth.NewGoogleRefresher(cfg.GoogleTokenURL, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.ProviderTimeout)
	rec := app.NewReconciler(repo, Analyzer(cfg), Notifier(cfg), cfg.CollaboratorTimeout)
	return app.NewSyncService(repo, Adapters(cfg), app.NewTokenManager(repo, refresher), rec, app.SyncOptions{
		Cache:    cache,
		Locker:   locker,
		LeaseTTL: cfg.SyncLeaseTTL,
		Timeout:  cfg.SyncTimeout,
	})
}
