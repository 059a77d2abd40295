package shared

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"prod"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9100"`
	MySQLDSN    string `env:"MYSQL_DSN" envDefault:"root:root@tcp(localhost:3306)/reviews?parseTime=true&charset=utf8mb4&loc=UTC"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass   string `env:"REDIS_PASSWORD"`
	RedisDB     int    `env:"REDIS_DB" envDefault:"0"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleTokenURL     string `env:"GOOGLE_TOKEN_URL" envDefault:"https://oauth2.googleapis.com/token"`
	GoogleAPIBase      string `env:"GOOGLE_API_BASE" envDefault:"https://mybusiness.googleapis.com/v4"`
	GoogleAccountsBase string `env:"GOOGLE_ACCOUNTS_BASE" envDefault:"https://mybusinessaccountmanagement.googleapis.com/v1"`
	YelpAPIBase        string `env:"YELP_API_BASE" envDefault:"https://api.yelp.com/v3"`
	FacebookGraphBase  string `env:"FACEBOOK_GRAPH_BASE" envDefault:"https://graph.facebook.com/v19.0"`

	ProviderRPS        int           `env:"PROVIDER_RPS" envDefault:"5"`
	ProviderMaxRetries int           `env:"PROVIDER_MAX_RETRIES" envDefault:"3"`
	ProviderTimeout    time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"15s"`

	AnalysisURL    string `env:"ANALYSIS_URL"` // empty = built-in keyword analyzer
	AnalysisAPIKey string `env:"ANALYSIS_API_KEY"`

	AlertWebhookURL string  `env:"ALERT_WEBHOOK_URL"`
	AlertEmailTo    string  `env:"ALERT_EMAIL_TO"`
	AlertEmailFrom  string  `env:"ALERT_EMAIL_FROM" envDefault:"alerts@localhost"`
	SMTPHost        string  `env:"SMTP_HOST"`
	SMTPPort        int     `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser        string  `env:"SMTP_USER"`
	SMTPPassword    string  `env:"SMTP_PASSWORD"`
	AlertMaxRating  int     `env:"ALERT_MAX_RATING" envDefault:"2"`
	AlertMinUrgency float64 `env:"ALERT_MIN_URGENCY" envDefault:"0.7"`

	CollaboratorTimeout time.Duration `env:"COLLABORATOR_TIMEOUT" envDefault:"20s"`
	SyncTimeout         time.Duration `env:"SYNC_TIMEOUT" envDefault:"5m"`
	SyncLeaseTTL        time.Duration `env:"SYNC_LEASE_TTL" envDefault:"10m"`
	SyncSchedule        string        `env:"SYNC_SCHEDULE" envDefault:"@every 6h"`
	SyncWorkers         int           `env:"SYNC_WORKERS" envDefault:"4"`
	CacheTTLSeconds     int           `env:"CACHE_TTL_SECONDS" envDefault:"900"`
}

func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if c.SyncWorkers < 1 {
		c.SyncWorkers = 1
	}
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		log.Warn().Msg("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET empty; google token refresh will fail")
	}
	return c, nil
}

func (c Config) CacheTTL() time.Duration { return time.Duration(c.CacheTTLSeconds) * time.Second }
