// Package oauth refreshes Google access tokens with the refresh-token grant.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"review_sync/internal/domain"
)

const DefaultGoogleTokenURL = "https://oauth2.googleapis.com/token"

// Google access tokens live one hour; used when the endpoint omits expires_in.
const defaultExpiresIn = 3600

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type GoogleRefresher struct {
	client       *resty.Client
	tokenURL     string
	clientID     string
	clientSecret string
}

var _ domain.TokenRefresher = (*GoogleRefresher)(nil)

func NewGoogleRefresher(tokenURL, clientID, clientSecret string, timeout time.Duration) *GoogleRefresher {
	if tokenURL == "" {
		tokenURL = DefaultGoogleTokenURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GoogleRefresher{
		client:       resty.New().SetTimeout(timeout),
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

func (g *GoogleRefresher) Refresh(ctx context.Context, refreshToken string) (domain.TokenGrant, error) {
	var out tokenResponse
	var oerr errorResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
			"client_id":     g.clientID,
			"client_secret": g.clientSecret,
		}).
		SetResult(&out).
		SetError(&oerr).
		Post(g.tokenURL)
	if err != nil {
		return domain.TokenGrant{}, fmt.Errorf("oauth refresh: %w", err)
	}
	if resp.IsError() {
		return domain.TokenGrant{}, fmt.Errorf("oauth refresh: status %d: %s %s",
			resp.StatusCode(), oerr.Error, oerr.ErrorDescription)
	}
	if out.AccessToken == "" {
		return domain.TokenGrant{}, errors.New("oauth refresh: empty access_token")
	}
	if out.ExpiresIn <= 0 {
		out.ExpiresIn = defaultExpiresIn
	}
	return domain.TokenGrant{
		AccessToken: out.AccessToken,
		ExpiresIn:   time.Duration(out.ExpiresIn) * time.Second,
	}, nil
}
