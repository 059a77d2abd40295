package domain

import (
	"errors"
	"net/http"
)

// SyncStatus is the health of a connection's most recent sync attempt.
type SyncStatus string

const (
	StatusActive         SyncStatus = "active"
	StatusTokenExpired   SyncStatus = "error_token_expired"
	StatusNoRefreshToken SyncStatus = "error_no_refresh_token"
	StatusRefreshFailed  SyncStatus = "error_refresh_failed"
	StatusAPICall        SyncStatus = "error_api_call"
)

// RequiresReconnect is true for states that only a re-authorization can clear.
func (s SyncStatus) RequiresReconnect() bool {
	switch s {
	case StatusTokenExpired, StatusNoRefreshToken, StatusRefreshFailed:
		return true
	}
	return false
}

// StatusFor maps the outcome of a sync run to the state persisted on the connection.
func StatusFor(err error) SyncStatus {
	if err == nil {
		return StatusActive
	}
	var te *TokenError
	if errors.As(err, &te) {
		switch te.Kind {
		case TokenNoRefreshToken:
			return StatusNoRefreshToken
		case TokenRefreshFailed:
			return StatusRefreshFailed
		}
	}
	var pe *ProviderAPIError
	if errors.As(err, &pe) && pe.StatusCode == http.StatusUnauthorized {
		return StatusTokenExpired
	}
	return StatusAPICall
}
