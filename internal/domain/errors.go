package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrSyncInProgress      = errors.New("sync already in progress")
	ErrRepliesUnsupported  = errors.New("platform does not support replies")
)

type TokenErrorKind string

const (
	TokenNoRefreshToken TokenErrorKind = "no_refresh_token"
	TokenRefreshFailed  TokenErrorKind = "refresh_failed"
)

// TokenError aborts a sync before any review is fetched.
type TokenError struct {
	Kind TokenErrorKind
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("token: %s", e.Kind)
}

func (e *TokenError) Unwrap() error { return e.Err }

// ProviderAPIError is a non-success response from a review provider.
type ProviderAPIError struct {
	Provider   Platform
	Endpoint   string
	StatusCode int // 0 when no response was received
	Body       string
	Err        error
}

func (e *ProviderAPIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Endpoint, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Endpoint, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s: status %d", e.Provider, e.Endpoint, e.StatusCode)
}

func (e *ProviderAPIError) Unwrap() error { return e.Err }
