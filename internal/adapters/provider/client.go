// Package provider is the HTTP transport shared by the review platform clients.
package provider

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"review_sync/internal/adapters/observability"
	"review_sync/internal/domain"
)

type Options struct {
	Platform   domain.Platform
	RPS        int
	MaxRetries int
	Timeout    time.Duration
	BaseDelay  time.Duration
	HTTPClient *http.Client // optional; tests inject httptest clients
}

type Client struct {
	platform   domain.Platform
	hc         *http.Client
	rl         *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[struct{}]
	maxRetries int
	baseDelay  time.Duration
}

func New(o Options) *Client {
	if o.RPS <= 0 {
		o.RPS = 5
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 200 * time.Millisecond
	}
	hc := o.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: o.Timeout}
	}
	name := string(o.Platform)
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("provider circuit breaker state change")
			observability.ObserveBreaker(name, int(to))
		},
	})
	return &Client{
		platform:   o.Platform,
		hc:         hc,
		rl:         rate.NewLimiter(rate.Limit(o.RPS), o.RPS),
		breaker:    cb,
		maxRetries: o.MaxRetries,
		baseDelay:  o.BaseDelay,
	}
}

// breakerSuccess reports whether err leaves the provider's health untouched.
// 4xx answers mean the provider is up. A bare context error is the caller's
// own cancellation or deadline; provider timeouts arrive as ProviderAPIError.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var pe *domain.ProviderAPIError
	if errors.As(err, &pe) {
		return pe.StatusCode >= 400 && pe.StatusCode < 500 && pe.StatusCode != http.StatusTooManyRequests
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// GetJSON performs a GET and decodes a JSON body into out.
func (c *Client) GetJSON(ctx context.Context, endpoint, url string, headers map[string]string, out any) error {
	return c.Do(ctx, http.MethodGet, endpoint, url, headers, nil, out)
}

// Do runs one logical request through the breaker. endpoint is a short label for metrics and errors.
func (c *Client) Do(ctx context.Context, method, endpoint, url string, headers map[string]string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", c.platform, endpoint, err)
		}
		payload = b
	}
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.do(ctx, method, endpoint, url, headers, payload, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ProviderAPIError{Provider: c.platform, Endpoint: endpoint, Err: err}
	}
	return err
}

// do performs the request with client-side rate limiting and retries.
// Retries on 429, transient 5xx and network errors, honoring Retry-After when provided.
func (c *Client) do(ctx context.Context, method, endpoint, url string, headers map[string]string, payload []byte, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// the limiter refuses waits that would outlive the deadline
		return fmt.Errorf("%s %s: rate limit: %w", c.platform, endpoint, context.DeadlineExceeded)
	}

	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rdr)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "review-sync/1.0")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal(string(c.platform), endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = &domain.ProviderAPIError{Provider: c.platform, Endpoint: endpoint, Err: err}
			if i < c.maxRetries && sleepCtx(ctx, backoff(c.baseDelay, i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal(string(c.platform), endpoint, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode == http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			var err error
			if out != nil {
				err = json.NewDecoder(resp.Body).Decode(out)
			}
			resp.Body.Close()
			if err != nil {
				return &domain.ProviderAPIError{Provider: c.platform, Endpoint: endpoint, StatusCode: resp.StatusCode,
					Err: fmt.Errorf("decode: %w", err)}
			}
			return nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			wait := retryAfter(resp)
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(c.baseDelay, i)
			}
			lastErr = &domain.ProviderAPIError{Provider: c.platform, Endpoint: endpoint, StatusCode: resp.StatusCode,
				Body: strings.TrimSpace(string(b))}
			if i < c.maxRetries && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			// read a small error body for diagnostics
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return &domain.ProviderAPIError{Provider: c.platform, Endpoint: endpoint, StatusCode: resp.StatusCode,
				Body: strings.TrimSpace(string(b))}
		}
	}
	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles base each attempt and adds up to +50% jitter.
func backoff(base time.Duration, i int) time.Duration {
	d := time.Duration(1<<i) * base
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return d
	}
	f := float64(b[0]) / 255.0
	return d + time.Duration(0.5*f*float64(d))
}
