// Package httpretry wraps an HTTP client with bounded retries, exponential
// backoff and full jitter for calls to external APIs such as TimeRex.
package httpretry

import (
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and *RetryClient satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 10 * time.Second
	minDelay          = 10 * time.Millisecond
)

// RetryClient retries transient failures of the wrapped HTTPDoer.
type RetryClient struct {
	client     HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Option customises a RetryClient.
type Option func(*RetryClient)

// WithBackoff overrides the base and maximum backoff delays.
func WithBackoff(base, max time.Duration) Option {
	return func(rc *RetryClient) {
		if base > 0 {
			rc.baseDelay = base
		}
		if max > 0 {
			rc.maxDelay = max
		}
	}
}

// NewRetryClient wraps client. A nil client uses an http.Client with a 30s
// timeout; maxRetries <= 0 uses DefaultMaxRetries.
func NewRetryClient(client HTTPDoer, maxRetries int, opts ...Option) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	rc := &RetryClient{
		client:     client,
		maxRetries: maxRetries,
		baseDelay:  DefaultBaseDelay,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Do sends req, retrying on 429/5xx gateway statuses and network errors.
// Client errors and context cancellation are returned at once. The final
// attempt's response is returned as-is so the caller can read its body.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	var lastErr error
	ctx := req.Context()

	for attempt := 0; attempt <= rc.maxRetries; attempt++ {
		if attempt > 0 {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: reset request body: %w", err)
				}
				req.Body = body
			}

			delay := rc.backoff(attempt)
			log.Printf("[httpretry] retry %d/%d for %s %s%s in %s",
				attempt, rc.maxRetries, req.Method, req.URL.Host, req.URL.Path, delay)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				if lastErr != nil {
					return nil, lastErr
				}
				return nil, ctx.Err()
			}
		}

		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}

		if !retryable(resp.StatusCode) || attempt == rc.maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: %s %s returned %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	return nil, lastErr
}

// backoff is random(0, min(maxDelay, baseDelay*2^(attempt-1))) with a floor.
func (rc *RetryClient) backoff(attempt int) time.Duration {
	exp := float64(rc.baseDelay) * math.Pow(2, float64(attempt-1))
	if exp > float64(rc.maxDelay) {
		exp = float64(rc.maxDelay)
	}
	d := time.Duration(rand.Float64() * exp)
	if d < minDelay {
		d = minDelay
	}
	return d
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
