// Package ratelimit throttles calls to remote model services and maps their
// back-off signals onto domain.ErrUpstreamTimeout.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

const (
	// HeaderRetryAfter is the retry-after header (seconds).
	HeaderRetryAfter = "Retry-After"

	// DefaultBackoff applies when a 429 carries no usable Retry-After.
	DefaultBackoff = 5 * time.Second

	// MaxBackoff caps the honoured Retry-After value.
	MaxBackoff = time.Minute
)

// RateLimiter is a token bucket plus a back-off window opened by 429 responses.
// A nil *RateLimiter never waits.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	now     func() time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerSecond sustained calls.
// Returns nil when requestsPerSecond is not positive.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		now:     time.Now,
	}
}

// Wait blocks until a request may be sent. An open back-off window longer
// than the context deadline fails fast with domain.ErrUpstreamTimeout.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if wait := retryAt.Sub(r.now()); wait > 0 {
		if deadline, ok := ctx.Deadline(); ok && r.now().Add(wait).After(deadline) {
			return fmt.Errorf("%w: backing off for %s", domain.ErrUpstreamTimeout, wait.Round(time.Millisecond))
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Wrap(ctx.Err())
		case <-timer.C:
		}
	}

	if err := r.limiter.Wait(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return err
		}
		// The limiter refuses waits that would overrun the deadline.
		return fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
	}
	return nil
}

// Backoff opens a back-off window of d, capped at MaxBackoff.
func (r *RateLimiter) Backoff(d time.Duration) {
	if r == nil {
		return
	}
	if d <= 0 {
		d = DefaultBackoff
	}
	if d > MaxBackoff {
		d = MaxBackoff
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if until := r.now().Add(d); until.After(r.retryAt) {
		r.retryAt = until
	}
}

// CheckResponse returns nil for 2xx responses. 429 and 5xx become errors
// wrapping domain.ErrUpstreamTimeout, and a 429 opens a back-off window.
// Other statuses are permanent failures.
func (r *RateLimiter) CheckResponse(service string, resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		r.Backoff(RetryAfter(resp))
		return fmt.Errorf("%w: %s rate limited (status %d)", domain.ErrUpstreamTimeout, service, resp.StatusCode)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %s unavailable (status %d): %s",
			domain.ErrUpstreamTimeout, service, resp.StatusCode, truncate(body))
	}
	return fmt.Errorf("%s error (status %d): %s", service, resp.StatusCode, truncate(body))
}

// Classify wraps an SDK error that carried an HTTP status. 429 opens a
// back-off window and, like 5xx, wraps domain.ErrUpstreamTimeout.
func (r *RateLimiter) Classify(service string, status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		r.Backoff(0)
		return fmt.Errorf("%w: %s rate limited: %w", domain.ErrUpstreamTimeout, service, err)
	case status >= 500:
		return fmt.Errorf("%w: %s unavailable: %w", domain.ErrUpstreamTimeout, service, err)
	default:
		return fmt.Errorf("%s: %w", service, Wrap(err))
	}
}

// RetryAfter parses the Retry-After header as seconds. Returns zero when
// absent or malformed.
func RetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	seconds, err := strconv.Atoi(resp.Header.Get(HeaderRetryAfter))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// Wrap marks transport timeouts and expired deadlines as upstream timeouts.
// Other errors are returned unchanged.
func Wrap(err error) error {
	if err == nil || errors.Is(err, domain.ErrUpstreamTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
	}
	return err
}

func truncate(body []byte) string {
	const limit = 300
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
