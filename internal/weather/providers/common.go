package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
)

// RetryPolicy controls exponential backoff for transient vendor failures.
// The delay before retry n is BaseDelay * 2^(n-1), with no jitter.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration

	// Clock drives the backoff sleeps. Defaults to the real clock.
	Clock clockwork.Clock

	// OnRetry, if set, is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, reason string)
}

// DefaultRetryPolicy retries up to 3 times after 2s, 4s and 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		Clock:      clockwork.NewRealClock(),
	}
}

// Delay returns the wait before the given retry attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return p.BaseDelay << (attempt - 1)
}

// BreakerConfig controls the circuit breaker around each vendor exchange.
type BreakerConfig struct {
	Enabled             bool
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

var (
	errInvalidConfig    = errors.New("invalid backoff configuration")
	errTransientStatus  = errors.New("transient vendor status")
	errTransientFailure = errors.New("transient vendor failure")
)

// attemptFunc performs one transport call. It is invoked once per attempt.
type attemptFunc func(ctx context.Context) (*http.Response, error)

// doRequestWithRetry executes do, retrying transport errors and HTTP 429/5xx
// with exponential backoff. 4xx responses are returned immediately. Once
// retries are exhausted the last response or error is returned as is.
//
// Caller cancellation is never retried: if ctx is done the ctx error is
// returned and any in-flight response is discarded.
func doRequestWithRetry(ctx context.Context, policy RetryPolicy, do attemptFunc) (*http.Response, error) {
	if policy.MaxRetries < 0 || (policy.MaxRetries > 0 && policy.BaseDelay <= 0) {
		return nil, errInvalidConfig
	}
	clock := policy.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := do(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			discard(resp)
			return nil, ctxErr
		}

		retry, reason := shouldRetry(resp, err)
		if !retry || attempt >= policy.MaxRetries {
			return resp, err
		}
		discard(resp)

		delay := policy.Delay(attempt + 1)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, delay, reason)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-clock.After(delay):
			// continue to next attempt
		}
	}
}

func shouldRetry(resp *http.Response, err error) (bool, string) {
	if err != nil {
		return true, err.Error()
	}
	if isTransientStatus(resp.StatusCode) {
		return true, fmt.Sprintf("status %d", resp.StatusCode)
	}
	return false, ""
}

func isTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// discard drains and closes a response that will not be handed to the caller.
func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// executeWithBreaker runs exchange inside cb. Only transient outcomes count
// as breaker failures; 4xx responses and caller cancellation do not.
// An open breaker surfaces as KindRateLimitedOrServerError.
func executeWithBreaker(ctx context.Context, cb *gobreaker.CircuitBreaker, exchange func() (*http.Response, error)) (*http.Response, error) {
	if cb == nil {
		return exchange()
	}

	var (
		resp    *http.Response
		callErr error
	)
	_, err := cb.Execute(func() (interface{}, error) {
		resp, callErr = exchange()
		switch {
		case callErr != nil && ctx.Err() != nil:
			return nil, nil
		case callErr != nil:
			return nil, errTransientFailure
		case isTransientStatus(resp.StatusCode):
			return nil, errTransientStatus
		}
		return nil, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, newError(KindRateLimitedOrServerError, "OpenWeatherMap circuit breaker open", err)
	}
	return resp, callErr
}

func newBreaker(name string, cfg BreakerConfig, onStateChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: onStateChange,
	})
}
