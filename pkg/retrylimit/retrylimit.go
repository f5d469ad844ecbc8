// Package retrylimit provides adaptive rate limiting and bounded retries with
// exponential backoff for clients of rate-limited APIs.
//
// Example usage:
//
//	lim := retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5)
//	cfg := retrylimit.DefaultConfig()
//	cfg.MaxAttempts = 3
//
//	err := retrylimit.Do(ctx, cfg, lim, func(ctx context.Context) error {
//	    return doSomeWork(ctx)
//	})
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// =============================================================================
// Limiter
// =============================================================================

// AdaptiveLimiter manages a rate limit that adjusts automatically based on the
// outcome of requests: it creeps up on success and drops on rate limiting.
type AdaptiveLimiter struct {
	mu        sync.RWMutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
}

// NewAdaptiveLimiter creates an AdaptiveLimiter.
//
// Parameters:
//   - initial: starting requests per second
//   - min: minimum allowed rate
//   - max: maximum allowed rate
//   - stepUp: increment on success
//   - stepDown: multiplier applied when rate limited (e.g. 0.5 to halve)
func NewAdaptiveLimiter(initial, min, max rate.Limit, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	if initial < 1 {
		initial = 1
	}
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, max2(1, int(initial))),
		minLimit: min,
		maxLimit: max,
		stepUp:   stepUp,
		stepDown: stepDown,
	}
}

// Wait blocks until a token is available or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// Success raises the rate unless a rate limit was hit in the last ten seconds.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.lastError) > 10*time.Second {
		a.adjustLimit(a.limiter.Limit() + a.stepUp)
	}
}

// RateLimited lowers the rate after the server pushed back.
func (a *AdaptiveLimiter) RateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = time.Now()
	a.adjustLimit(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// CurrentLimit returns the current requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) adjustLimit(newLimit rate.Limit) {
	if newLimit > a.maxLimit {
		newLimit = a.maxLimit
	} else if newLimit < a.minLimit {
		newLimit = a.minLimit
	}
	if newLimit != a.limiter.Limit() {
		a.limiter.SetLimit(newLimit)
		a.limiter.SetBurst(max2(1, int(newLimit)))
	}
}

// =============================================================================
// Errors
// =============================================================================

// HTTPError is implemented by errors that carry an HTTP status code.
type HTTPError interface {
	error
	StatusCode() int
}

// RetryAfterError is implemented by rate-limit errors that know how long the
// server asked the client to wait.
type RetryAfterError interface {
	error
	RetryAfter() time.Duration
}

// TemporaryError is implemented by errors worth retrying as-is.
type TemporaryError interface {
	error
	Temporary() bool
}

// FatalError stops retries immediately.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Class is the retry decision for one error.
type Class int

const (
	// Permanent errors are returned without retrying.
	Permanent Class = iota
	// Retryable errors are retried after the backoff delay.
	Retryable
	// Throttled errors are retried after the server's delay and slow the limiter.
	Throttled
)

// Classifier decides how an error is retried.
type Classifier func(error) Class

// DefaultClassifier throttles on 429s and RetryAfter errors, retries 5xx and
// temporary errors, and gives up on everything else.
func DefaultClassifier(err error) Class {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return Permanent
	}
	var ra RetryAfterError
	if errors.As(err, &ra) {
		return Throttled
	}
	var he HTTPError
	if errors.As(err, &he) {
		switch code := he.StatusCode(); {
		case code == http.StatusTooManyRequests:
			return Throttled
		case code >= 500 && code < 600:
			return Retryable
		}
		return Permanent
	}
	var te TemporaryError
	if errors.As(err, &te) && te.Temporary() {
		return Retryable
	}
	return Permanent
}

// =============================================================================
// Retry
// =============================================================================

// Config configures retry behaviour.
type Config struct {
	MaxAttempts    int           // total attempts including the first; <= 0 means 1
	InitialDelay   time.Duration // delay before the second attempt
	MaxDelay       time.Duration // cap for any single delay
	RateLimitDelay time.Duration // delay for throttled errors without RetryAfter
	Multiplier     float64       // backoff growth factor
	Jitter         bool          // add up to 25% random delay
	Classify       Classifier    // nil means DefaultClassifier
	OnRetry        func(attempt int, err error, wait time.Duration)
	Logger         zerolog.Logger
}

// DefaultConfig returns three attempts with a 500ms doubling backoff.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		RateLimitDelay: time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		Classify:       DefaultClassifier,
		Logger:         zerolog.Nop(),
	}
}

// Do calls fn until it succeeds, returns a permanent error, ctx is done or
// cfg.MaxAttempts is reached. A nil limiter disables rate limiting. Exhausting
// the attempts yields an *ExhaustedError wrapping the last failure.
func Do(ctx context.Context, cfg Config, lim *AdaptiveLimiter, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Classify == nil {
		cfg.Classify = DefaultClassifier
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}

	delay := cfg.InitialDelay
	var last error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn(ctx)
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			if attempt > 1 {
				cfg.Logger.Debug().Int("attempt", attempt).Msg("succeeded after retry")
			}
			return nil
		}
		last = err

		class := cfg.Classify(err)
		if class == Permanent {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := delay
		if class == Throttled {
			wait = cfg.RateLimitDelay
			var ra RetryAfterError
			if errors.As(err, &ra) && ra.RetryAfter() > 0 {
				wait = ra.RetryAfter()
			}
			if lim != nil {
				lim.RateLimited()
			}
		} else {
			if cfg.Jitter {
				wait = addJitter(wait)
			}
			delay = time.Duration(float64(delay) * cfg.Multiplier)
		}
		if cfg.MaxDelay > 0 && wait > cfg.MaxDelay {
			wait = cfg.MaxDelay
		}
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}

		cfg.Logger.Debug().Err(err).Int("attempt", attempt).Dur("wait", wait).
			Bool("throttled", class == Throttled).Msg("retrying")
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	return &ExhaustedError{Attempts: cfg.MaxAttempts, Last: last}
}

// =============================================================================
// Helper functions
// =============================================================================

// addJitter adds random jitter (0-25% of delay).
func addJitter(delay time.Duration) time.Duration {
	if delay < 4 {
		return delay
	}
	return delay + time.Duration(rand.Int63n(int64(delay/4)))
}

func max2(a, b int) int {
	if a > b {
		return a
	}
	return b
}
