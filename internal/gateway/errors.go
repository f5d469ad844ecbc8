package gateway

import (
	"errors"
	"fmt"
	"time"
)

// AuthError means the platform rejected the bot's credentials. It is fatal.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("authentication failed: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// DeliveryError means a reply could not be sent for an invocation.
type DeliveryError struct {
	InvocationID string
	Err          error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver reply for invocation %s: %v", e.InvocationID, e.Err)
}
func (e *DeliveryError) Unwrap() error { return e.Err }

// RateLimitError means the platform throttled the request.
type RateLimitError struct {
	Wait time.Duration
	Err  error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s: %v", e.Wait, e.Err)
}
func (e *RateLimitError) Unwrap() error { return e.Err }

// RetryAfter is how long the platform asked to wait.
func (e *RateLimitError) RetryAfter() time.Duration { return e.Wait }

// NetworkError is a transient transport failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string   { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error   { return e.Err }
func (e *NetworkError) Temporary() bool { return true }

// IsAuth reports whether err is or wraps an *AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsRateLimit reports whether err is or wraps a *RateLimitError.
func IsRateLimit(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}

// IsNetwork reports whether err is or wraps a *NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
