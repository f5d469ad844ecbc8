package retrylimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type throttled struct{ after time.Duration }

func (t throttled) Error() string             { return "rate limited" }
func (t throttled) RetryAfter() time.Duration { return t.after }

type temporary struct{}

func (temporary) Error() string   { return "connection reset" }
func (temporary) Temporary() bool { return true }

type status int

func (s status) Error() string   { return "http error" }
func (s status) StatusCode() int { return int(s) }

func fastConfig(attempts int) Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialDelay = time.Millisecond
	cfg.RateLimitDelay = time.Millisecond
	cfg.Jitter = false
	return cfg
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return temporary{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), nil, func(context.Context) error {
		calls++
		return throttled{after: time.Millisecond}
	})
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if ex.Attempts != 3 || calls != 3 {
		t.Errorf("expected 3 attempts, got %d (calls %d)", ex.Attempts, calls)
	}
	var th throttled
	if !errors.As(err, &th) {
		t.Error("exhausted error must wrap the last failure")
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"plain", errors.New("bad request")},
		{"fatal", &FatalError{Err: temporary{}}},
		{"4xx", status(400)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), fastConfig(5), nil, func(context.Context) error {
				calls++
				return tt.err
			})
			if err == nil || calls != 1 {
				t.Errorf("expected one call and an error, got %d calls, err=%v", calls, err)
			}
		})
	}
}

func TestDo_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(10)
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, cfg, nil, func(context.Context) error { return temporary{} })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDefaultClassifier(t *testing.T) {
	tests := []struct {
		err  error
		want Class
	}{
		{throttled{}, Throttled},
		{status(429), Throttled},
		{status(503), Retryable},
		{status(404), Permanent},
		{temporary{}, Retryable},
		{errors.New("x"), Permanent},
		{&FatalError{Err: throttled{}}, Permanent},
	}
	for _, tt := range tests {
		if got := DefaultClassifier(tt.err); got != tt.want {
			t.Errorf("%T: got %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestAdaptiveLimiter(t *testing.T) {
	lim := NewAdaptiveLimiter(8, 1, 10, 1, 0.5)
	lim.RateLimited()
	if got := lim.CurrentLimit(); got != 4 {
		t.Errorf("expected limit 4 after backoff, got %v", got)
	}
	lim.Success()
	if got := lim.CurrentLimit(); got != 4 {
		t.Errorf("success right after a rate limit must not raise the limit, got %v", got)
	}
	for i := 0; i < 5; i++ {
		lim.RateLimited()
	}
	if got := lim.CurrentLimit(); got != 1 {
		t.Errorf("limit must not drop below min, got %v", got)
	}
}
