package util

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestForEach_CollectsEveryResult(t *testing.T) {
	inputs := []int{1, 2, 3, 4, 5, 6}
	var calls atomic.Int32
	errs := ForEach(context.Background(), inputs, 3, func(_ context.Context, n int) error {
		calls.Add(1)
		if n%2 == 0 {
			return errors.New("even")
		}
		return nil
	})

	if calls.Load() != int32(len(inputs)) {
		t.Fatalf("expected every input to run, got %d calls", calls.Load())
	}
	for i, n := range inputs {
		if (errs[i] != nil) != (n%2 == 0) {
			t.Errorf("input %d: unexpected error %v", n, errs[i])
		}
	}
}

func TestForEach_RespectsWorkerLimit(t *testing.T) {
	var running, peak atomic.Int32
	ForEach(context.Background(), make([]struct{}, 20), 4, func(context.Context, struct{}) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)
		return nil
	})
	if peak.Load() > 4 {
		t.Errorf("expected at most 4 concurrent workers, saw %d", peak.Load())
	}
}

func TestForEach_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	errs := ForEach(ctx, []int{1, 2, 3}, 1, func(context.Context, int) error { return nil })
	for i, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("input %d: unexpected error %v", i, err)
		}
	}
}

func TestParallel_StopsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	err := Parallel(context.Background(), []int{1, 2, 3}, 1, func(_ context.Context, n int) error {
		if n == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if err := Parallel(context.Background(), []int{1, 2}, 2, func(context.Context, int) error { return nil }); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
