package jobmgr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestManager_Lifecycle(t *testing.T) {
	var mu sync.Mutex
	finished := map[string]error{}
	m := NewManager(func(name string, err error) {
		mu.Lock()
		finished[name] = err
		mu.Unlock()
	})

	parent, cancelParent := context.WithCancel(context.Background())
	release := make(chan struct{})
	if err := m.StartAsync(parent, "quick", func(context.Context) error {
		<-release
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := m.StartAsync(parent, "quick", func(context.Context) error { return nil }); err == nil {
		t.Error("expected a duplicate name to be refused")
	}
	if err := m.StartAsync(parent, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}); err != nil {
		t.Fatal(err)
	}

	cancelParent()
	if got := m.List(); len(got) != 2 || got[0] != "quick" || got[1] != "slow" {
		t.Fatalf("jobs must outlive their parent context, got %v", got)
	}

	close(release)
	if err := m.Stop("slow"); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop("slow"); err == nil {
		t.Error("expected stopping a finished job to fail")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if err, ok := finished["quick"]; !ok || err != nil {
		t.Errorf("quick: reported %v (%v)", err, ok)
	}
	if err := finished["slow"]; !errors.Is(err, context.Canceled) {
		t.Errorf("slow: expected context.Canceled, got %v", err)
	}
}

func TestManager_StopAll(t *testing.T) {
	m := NewManager(nil)
	for _, name := range []string{"a", "b"} {
		if err := m.StartAsync(context.Background(), name, func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}

	m.StopAll()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if len(m.List()) != 0 {
		t.Errorf("expected no jobs, got %v", m.List())
	}
	if err := m.StartAsync(context.Background(), "late", func(context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
