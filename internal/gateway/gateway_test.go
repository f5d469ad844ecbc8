package gateway

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/keshon/disbot/pkg/cmd"
	"github.com/keshon/disbot/pkg/retrylimit"
)

func TestChanges_ApplyOrder(t *testing.T) {
	diff := cmd.Changes{
		ToAdd:    []cmd.Descriptor{{Definition: cmd.Definition{Name: "new"}}},
		ToRemove: []cmd.RemoteCommand{{ID: "9", Definition: cmd.Definition{Name: "old"}}},
		ToUpdate: []cmd.Update{{
			Local:  cmd.Descriptor{Definition: cmd.Definition{Name: "hello", Description: "b"}},
			Remote: cmd.RemoteCommand{ID: "1", Definition: cmd.Definition{Name: "hello", Description: "a"}},
		}},
	}

	got := Changes(diff)
	if len(got) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(got))
	}
	want := []struct {
		op   Op
		name string
	}{{OpRemove, "old"}, {OpAdd, "new"}, {OpUpdate, "hello"}}
	for i, w := range want {
		if got[i].Op != w.op || got[i].Name() != w.name {
			t.Errorf("change %d: got %s %s, want %s %s", i, got[i].Op, got[i].Name(), w.op, w.name)
		}
	}
	if got[2].Remote.ID != "1" || got[2].Local.Description != "b" {
		t.Errorf("update must carry both sides: %+v", got[2])
	}
}

func TestErrors_Classification(t *testing.T) {
	base := errors.New("x")
	tests := []struct {
		name  string
		err   error
		class retrylimit.Class
		check func(error) bool
	}{
		{"auth", &AuthError{Err: base}, retrylimit.Permanent, IsAuth},
		{"rate", &RateLimitError{Wait: time.Second, Err: base}, retrylimit.Throttled, IsRateLimit},
		{"network", &NetworkError{Err: base}, retrylimit.Retryable, IsNetwork},
		{"wrapped", fmt.Errorf("fetch: %w", &NetworkError{Err: base}), retrylimit.Retryable, IsNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Error("helper did not recognise the error")
			}
			if got := retrylimit.DefaultClassifier(tt.err); got != tt.class {
				t.Errorf("class = %d, want %d", got, tt.class)
			}
			if !errors.Is(tt.err, base) {
				t.Error("cause must be unwrappable")
			}
		})
	}
}
