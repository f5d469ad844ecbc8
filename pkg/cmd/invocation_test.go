package cmd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestInvocation_SingleUseResponder(t *testing.T) {
	rec := &recorder{}
	inv := newInvocation("hello", Global(), rec)
	ctx := context.Background()

	if err := inv.Followup(ctx, Text("early")); !errors.Is(err, ErrNotResponded) {
		t.Errorf("followup before reply: expected ErrNotResponded, got %v", err)
	}
	if err := inv.Respond(ctx, Text("one")); err != nil {
		t.Fatalf("first reply: %v", err)
	}
	if err := inv.Respond(ctx, Text("two")); !errors.Is(err, ErrResponderUsed) {
		t.Errorf("second reply: expected ErrResponderUsed, got %v", err)
	}
	if err := inv.Acknowledge(ctx, false); !errors.Is(err, ErrResponderUsed) {
		t.Errorf("ack after reply: expected ErrResponderUsed, got %v", err)
	}
	if err := inv.Followup(ctx, Text("more")); err != nil {
		t.Errorf("followup after reply: %v", err)
	}
	if got := len(rec.Replies()); got != 1 {
		t.Errorf("expected one reply, got %d", got)
	}
}

func TestInvocation_ConcurrentRespond(t *testing.T) {
	rec := &recorder{}
	inv := newInvocation("hello", Global(), rec)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if inv.Respond(context.Background(), Text("x")) == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || len(rec.Replies()) != 1 {
		t.Errorf("expected exactly one successful reply, got %d (%d sent)", succeeded, len(rec.Replies()))
	}
}

func TestInvocation_Expired(t *testing.T) {
	rec := &recorder{deadline: time.Now().Add(-time.Second)}
	inv := newInvocation("hello", Global(), rec)

	if !inv.Expired() {
		t.Error("expected invocation to be expired")
	}
	if err := inv.Respond(context.Background(), Text("x")); !errors.Is(err, ErrResponderExpired) {
		t.Errorf("expected ErrResponderExpired, got %v", err)
	}
	if err := inv.Acknowledge(context.Background(), true); !errors.Is(err, ErrResponderExpired) {
		t.Errorf("expected ErrResponderExpired on ack, got %v", err)
	}
}

func TestInvocation_ZeroReplyAfterAckReachesTransport(t *testing.T) {
	rec := &recorder{}
	inv := newInvocation("hello", Global(), rec)
	ctx := context.Background()

	if err := inv.Acknowledge(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := inv.Acknowledge(ctx, true); err != nil {
		t.Errorf("second ack should be a no-op, got %v", err)
	}
	if err := inv.Respond(ctx, Reply{}); err != nil {
		t.Fatal(err)
	}
	if rec.Acks() != 1 || len(rec.Replies()) != 1 {
		t.Errorf("expected 1 ack and 1 withdraw call, got %d acks %d replies", rec.Acks(), len(rec.Replies()))
	}
}

func TestInvocation_ZeroReplyWithoutAckSendsNothing(t *testing.T) {
	rec := &recorder{}
	inv := newInvocation("hello", Global(), rec)

	if err := inv.Respond(context.Background(), Reply{}); err != nil {
		t.Fatal(err)
	}
	if len(rec.Replies()) != 0 || !inv.Responded() {
		t.Error("explicit no-reply must consume the responder without sending")
	}
}

func TestInvocation_Args(t *testing.T) {
	inv := NewInvocation(InvocationParams{
		Command: "echo",
		Args:    map[string]any{"text": "hi", "count": int64(3)},
	})
	if inv.ID() == "" {
		t.Error("expected a generated ID")
	}
	if got := inv.ArgString("text"); got != "hi" {
		t.Errorf("text = %q", got)
	}
	if got := inv.ArgString("count"); got != "3" {
		t.Errorf("count = %q", got)
	}
	if got := inv.ArgString("missing"); got != "" {
		t.Errorf("missing = %q", got)
	}
	if _, ok := inv.Arg("count"); !ok {
		t.Error("expected count to be present")
	}
}
