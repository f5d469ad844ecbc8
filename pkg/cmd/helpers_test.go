package cmd

import (
	"context"
	"sync"
	"time"
)

// recorder is a Responder that keeps everything it was asked to send.
type recorder struct {
	mu        sync.Mutex
	acks      int
	replies   []Reply
	followups []Reply
	deadline  time.Time
	failWith  error
}

func (r *recorder) Acknowledge(context.Context, bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acks++
	return nil
}

func (r *recorder) Respond(_ context.Context, reply Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.replies = append(r.replies, reply)
	return nil
}

func (r *recorder) Followup(_ context.Context, reply Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.followups = append(r.followups, reply)
	return nil
}

func (r *recorder) Deadline() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deadline
}

func (r *recorder) Replies() []Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Reply(nil), r.replies...)
}

func (r *recorder) Acks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acks
}

func (r *recorder) Followups() []Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Reply(nil), r.followups...)
}

func newInvocation(name string, scope Scope, rec *recorder) *Invocation {
	return NewInvocation(InvocationParams{
		Command:   name,
		Scope:     scope,
		Responder: rec,
	})
}

func reply(content string) Handler {
	return Static(Text(content))
}
