package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Responder is the transport side of a reply. Adapters implement it for each
// kind of event (slash interaction, channel message, console line). Handlers
// never see it directly; they go through the Invocation, which lets exactly one
// primary reply through.
type Responder interface {
	// Acknowledge tells the platform a reply is coming later.
	Acknowledge(ctx context.Context, ephemeral bool) error
	// Respond delivers the primary reply, editing the acknowledgement if any.
	Respond(ctx context.Context, r Reply) error
	// Followup delivers an additional message after the primary reply.
	Followup(ctx context.Context, r Reply) error
	// Deadline is the end of the current response window; zero means none.
	Deadline() time.Time
}

// Caller identifies who triggered an invocation.
type Caller struct {
	UserID    string
	Username  string
	ChannelID string
	// Permissions holds the platform's permission bits for the caller in
	// the channel, or 0 when unknown.
	Permissions int64
}

// Invocation is one runtime occurrence of a command. Adapters create one per
// incoming event; it is dropped once the handler completes.
type Invocation struct {
	id        string
	command   string
	scope     Scope
	args      map[string]any
	caller    Caller
	responder Responder

	mu    sync.Mutex
	state replyState
	acked chan struct{}
}

type replyState int

const (
	stateIdle replyState = iota
	stateAcked
	stateReplied
)

// InvocationParams carries what an adapter knows about an incoming event.
type InvocationParams struct {
	ID        string // generated when empty
	Command   string
	Scope     Scope
	Args      map[string]any
	Caller    Caller
	Responder Responder
}

// NewInvocation builds an invocation from adapter input.
func NewInvocation(p InvocationParams) *Invocation {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Args == nil {
		p.Args = map[string]any{}
	}
	return &Invocation{
		id:        p.ID,
		command:   p.Command,
		scope:     p.Scope,
		args:      p.Args,
		caller:    p.Caller,
		responder: p.Responder,
		acked:     make(chan struct{}),
	}
}

func (inv *Invocation) ID() string      { return inv.id }
func (inv *Invocation) Command() string { return inv.command }
func (inv *Invocation) Scope() Scope    { return inv.scope }
func (inv *Invocation) Caller() Caller  { return inv.caller }

// Args returns the raw argument map. Callers must not modify it.
func (inv *Invocation) Args() map[string]any { return inv.args }

// Arg returns one argument.
func (inv *Invocation) Arg(name string) (any, bool) {
	v, ok := inv.args[name]
	return v, ok
}

// ArgString returns an argument formatted as text, or "".
func (inv *Invocation) ArgString(name string) string {
	v, ok := inv.args[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Acknowledge defers the primary reply. After a successful acknowledgement
// the dispatcher stops counting the handler against its budget and delivers
// the handler's result in the background. Acknowledging twice is a no-op.
func (inv *Invocation) Acknowledge(ctx context.Context, ephemeral bool) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	switch inv.state {
	case stateAcked:
		return nil
	case stateReplied:
		return ErrResponderUsed
	}
	if inv.expiredLocked() {
		return ErrResponderExpired
	}
	if inv.responder == nil {
		return fmt.Errorf("invocation %s has no responder", inv.id)
	}
	if err := inv.responder.Acknowledge(ctx, ephemeral); err != nil {
		return err
	}
	inv.state = stateAcked
	close(inv.acked)
	return nil
}

// Respond sends the primary reply. It succeeds at most once per invocation;
// every later call fails with ErrResponderUsed. A zero Reply consumes the
// responder without sending anything, except after Acknowledge, where the
// transport is told to withdraw the pending reply.
func (inv *Invocation) Respond(ctx context.Context, r Reply) error {
	inv.mu.Lock()
	if inv.state == stateReplied {
		inv.mu.Unlock()
		return ErrResponderUsed
	}
	if inv.expiredLocked() {
		inv.mu.Unlock()
		return ErrResponderExpired
	}
	prev := inv.state
	inv.state = stateReplied
	inv.mu.Unlock()

	if inv.responder == nil || (r.IsZero() && prev != stateAcked) {
		return nil
	}
	return inv.responder.Respond(ctx, r)
}

// Followup sends an extra message once the primary reply went out.
func (inv *Invocation) Followup(ctx context.Context, r Reply) error {
	inv.mu.Lock()
	state, expired := inv.state, inv.expiredLocked()
	inv.mu.Unlock()

	if state != stateReplied {
		return ErrNotResponded
	}
	if expired {
		return ErrResponderExpired
	}
	if r.IsZero() || inv.responder == nil {
		return nil
	}
	return inv.responder.Followup(ctx, r)
}

// Expired reports whether the platform response window has closed.
func (inv *Invocation) Expired() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.expiredLocked()
}

// Responded reports whether the primary reply has been consumed.
func (inv *Invocation) Responded() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.state == stateReplied
}

func (inv *Invocation) acknowledged() <-chan struct{} { return inv.acked }

func (inv *Invocation) isAcknowledged() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.state == stateAcked
}

func (inv *Invocation) expiredLocked() bool {
	if inv.responder == nil {
		return false
	}
	d := inv.responder.Deadline()
	return !d.IsZero() && time.Now().After(d)
}
