// Package gateway defines the boundary between the command core and a chat
// platform: a client that turns platform events into invocations and a
// catalog that holds the platform's view of registered commands.
package gateway

import (
	"context"

	"github.com/keshon/disbot/pkg/cmd"
)

// InvocationFunc receives every invocation the client builds from platform events.
type InvocationFunc func(ctx context.Context, inv *cmd.Invocation)

// Client is a connection to the chat platform.
type Client interface {
	// Connect opens the gateway session. A rejected credential yields *AuthError.
	Connect(ctx context.Context) error
	// OnInvocation sets the callback for incoming commands. Call before Connect.
	OnInvocation(fn InvocationFunc)
	Close() error
	Catalog
}

// Catalog is the remote list of registered commands.
type Catalog interface {
	FetchRemoteCommands(ctx context.Context, scope cmd.Scope) ([]cmd.RemoteCommand, error)
	ApplyRemoteCommand(ctx context.Context, scope cmd.Scope, change Change) error
}

// Op is the kind of a remote catalog change.
type Op int

const (
	OpAdd Op = iota + 1
	OpUpdate
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpUpdate:
		return "update"
	case OpRemove:
		return "remove"
	}
	return "unknown"
}

// Change is one remote catalog mutation. Local is set for adds and updates,
// Remote for updates and removes.
type Change struct {
	Op     Op
	Local  cmd.Definition
	Remote cmd.RemoteCommand
}

// Name is the command the change touches.
func (c Change) Name() string {
	if c.Op == OpRemove {
		return c.Remote.Name
	}
	return c.Local.Name
}

// Changes flattens a diff into apply order: removes first, then adds and updates.
func Changes(c cmd.Changes) []Change {
	out := make([]Change, 0, c.Len())
	for _, rc := range c.ToRemove {
		out = append(out, Change{Op: OpRemove, Remote: rc})
	}
	for _, d := range c.ToAdd {
		out = append(out, Change{Op: OpAdd, Local: d.Definition})
	}
	for _, u := range c.ToUpdate {
		out = append(out, Change{Op: OpUpdate, Local: u.Local.Definition, Remote: u.Remote})
	}
	return out
}
