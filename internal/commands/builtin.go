// Package commands declares the bot's built-in commands and the optional
// static reply catalog, and registers them explicitly on a registry.
package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/keshon/disbot/internal/cmdsync"
	"github.com/keshon/disbot/pkg/cmd"
)

// Syncer re-syncs the command tree; *cmdsync.Coordinator implements it.
type Syncer interface {
	SyncAll(ctx context.Context, extra ...cmd.Scope) ([]*cmdsync.Report, error)
}

// Deps carries what the built-in commands need.
type Deps struct {
	// Scope is where /hello is registered; the other commands are global.
	Scope  cmd.Scope
	Syncer Syncer
	// SyncGuard restricts /sync, e.g. to members who can manage the server.
	SyncGuard cmd.Middleware
	Logger    zerolog.Logger
}

const (
	helloReply   = "Hello, how are you?"
	whatsupReply = "Nothing much"
	syncedReply  = "✅ Command tree synced"
)

// Register adds hello, whatsup, help and (when a Syncer is given) sync.
func Register(reg *cmd.Registry, deps Deps) error {
	logged := cmd.WithCommandLog(deps.Logger)

	ds := []cmd.Descriptor{
		{
			Definition: cmd.Definition{Name: "hello", Description: "Replies with Hello!"},
			Scope:      deps.Scope,
			Handler:    cmd.Apply(cmd.Static(cmd.Text(helloReply)), logged),
		},
		{
			Definition: cmd.Definition{Name: "whatsup", Description: "Asks the bot how it is doing"},
			Handler:    cmd.Apply(cmd.Static(cmd.Text(whatsupReply)), logged),
		},
		{
			Definition: cmd.Definition{Name: "help", Description: "Lists the available commands"},
			Handler:    cmd.Apply(helpHandler(reg), logged),
		},
	}
	if deps.Syncer != nil {
		mws := []cmd.Middleware{logged}
		if deps.SyncGuard != nil {
			mws = append(mws, deps.SyncGuard)
		}
		ds = append(ds, cmd.Descriptor{
			Definition: cmd.Definition{Name: "sync", Description: "Re-syncs the command tree with Discord"},
			Handler:    cmd.Apply(syncHandler(deps.Syncer), mws...),
		})
	}

	for _, d := range ds {
		if err := reg.Register(d); err != nil {
			return fmt.Errorf("register %s: %w", d.Name, err)
		}
	}
	return nil
}

// syncHandler acknowledges first, since a sync pass easily outlasts the
// dispatch budget.
func syncHandler(s Syncer) cmd.HandlerFunc {
	return func(ctx context.Context, inv *cmd.Invocation) (cmd.Reply, error) {
		if err := inv.Acknowledge(ctx, true); err != nil {
			return cmd.Reply{}, err
		}

		var extra []cmd.Scope
		if !inv.Scope().IsGlobal() {
			extra = append(extra, inv.Scope())
		}
		reports, err := s.SyncAll(ctx, extra...)
		if err != nil {
			return cmd.Ephemeral(fmt.Sprintf("⚠️ Sync incomplete: %v", err)), nil
		}

		changed := 0
		for _, r := range reports {
			changed += len(r.Added) + len(r.Updated) + len(r.Removed)
		}
		if changed == 0 {
			return cmd.Ephemeral(syncedReply), nil
		}
		return cmd.Ephemeral(fmt.Sprintf("%s (%d changes)", syncedReply, changed)), nil
	}
}

// helpHandler lists what the invoker can use here: guild commands shadow
// global ones of the same name.
func helpHandler(reg *cmd.Registry) cmd.HandlerFunc {
	return func(_ context.Context, inv *cmd.Invocation) (cmd.Reply, error) {
		visible := map[string]string{}
		for d := range reg.List(cmd.Global()) {
			visible[d.Name] = d.Description
		}
		if !inv.Scope().IsGlobal() {
			for d := range reg.List(inv.Scope()) {
				visible[d.Name] = d.Description
			}
		}

		names := make([]string, 0, len(visible))
		for name := range visible {
			names = append(names, name)
		}
		sort.Strings(names)

		var b strings.Builder
		b.WriteString("**Commands**\n")
		for _, name := range names {
			fmt.Fprintf(&b, "`/%s` %s\n", name, visible[name])
		}
		return cmd.Ephemeral(strings.TrimRight(b.String(), "\n")), nil
	}
}
