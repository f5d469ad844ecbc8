package cmd

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Middleware wraps a handler (logging, access checks, metrics).
type Middleware func(Handler) Handler

// Apply applies middlewares in order; the first in the list is the outermost.
func Apply(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// WithGuildOnly refuses invocations made outside a guild.
func WithGuildOnly() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, inv *Invocation) (Reply, error) {
			if inv.Scope().IsGlobal() {
				return Ephemeral("This command can only be used in a server."), nil
			}
			return next.Handle(ctx, inv)
		})
	}
}

// WithCommandLog writes one log line per invocation with its outcome.
func WithCommandLog(logger zerolog.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, inv *Invocation) (Reply, error) {
			start := time.Now()
			reply, err := next.Handle(ctx, inv)

			caller := inv.Caller()
			ev := logger.Info()
			if err != nil {
				ev = logger.Warn().Err(err)
			}
			ev.Str("command", inv.Command()).
				Str("scope", inv.Scope().String()).
				Str("user", caller.Username).
				Str("user_id", caller.UserID).
				Str("invocation", inv.ID()).
				Dur("took", time.Since(start)).
				Msg("command executed")
			return reply, err
		})
	}
}
