package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/keshon/disbot/pkg/jobmgr"
	"github.com/rs/zerolog"
)

const (
	// DefaultBudget keeps the initial reply inside Discord's three second window.
	DefaultBudget = 2500 * time.Millisecond
	// DefaultBackgroundLimit matches the lifetime of an acknowledged interaction.
	DefaultBackgroundLimit = 15 * time.Minute
)

// ErrorReporter receives every error contained at the dispatcher boundary.
type ErrorReporter interface {
	Report(ctx context.Context, inv *Invocation, err error)
}

// ReporterFunc adapts a function to ErrorReporter.
type ReporterFunc func(ctx context.Context, inv *Invocation, err error)

// Report calls f.
func (f ReporterFunc) Report(ctx context.Context, inv *Invocation, err error) { f(ctx, inv, err) }

// LogReporter reports errors as log lines.
func LogReporter(logger zerolog.Logger) ErrorReporter {
	return ReporterFunc(func(_ context.Context, inv *Invocation, err error) {
		ev := logger.Error()
		if errors.Is(err, ErrUnknownCommand) {
			ev = logger.Warn()
		}
		ev.Err(err).
			Str("command", inv.Command()).
			Str("scope", inv.Scope().String()).
			Str("invocation", inv.ID()).
			Msg("command failed")
	})
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithBudget sets how long a handler may run before it must reply or acknowledge.
func WithBudget(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.budget = d
		}
	}
}

// WithBackgroundLimit bounds acknowledged handlers running in the background.
func WithBackgroundLimit(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.backgroundLimit = d
		}
	}
}

// WithErrorReporter replaces the default log reporter.
func WithErrorReporter(r ErrorReporter) DispatcherOption {
	return func(dp *Dispatcher) {
		if r != nil {
			dp.reporter = r
		}
	}
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l zerolog.Logger) DispatcherOption {
	return func(dp *Dispatcher) { dp.log = l }
}

// Dispatcher routes invocations to registered handlers. Handle is safe to call
// concurrently; invocations share nothing but the registry.
type Dispatcher struct {
	registry        *Registry
	budget          time.Duration
	backgroundLimit time.Duration
	reporter        ErrorReporter
	jobs            *jobmgr.Manager
	log             zerolog.Logger
}

type outcome struct {
	reply Reply
	err   error
}

// NewDispatcher returns a dispatcher reading from reg.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:        reg,
		budget:          DefaultBudget,
		backgroundLimit: DefaultBackgroundLimit,
		log:             zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.reporter == nil {
		d.reporter = LogReporter(d.log)
	}
	d.jobs = jobmgr.NewManager(func(name string, err error) {
		if err != nil && !errors.Is(err, context.Canceled) {
			d.log.Debug().Err(err).Str("job", name).Msg("background reply finished with error")
		}
	})
	return d
}

// Registry returns the registry the dispatcher reads from.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Handle runs the command named by inv. The guild's own command wins over a
// global one of the same name. Whatever happens, the invoker gets exactly one
// reply: the handler's, or an error reply for an unknown command, a failed or
// panicking handler, or a handler that exceeded the budget. The returned error
// describes that outcome and is never fatal.
func (d *Dispatcher) Handle(ctx context.Context, inv *Invocation) error {
	desc, ok := d.registry.Resolve(inv.Scope(), inv.Command())
	if !ok {
		err := fmt.Errorf("%w: /%s", ErrUnknownCommand, inv.Command())
		d.reporter.Report(ctx, inv, err)
		d.replyError(ctx, inv, Ephemeral(fmt.Sprintf("Unknown command: /%s", inv.Command())))
		return err
	}

	hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	results := make(chan outcome, 1)
	go d.run(hctx, desc, inv, results)

	timer := time.NewTimer(d.budget)
	defer timer.Stop()

	select {
	case res := <-results:
		cancel()
		return d.deliver(ctx, inv, res)

	case <-inv.acknowledged():
		return d.offload(ctx, inv, results, cancel)

	case <-timer.C:
		select {
		case res := <-results:
			cancel()
			return d.deliver(ctx, inv, res)
		default:
		}
		// A handler that already replied or acknowledged keeps running.
		if inv.isAcknowledged() || inv.Responded() {
			return d.offload(ctx, inv, results, cancel)
		}
		cancel()
		err := fmt.Errorf("%w: /%s after %s", ErrHandlerTimeout, inv.Command(), d.budget)
		d.reporter.Report(ctx, inv, err)
		d.replyError(ctx, inv, Ephemeral(fmt.Sprintf("/%s took too long to respond.", inv.Command())))
		return err

	case <-ctx.Done():
		cancel()
		err := fmt.Errorf("/%s interrupted: %w", inv.Command(), ctx.Err())
		d.reporter.Report(ctx, inv, err)
		d.replyError(ctx, inv, interruptedReply(inv))
		return err
	}
}

func interruptedReply(inv *Invocation) Reply {
	return Ephemeral(fmt.Sprintf("/%s was interrupted before it could finish.", inv.Command()))
}

// Close cancels handlers still running in the background and waits for them.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.jobs.StopAll()
	return d.jobs.Wait(ctx)
}

// Wait blocks until every background handler has delivered its reply or ctx
// is done. Unlike Close it cancels nothing.
func (d *Dispatcher) Wait(ctx context.Context) error { return d.jobs.Wait(ctx) }

// Pending returns the invocation jobs still running in the background.
func (d *Dispatcher) Pending() []string { return d.jobs.List() }

func (d *Dispatcher) run(ctx context.Context, desc Descriptor, inv *Invocation, out chan<- outcome) {
	defer func() {
		if p := recover(); p != nil {
			out <- outcome{err: &HandlerError{Command: desc.Name, Panic: p}}
		}
	}()
	reply, err := desc.Handler.Handle(ctx, inv)
	if err != nil {
		err = &HandlerError{Command: desc.Name, Err: err}
	}
	out <- outcome{reply: reply, err: err}
}

// offload hands an acknowledged or already answered invocation to a
// background job that delivers the handler's reply whenever it arrives.
func (d *Dispatcher) offload(ctx context.Context, inv *Invocation, results <-chan outcome, cancel context.CancelFunc) error {
	err := d.jobs.StartAsync(ctx, "invocation:"+inv.ID(), func(jctx context.Context) error {
		defer cancel()

		limit := time.NewTimer(d.backgroundLimit)
		defer limit.Stop()

		select {
		case res := <-results:
			return d.deliver(jctx, inv, res)
		case <-limit.C:
			err := fmt.Errorf("%w: /%s after %s in background", ErrHandlerTimeout, inv.Command(), d.backgroundLimit)
			d.reporter.Report(jctx, inv, err)
			d.replyError(jctx, inv, Ephemeral(fmt.Sprintf("/%s took too long to respond.", inv.Command())))
			return err
		case <-jctx.Done():
			d.replyError(jctx, inv, interruptedReply(inv))
			return jctx.Err()
		}
	})
	if err != nil {
		cancel()
		d.reporter.Report(ctx, inv, err)
		d.replyError(ctx, inv, Ephemeral(fmt.Sprintf("/%s could not be completed.", inv.Command())))
		return err
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, inv *Invocation, res outcome) error {
	if res.err != nil {
		d.reporter.Report(ctx, inv, res.err)
		d.replyError(ctx, inv, Ephemeral(fmt.Sprintf("Something went wrong while running /%s.", inv.Command())))
		return res.err
	}

	err := inv.Respond(context.WithoutCancel(ctx), res.reply)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrResponderUsed):
		// The handler already answered through the invocation.
		if !res.reply.IsZero() {
			d.log.Warn().Str("command", inv.Command()).Str("invocation", inv.ID()).
				Msg("handler returned a reply after responding; dropped")
		}
		return nil
	default:
		d.reporter.Report(ctx, inv, err)
		return err
	}
}

func (d *Dispatcher) replyError(ctx context.Context, inv *Invocation, r Reply) {
	err := inv.Respond(context.WithoutCancel(ctx), r)
	if err != nil && !errors.Is(err, ErrResponderUsed) {
		d.log.Warn().Err(err).Str("command", inv.Command()).Str("invocation", inv.ID()).
			Msg("failed to deliver error reply")
	}
}
