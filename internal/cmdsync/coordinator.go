// Package cmdsync reconciles the local command registry with the platform's
// remote command catalog.
package cmdsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/disbot/internal/gateway"
	"github.com/keshon/disbot/pkg/cmd"
	"github.com/keshon/disbot/pkg/retrylimit"
	"github.com/keshon/disbot/pkg/util"
)

const (
	DefaultWorkers     = 4
	DefaultPassTimeout = 2 * time.Minute
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRetry sets the retry policy used for fetches and for each change.
func WithRetry(cfg retrylimit.Config) Option {
	return func(c *Coordinator) { c.retry = cfg }
}

// WithLimiter shares a rate limiter between all remote calls.
func WithLimiter(l *retrylimit.AdaptiveLimiter) Option {
	return func(c *Coordinator) { c.limiter = l }
}

// WithWorkers bounds concurrent remote calls within a pass.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithScopes adds scopes that SyncAll covers even when the registry holds no
// command for them, so stale remote commands there are still removed.
func WithScopes(scopes ...cmd.Scope) Option {
	return func(c *Coordinator) { c.extra = append(c.extra, scopes...) }
}

// WithPassTimeout bounds a single pass.
func WithPassTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.passTimeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// Coordinator runs sync passes. At most one pass per scope is in flight;
// callers arriving while a pass runs share a single follow-up pass.
type Coordinator struct {
	registry    *cmd.Registry
	catalog     gateway.Catalog
	retry       retrylimit.Config
	limiter     *retrylimit.AdaptiveLimiter
	workers     int
	passTimeout time.Duration
	extra       []cmd.Scope
	log         zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	scopes map[cmd.Scope]*scopeState

	requests chan cmd.Scope
}

type scopeState struct {
	running bool
	next    *pass
}

type pass struct {
	done    chan struct{}
	waiters int
	report  *Report
	err     error
}

func newPass() *pass { return &pass{done: make(chan struct{})} }

// New creates a Coordinator for reg against catalog.
func New(reg *cmd.Registry, catalog gateway.Catalog, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		registry:    reg,
		catalog:     catalog,
		retry:       retrylimit.DefaultConfig(),
		limiter:     retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5),
		workers:     DefaultWorkers,
		passTimeout: DefaultPassTimeout,
		log:         zerolog.Nop(),
		ctx:         ctx,
		cancel:      cancel,
		scopes:      make(map[cmd.Scope]*scopeState),
		requests:    make(chan cmd.Scope, 16),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.Logger = c.log
	return c
}

// Sync reconciles scope and waits for the outcome. If a pass for scope is
// already running, Sync waits for it and then for one more pass that sees
// every change made meanwhile. The returned error is non-nil when the remote
// snapshot could not be fetched or when some changes failed; in the latter
// case the report lists them.
func (c *Coordinator) Sync(ctx context.Context, scope cmd.Scope) (*Report, error) {
	c.mu.Lock()
	st, ok := c.scopes[scope]
	if !ok {
		st = &scopeState{}
		c.scopes[scope] = st
	}
	var p *pass
	if st.running {
		if st.next == nil {
			st.next = newPass()
		}
		p = st.next
		p.waiters++
	} else {
		st.running = true
		p = newPass()
		go c.drive(scope, p)
	}
	c.mu.Unlock()

	select {
	case <-p.done:
		return p.report, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// drive runs p, then keeps running queued follow-up passes until none is left.
func (c *Coordinator) drive(scope cmd.Scope, p *pass) {
	for p != nil {
		p.report, p.err = c.runPass(scope)
		close(p.done)

		c.mu.Lock()
		st := c.scopes[scope]
		p, st.next = st.next, nil
		if p == nil {
			st.running = false
		} else {
			c.log.Debug().Str("scope", scope.String()).Int("waiters", p.waiters).Msg("running coalesced follow-up pass")
		}
		c.mu.Unlock()
	}
}

func (c *Coordinator) runPass(scope cmd.Scope) (*Report, error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.passTimeout)
	defer cancel()

	start := time.Now()
	logger := c.log.With().Str("scope", scope.String()).Logger()

	var remote []cmd.RemoteCommand
	err := retrylimit.Do(ctx, c.retry, c.limiter, func(ctx context.Context) error {
		var err error
		remote, err = c.catalog.FetchRemoteCommands(ctx, scope)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("fetch remote commands")
		return nil, fmt.Errorf("fetch remote commands for %s: %w", scope, err)
	}

	report := &Report{Scope: scope}
	changes := c.registry.Diff(scope, remote)
	if changes.Empty() {
		report.Took = time.Since(start)
		logger.Debug().Int("remote", len(remote)).Msg("command catalog up to date")
		return report, nil
	}

	logger.Info().
		Int("add", len(changes.ToAdd)).
		Int("update", len(changes.ToUpdate)).
		Int("remove", len(changes.ToRemove)).
		Msg("syncing commands")

	// Removes go first so a renamed command never trips a name collision.
	all := gateway.Changes(changes)
	removes, upserts := all[:len(changes.ToRemove)], all[len(changes.ToRemove):]
	for _, batch := range [][]gateway.Change{removes, upserts} {
		errs := util.ForEach(ctx, batch, c.workers, func(ctx context.Context, ch gateway.Change) error {
			return retrylimit.Do(ctx, c.retry, c.limiter, func(ctx context.Context) error {
				return c.catalog.ApplyRemoteCommand(ctx, scope, ch)
			})
		})
		for i, ch := range batch {
			report.record(ch, errs[i])
			if errs[i] != nil {
				logger.Warn().Err(errs[i]).Str("command", ch.Name()).Str("op", ch.Op.String()).Msg("change failed")
			} else {
				logger.Debug().Str("command", ch.Name()).Str("op", ch.Op.String()).Msg("change applied")
			}
		}
	}

	report.Took = time.Since(start)
	logger.Info().Str("result", report.String()).Dur("took", report.Took).Msg("sync finished")
	return report, report.Err()
}

// SyncAll syncs every scope that has registered commands, the scopes given
// via WithScopes and extra, concurrently. Reports are returned in scope order
// for the scopes whose fetch succeeded.
func (c *Coordinator) SyncAll(ctx context.Context, extra ...cmd.Scope) ([]*Report, error) {
	scopes := c.allScopes(extra...)
	reports := make([]*Report, len(scopes))
	idx := make([]int, len(scopes))
	for i := range idx {
		idx[i] = i
	}
	errs := util.ForEach(ctx, idx, len(idx), func(ctx context.Context, i int) error {
		r, err := c.Sync(ctx, scopes[i])
		reports[i] = r
		return err
	})

	out := make([]*Report, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, errors.Join(errs...)
}

func (c *Coordinator) allScopes(extra ...cmd.Scope) []cmd.Scope {
	seen := make(map[cmd.Scope]struct{})
	var out []cmd.Scope
	add := func(scopes ...cmd.Scope) {
		for _, s := range scopes {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	add(c.registry.Scopes()...)
	add(c.extra...)
	add(extra...)
	return out
}

// Close aborts running passes. Passes requested afterwards fail immediately.
func (c *Coordinator) Close() {
	c.cancel()
}
