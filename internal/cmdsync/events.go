package cmdsync

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/keshon/disbot/pkg/cmd"
)

// Request queues a sync for scope without waiting for it. It reports false
// when the queue is full and the request was dropped.
func (c *Coordinator) Request(scope cmd.Scope) bool {
	select {
	case c.requests <- scope:
		return true
	default:
		c.log.Warn().Str("scope", scope.String()).Msg("sync request dropped, queue full")
		return false
	}
}

// RequestAll queues a sync for every known scope.
func (c *Coordinator) RequestAll() {
	for _, s := range c.allScopes() {
		c.Request(s)
	}
}

// Run serves queued requests until ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case scope := <-c.requests:
			go func() {
				if _, err := c.Sync(ctx, scope); err != nil {
					c.log.Error().Err(err).Str("scope", scope.String()).Msg("requested sync failed")
				}
			}()
		case <-ctx.Done():
			return
		}
	}
}

// Schedule requests a sync of every known scope on the given cron spec
// (standard five fields or descriptors such as "@every 1h") until ctx is done.
func (c *Coordinator) Schedule(ctx context.Context, spec string) error {
	sched := cron.New()
	if _, err := sched.AddFunc(spec, func() {
		c.log.Debug().Str("schedule", spec).Msg("scheduled resync")
		c.RequestAll()
	}); err != nil {
		return err
	}
	sched.Start()
	go func() {
		<-ctx.Done()
		<-sched.Stop().Done()
	}()
	c.log.Info().Str("schedule", spec).Msg("periodic command sync enabled")
	return nil
}
