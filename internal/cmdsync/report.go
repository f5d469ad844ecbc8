package cmdsync

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keshon/disbot/internal/gateway"
	"github.com/keshon/disbot/pkg/cmd"
)

// Failure is a remote change that still failed after every retry.
type Failure struct {
	Change gateway.Change
	Err    error
}

// Report describes one sync pass.
type Report struct {
	Scope   cmd.Scope
	Added   []string
	Updated []string
	Removed []string
	Failed  []Failure
	Took    time.Duration
}

// Changed reports whether the pass modified the remote catalog.
func (r *Report) Changed() bool {
	return len(r.Added)+len(r.Updated)+len(r.Removed) > 0
}

// Err joins the errors of failed items, or returns nil.
func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s %s: %w", f.Change.Op, f.Change.Name(), f.Err))
	}
	return &PartialError{Scope: r.Scope, Err: errors.Join(errs...)}
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: +%d ~%d -%d", r.Scope, len(r.Added), len(r.Updated), len(r.Removed))
	if len(r.Failed) > 0 {
		fmt.Fprintf(&b, " failed=%d", len(r.Failed))
	}
	return b.String()
}

func (r *Report) record(ch gateway.Change, err error) {
	if err != nil {
		r.Failed = append(r.Failed, Failure{Change: ch, Err: err})
		return
	}
	switch ch.Op {
	case gateway.OpAdd:
		r.Added = append(r.Added, ch.Name())
	case gateway.OpUpdate:
		r.Updated = append(r.Updated, ch.Name())
	case gateway.OpRemove:
		r.Removed = append(r.Removed, ch.Name())
	}
}

// PartialError is returned by Sync when some changes could not be applied.
type PartialError struct {
	Scope cmd.Scope
	Err   error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("sync %s incomplete: %v", e.Scope, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }
