package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/keshon/disbot/pkg/cmd"
)

// consoleResponder prints replies instead of sending them anywhere.
type consoleResponder struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsoleResponder(out io.Writer) *consoleResponder {
	return &consoleResponder{out: out}
}

func (c *consoleResponder) Acknowledge(_ context.Context, ephemeral bool) error {
	return c.print("…", "thinking", ephemeral)
}

func (c *consoleResponder) Respond(_ context.Context, r cmd.Reply) error {
	if r.IsZero() {
		return c.print("×", "(reply withdrawn)", false)
	}
	return c.print("»", r.Content, r.Ephemeral)
}

func (c *consoleResponder) Followup(_ context.Context, r cmd.Reply) error {
	return c.print("+", r.Content, r.Ephemeral)
}

func (c *consoleResponder) Deadline() time.Time { return time.Time{} }

func (c *consoleResponder) print(mark, content string, ephemeral bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ephemeral {
		content += " (only you can see this)"
	}
	_, err := fmt.Fprintf(c.out, "%s %s\n", mark, content)
	return err
}
