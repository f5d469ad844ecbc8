// Package cmd provides a transport-agnostic command core: descriptors kept in a
// scoped registry, a dispatcher that runs handlers with a bounded budget, and
// the diff used to reconcile the registry with a platform's remote catalog.
// How events become invocations (Discord slash, prefix messages, CLI) is
// defined by adapters built on top of this package.
package cmd

import (
	"context"
	"errors"
	"fmt"
)

// OptionType is the value type of a command option.
type OptionType int

const (
	OptionString OptionType = iota + 1
	OptionInteger
	OptionBoolean
	OptionNumber
	OptionUser
	OptionChannel
	OptionRole
)

func (t OptionType) String() string {
	switch t {
	case OptionString:
		return "string"
	case OptionInteger:
		return "integer"
	case OptionBoolean:
		return "boolean"
	case OptionNumber:
		return "number"
	case OptionUser:
		return "user"
	case OptionChannel:
		return "channel"
	case OptionRole:
		return "role"
	default:
		return fmt.Sprintf("option(%d)", int(t))
	}
}

// Choice is one predefined value of an option.
type Choice struct {
	Name  string
	Value any
}

// Option describes one named argument of a command.
type Option struct {
	Name        string
	Description string
	Type        OptionType
	Required    bool
	Choices     []Choice
}

// Definition is the shape of a command as a remote catalog sees it.
type Definition struct {
	Name        string
	Description string
	Options     []Option
}

// Reply is what a handler sends back. The zero Reply means "no reply".
type Reply struct {
	Content   string
	Ephemeral bool
}

// IsZero reports whether r carries nothing to send.
func (r Reply) IsZero() bool { return r.Content == "" }

// Text returns a public reply.
func Text(content string) Reply { return Reply{Content: content} }

// Ephemeral returns a reply only the invoker can see.
func Ephemeral(content string) Reply { return Reply{Content: content, Ephemeral: true} }

// Handler runs one invocation of a command.
type Handler interface {
	Handle(ctx context.Context, inv *Invocation) (Reply, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, inv *Invocation) (Reply, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, inv *Invocation) (Reply, error) {
	return f(ctx, inv)
}

// Static returns a handler that always answers with r.
func Static(r Reply) Handler {
	return HandlerFunc(func(context.Context, *Invocation) (Reply, error) { return r, nil })
}

// Descriptor is the registered form of a command. The registry keeps its own
// copy, so mutating a Descriptor after Register has no effect.
type Descriptor struct {
	Definition
	Scope   Scope
	Handler Handler
}

// Signature returns the hash the remote diff compares.
func (d Descriptor) Signature() string { return Signature(d.Definition) }

func (d Descriptor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidCommand)
	}
	if d.Handler == nil {
		return fmt.Errorf("%w: /%s has no handler", ErrInvalidCommand, d.Name)
	}
	for _, o := range d.Options {
		if o.Name == "" {
			return fmt.Errorf("%w: /%s has an unnamed option", ErrInvalidCommand, d.Name)
		}
	}
	return nil
}

// clone copies the slices so the registry never shares memory with callers.
func (d Descriptor) clone() Descriptor {
	d.Definition = d.Definition.clone()
	return d
}

func (def Definition) clone() Definition {
	if def.Options == nil {
		return def
	}
	opts := make([]Option, len(def.Options))
	for i, o := range def.Options {
		if o.Choices != nil {
			o.Choices = append([]Choice(nil), o.Choices...)
		}
		opts[i] = o
	}
	def.Options = opts
	return def
}

// HandlerError is the contained failure of a handler: a returned error or a
// recovered panic.
type HandlerError struct {
	Command string
	Err     error
	Panic   any
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("command /%s panicked: %v", e.Command, e.Panic)
	}
	return fmt.Sprintf("command /%s failed: %v", e.Command, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// IsHandlerError reports whether err carries a *HandlerError.
func IsHandlerError(err error) bool {
	var he *HandlerError
	return errors.As(err, &he)
}
