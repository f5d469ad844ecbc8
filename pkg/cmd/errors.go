package cmd

import "errors"

var (
	// ErrDuplicateCommand is returned by Register when (scope, name) is taken.
	ErrDuplicateCommand = errors.New("duplicate command")
	// ErrNotFound is returned by Unregister and Replace for an absent command.
	ErrNotFound = errors.New("command not found")
	// ErrInvalidCommand is returned by Register for a malformed descriptor.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrUnknownCommand means no descriptor matched an invocation in any scope.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrHandlerTimeout means a handler neither replied nor acknowledged
	// within the dispatch budget.
	ErrHandlerTimeout = errors.New("handler timed out")

	// ErrResponderUsed is returned on a second primary reply.
	ErrResponderUsed = errors.New("responder already used")
	// ErrResponderExpired is returned once the platform response window closed.
	ErrResponderExpired = errors.New("responder expired")
	// ErrNotResponded is returned by Followup before any primary reply.
	ErrNotResponded = errors.New("no primary reply sent yet")
)
