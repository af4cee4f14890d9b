// Package apperr defines the failure kinds surfaced by the control plane.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers and the HTTP layer
type Kind string

const (
	KindParse       Kind = "parse"
	KindCommand     Kind = "command"
	KindConfigWrite Kind = "config_write"
	KindReload      Kind = "reload"
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
)

// Sentinels for errors.Is matching by kind
var (
	ErrParse       = &Error{Kind: KindParse}
	ErrCommand     = &Error{Kind: KindCommand}
	ErrConfigWrite = &Error{Kind: KindConfigWrite}
	ErrReload      = &Error{Kind: KindReload}
	ErrValidation  = &Error{Kind: KindValidation}
	ErrNotFound    = &Error{Kind: KindNotFound}
)

// Error carries the failing operation and whatever the switch or filesystem returned
type Error struct {
	Kind   Kind
	Op     string
	Detail string // command text, raw output or path
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind
func New(kind Kind, op, detail string, err error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Err: err}
}

// Validation is a shorthand for rejected input
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// NotFound is a shorthand for unknown queues, groups and agents
func NotFound(op, what string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Detail: what}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
