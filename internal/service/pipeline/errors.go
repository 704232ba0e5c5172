package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the HTTP and queue boundaries.
type Kind string

const (
	KindInvalidInput Kind = "INVALID_INPUT"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindNotFound     Kind = "NOT_FOUND"
	KindUpstream     Kind = "UPSTREAM_FAILURE"
)

// Error is returned by every Service operation.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether redelivering the triggering event can help.
func (e *Error) Retryable() bool {
	return e.Kind == KindUpstream
}

func invalidInput(op, msg string) error {
	return &Error{Kind: KindInvalidInput, Op: op, Msg: msg}
}

func unauthorized(op string) error {
	return &Error{Kind: KindUnauthorized, Op: op, Msg: "invalid api key"}
}

func notFound(op, msg string, err error) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg, Err: err}
}

func upstream(op, msg string, err error) error {
	return &Error{Kind: KindUpstream, Op: op, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain. Errors that
// carry no kind are treated as upstream failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// Message returns the client-facing text of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}
