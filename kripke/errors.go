package kripke

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAgent reports a group or agent name that the model does not
	// declare.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrType reports an expression that does not denote a Boolean, or that
	// names unknown variables or values.
	ErrType = errors.New("type error")
	// ErrModel reports a structurally invalid model description.
	ErrModel = errors.New("invalid model")
)

type UnknownAgentError struct {
	Name string
}

func (e *UnknownAgentError) Error() string {
	return fmt.Sprintf("unknown agent or group %q", e.Name)
}

func (e *UnknownAgentError) Unwrap() error { return ErrUnknownAgent }

type TypeError struct {
	Expr string
	Msg  string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Expr, e.Msg)
}

func (e *TypeError) Unwrap() error { return ErrType }

func modelErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrModel, fmt.Sprintf(format, args...))
}
