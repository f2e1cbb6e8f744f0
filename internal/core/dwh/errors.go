package dwh

import (
	"context"
	"errors"
	"fmt"
)

type ErrorKind int

const (
	Unclassified ErrorKind = iota
	ControlPlane
	IdempotencyConflict
	SQLExecution
	PollingAborted
)

func (k ErrorKind) String() string {
	switch k {
	case ControlPlane:
		return "ControlPlane"
	case IdempotencyConflict:
		return "IdempotencyConflict"
	case SQLExecution:
		return "SQLExecution"
	case PollingAborted:
		return "PollingAborted"
	default:
		return "Unclassified"
	}
}

// ErrAlreadyExists marks a request that found its target already in the
// desired state. Callers treat it as success.
var ErrAlreadyExists = errors.New("already exists")

// ErrNotFound marks a request whose target does not exist.
var ErrNotFound = errors.New("not found")

// TransitionError is a control-plane failure during one named transition,
// e.g. "create" or "authorize-ingress".
type TransitionError struct {
	Component  string
	Transition string
	Err        error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Component, e.Transition, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// StatementError is a SQL failure. Index is 1-based within the stage.
type StatementError struct {
	Stage Stage
	Index int
	Name  string
	Err   error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("%s: statement %d (%s) failed: %v", e.Stage, e.Index, e.Name, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

func KindOf(err error) ErrorKind {
	if err == nil {
		return Unclassified
	}
	if errors.Is(err, ErrAlreadyExists) {
		return IdempotencyConflict
	}
	var statementErr *StatementError
	if errors.As(err, &statementErr) {
		return SQLExecution
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return PollingAborted
	}
	var transitionErr *TransitionError
	if errors.As(err, &transitionErr) {
		return ControlPlane
	}
	return Unclassified
}
