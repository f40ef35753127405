package invoker

import (
	"errors"
	"fmt"
)

// ErrNoStrategy is wrapped by every LoadingError of a loader whose probing
// found no usable strategy.
var ErrNoStrategy = errors.New("invoker: no usable loading strategy")

// Stage names a step of invoker creation.
type Stage string

const (
	StageResolve     Stage = "resolve"
	StageValidate    Stage = "validate"
	StageEmit        Stage = "emit"
	StageAssemble    Stage = "assemble"
	StageLoad        Stage = "load"
	StageInstantiate Stage = "instantiate"
)

// ResolutionError reports that no method matches a lookup.
type ResolutionError struct {
	Owner  string
	Method string
	Params string // method descriptor or parameter list as requested
	Err    error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("no method %s.%s%s", e.Owner, e.Method, e.Params)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// RejectedTargetError reports a target that generated code cannot call.
type RejectedTargetError struct {
	Target string
}

func (e *RejectedTargetError) Error() string {
	return fmt.Sprintf("private target %s cannot be invoked directly", e.Target)
}

// EmissionError reports an inconsistency while building or encoding a
// dispatch stub.
type EmissionError struct {
	Name   string
	Reason string
	Err    error
}

func (e *EmissionError) Error() string {
	msg := fmt.Sprintf("emit %s: %s", e.Name, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EmissionError) Unwrap() error { return e.Err }

// LoadingError reports that a generated class could not be registered:
// no scope, no strategy, or a rejected definition.
type LoadingError struct {
	Name     string
	Strategy string
	Err      error
}

func (e *LoadingError) Error() string {
	if e.Strategy == "" {
		return fmt.Sprintf("load %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("load %s via %s: %v", e.Name, e.Strategy, e.Err)
}

func (e *LoadingError) Unwrap() error { return e.Err }

// InstantiationError reports that a loaded class could not be constructed.
type InstantiationError struct {
	Name string
	Err  error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("instantiate %s: %v", e.Name, e.Err)
}

func (e *InstantiationError) Unwrap() error { return e.Err }

// CreateError is returned by Factory.Create. It carries the stage that
// failed and the original cause, reachable with errors.As and errors.Is.
type CreateError struct {
	Stage  Stage
	Target string
	Name   string // generated class name, empty before naming
	Err    error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("invoker: create %s failed at %s: %v", e.Target, e.Stage, e.Err)
}

func (e *CreateError) Unwrap() error { return e.Err }
