package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for the broadcaster.
var (
	// ErrWrongExecutionContext is returned when an operation is invoked off
	// the broadcaster's designated execution context.
	ErrWrongExecutionContext = errors.New("called off the designated execution context")

	// ErrUnexpectedObserverType marks a deferred addition whose referent no
	// longer satisfies Observer. It is raised as a panic, never returned.
	ErrUnexpectedObserverType = errors.New("unexpected observer type")

	// ErrNilObserver is returned when a nil observer is provided.
	ErrNilObserver = errors.New("observer cannot be nil")

	// ErrInvalidObserver is returned when an observer cannot be held weakly.
	ErrInvalidObserver = errors.New("observer must be a pointer to a non-zero-size value")

	// ErrDispatchInProgress is returned by Reset while a broadcast is running.
	ErrDispatchInProgress = errors.New("dispatch in progress")
)

// ContextError reports an operation refused off the execution context.
type ContextError struct {
	// Op is the refused operation, e.g. "subscribe".
	Op string
}

// Error implements the error interface.
func (e *ContextError) Error() string {
	return "broadcaster " + e.Op + ": " + ErrWrongExecutionContext.Error()
}

// Is allows errors.Is to match ContextError with ErrWrongExecutionContext.
func (e *ContextError) Is(target error) bool {
	return target == ErrWrongExecutionContext
}

// ObserverTypeError is the panic value raised when a deferred addition no
// longer holds an Observer at drain time. It indicates a host programming
// error and is not meant to be recovered.
type ObserverTypeError struct {
	// ID is the event id of the deferred addition.
	ID EventID

	// Value is the object found in place of an Observer.
	Value any
}

// Error implements the error interface.
func (e *ObserverTypeError) Error() string {
	return fmt.Sprintf("deferred subscription for event %d holds %T: %v", e.ID, e.Value, ErrUnexpectedObserverType)
}

// Unwrap returns ErrUnexpectedObserverType.
func (e *ObserverTypeError) Unwrap() error {
	return ErrUnexpectedObserverType
}

// PanicError wraps an observer panic as an error. It is what the broadcaster
// logs; the PanicHandler receives the raw value.
type PanicError struct {
	// ID is the event being delivered.
	ID EventID

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("observer panic on event %d: %v", e.ID, e.Value)
}
