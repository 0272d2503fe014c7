package dispatch

import "time"

// Dispatcher is the interface for observer call dispatchers.
type Dispatcher interface {
	// Dispatch runs fn and returns a Result describing the outcome.
	Dispatch(fn func()) Result
}

// Result represents the outcome of a single observer call.
type Result struct {
	// Success is true if the call returned normally.
	Success bool

	// Panicked is true if the call panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the call took.
	Duration time.Duration
}

// IsSuccess returns true if the result indicates a normal return.
func (r Result) IsSuccess() bool {
	return r.Success && !r.Panicked
}

// IsPanic returns true if the result indicates a panic.
func (r Result) IsPanic() bool {
	return r.Panicked
}

// PanicHandler is called when an observer call panics.
// It receives the panic value and the stack trace.
type PanicHandler func(panicValue any, stack []byte)

// defaultPanicHandler silently drops the panic; the Result still reports it.
func defaultPanicHandler(any, []byte) {}
