package dispatch

import (
	"runtime/debug"
	"time"
)

// Executor runs observer calls with panic recovery and timing.
type Executor struct {
	panicHandler PanicHandler
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		panicHandler: defaultPanicHandler,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorPanicHandler sets the panic handler for the executor.
func WithExecutorPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		if h != nil {
			e.panicHandler = h
		}
	}
}

// Execute runs fn and returns the result.
// A panic inside fn is recovered and reported through the Result.
func (e *Executor) Execute(fn func()) (result Result) {
	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			stack := debug.Stack()

			result.Success = false
			result.Panicked = true
			result.PanicValue = r
			result.PanicStack = stack

			// A panicking panic handler must not take the broadcast down with it.
			func() {
				defer func() {
					_ = recover()
				}()
				e.panicHandler(r, stack)
			}()
		}
	}()

	fn()
	result.Success = true
	return result
}

// ExecuteAll runs fns in order and returns one result per call.
// A panic in one call does not prevent the following calls.
func (e *Executor) ExecuteAll(fns []func()) []Result {
	results := make([]Result, len(fns))
	for i, fn := range fns {
		results[i] = e.Execute(fn)
	}
	return results
}
