package mainloop

import "errors"

// Sentinel errors for the loop.
var (
	// ErrAlreadyRunning is returned when Run is called on a running loop.
	ErrAlreadyRunning = errors.New("loop is already running")

	// ErrStopped is returned when tasks are submitted to a loop that has stopped.
	ErrStopped = errors.New("loop is stopped")

	// ErrQueueFull is returned when Post cannot enqueue without blocking.
	ErrQueueFull = errors.New("loop queue is full")
)

// TaskPanicError is returned by Call when the submitted task panicked.
type TaskPanicError struct {
	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *TaskPanicError) Error() string {
	return "loop task panicked"
}
