package mainloop

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dshills/broadcaster/internal/event/dispatch"
)

// Loop runs tasks one at a time on a single goroutine.
//
// The goroutine that calls Run becomes the designated context for as long
// as Run is executing. Producers on other goroutines submit work with Post
// (fire and forget) or Call (wait for the result).
type Loop struct {
	tasks    chan task
	owner    atomic.Uint64
	started  atomic.Bool
	stopped  chan struct{}
	stopOnce sync.Once

	executor *dispatch.Executor
	log      zerolog.Logger
}

type task struct {
	fn   func() error
	done chan error
}

// Option configures a Loop.
type Option func(*Loop)

// WithQueueSize sets how many tasks may wait for the loop.
func WithQueueSize(size int) Option {
	return func(l *Loop) {
		if size > 0 {
			l.tasks = make(chan task, size)
		}
	}
}

// WithLogger sets the logger used for task panics.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loop) {
		l.log = log
	}
}

// New creates a loop. It does nothing until Run is called.
func New(opts ...Option) *Loop {
	l := &Loop{
		tasks:   make(chan task, 256),
		stopped: make(chan struct{}),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.executor = dispatch.NewExecutor(dispatch.WithExecutorPanicHandler(func(v any, stack []byte) {
		l.log.Error().
			Str("component", "mainloop").
			Interface("panic", v).
			Bytes("stack", stack).
			Msg("loop task panicked")
	}))
	return l
}

// Run executes tasks on the calling goroutine until ctx is cancelled.
// A loop runs at most once; after Run returns the loop rejects new work.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		select {
		case <-l.stopped:
			return ErrStopped
		default:
			return ErrAlreadyRunning
		}
	}

	l.owner.Store(currentGoroutineID())
	defer func() {
		l.owner.Store(0)
		l.stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-l.tasks:
			l.run(t)
		}
	}
}

// IsCurrent reports whether the caller runs on the loop goroutine.
func (l *Loop) IsCurrent() bool {
	owner := l.owner.Load()
	return owner != 0 && owner == currentGoroutineID()
}

// Stopped returns a channel closed once Run has returned.
func (l *Loop) Stopped() <-chan struct{} {
	return l.stopped
}

// Post enqueues fn without waiting for it to run.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.stopped:
		return ErrStopped
	default:
	}

	t := task{fn: func() error {
		fn()
		return nil
	}}
	select {
	case l.tasks <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Call runs fn on the loop and returns its error.
// Called from the loop goroutine itself, fn runs inline so nested calls
// cannot deadlock. If ctx ends first, Call returns ctx.Err() and fn may
// still run later.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	if l.IsCurrent() {
		return l.execute(fn)
	}

	done := make(chan error, 1)
	select {
	case l.tasks <- task{fn: fn, done: done}:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-l.stopped:
		select {
		case err := <-done:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) run(t task) {
	err := l.execute(t.fn)
	if t.done != nil {
		t.done <- err
	}
}

func (l *Loop) execute(fn func() error) error {
	var err error
	result := l.executor.Execute(func() { err = fn() })
	if result.IsPanic() {
		return &TaskPanicError{Value: result.PanicValue, Stack: string(result.PanicStack)}
	}
	return err
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() { close(l.stopped) })
}
