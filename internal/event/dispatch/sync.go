package dispatch

import (
	"sync/atomic"
	"time"
)

// SyncDispatcher calls observers on the caller's goroutine, one at a time,
// and keeps running totals of what happened.
type SyncDispatcher struct {
	executor *Executor

	calls     atomic.Uint64
	returned  atomic.Uint64
	panicked  atomic.Uint64
	busyNs    atomic.Int64
	slowestNs atomic.Int64
}

// SyncOption configures a SyncDispatcher.
type SyncOption func(*SyncDispatcher)

// WithPanicHandler sets the handler called with every recovered panic.
func WithPanicHandler(h PanicHandler) SyncOption {
	return func(d *SyncDispatcher) {
		d.executor = NewExecutor(WithExecutorPanicHandler(h))
	}
}

// NewSyncDispatcher creates a synchronous dispatcher.
func NewSyncDispatcher(opts ...SyncOption) *SyncDispatcher {
	d := &SyncDispatcher{executor: NewExecutor()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs fn and blocks until it returns or panics. A panic is
// recovered and reported in the Result.
func (d *SyncDispatcher) Dispatch(fn func()) Result {
	d.calls.Add(1)
	result := d.executor.Execute(fn)

	ns := result.Duration.Nanoseconds()
	d.busyNs.Add(ns)
	for {
		cur := d.slowestNs.Load()
		if ns <= cur || d.slowestNs.CompareAndSwap(cur, ns) {
			break
		}
	}

	if result.Panicked {
		d.panicked.Add(1)
	} else if result.Success {
		d.returned.Add(1)
	}
	return result
}

// Stats returns dispatch statistics. Counters are read one by one, so a
// dispatch running concurrently may be partly counted.
func (d *SyncDispatcher) Stats() SyncDispatcherStats {
	calls := d.calls.Load()
	busy := time.Duration(d.busyNs.Load())

	var avg time.Duration
	if calls > 0 {
		avg = busy / time.Duration(calls)
	}
	return SyncDispatcherStats{
		Dispatched:    calls,
		Succeeded:     d.returned.Load(),
		Panicked:      d.panicked.Load(),
		TotalDuration: busy,
		AvgDuration:   avg,
		MaxDuration:   time.Duration(d.slowestNs.Load()),
	}
}

// ResetStats zeroes every counter.
func (d *SyncDispatcher) ResetStats() {
	d.calls.Store(0)
	d.returned.Store(0)
	d.panicked.Store(0)
	d.busyNs.Store(0)
	d.slowestNs.Store(0)
}

// SyncDispatcherStats contains statistics for a sync dispatcher.
type SyncDispatcherStats struct {
	// Dispatched is the total number of observer calls.
	Dispatched uint64

	// Succeeded is the number of calls that returned normally.
	Succeeded uint64

	// Panicked is the number of calls that panicked.
	Panicked uint64

	// TotalDuration is the cumulative time spent in observer calls.
	TotalDuration time.Duration

	// AvgDuration is the average call duration.
	AvgDuration time.Duration

	// MaxDuration is the longest single call.
	MaxDuration time.Duration
}

var _ Dispatcher = (*SyncDispatcher)(nil)
