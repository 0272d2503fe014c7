package event

import (
	"strconv"
	"time"
)

// EventID identifies a class of events. Callers own the numbering scheme.
type EventID int

// String returns the decimal form of the id.
func (id EventID) String() string {
	return strconv.Itoa(int(id))
}

// Observer receives notifications for the event ids it subscribed to.
//
// Observers are held weakly: subscribing never keeps an observer alive, and
// an observer that becomes unreachable is dropped before the next delivery
// to its ids. An Observer must therefore be a non-nil pointer to a value of
// non-zero size. Identity is pointer identity.
type Observer interface {
	// OnNotification is called on the broadcaster's execution context.
	// The payload slice must not be retained or modified.
	OnNotification(id EventID, payload []any)
}

// ExecContext reports whether the caller runs on the designated execution
// context of a Broadcaster. It is supplied by the host, typically a
// mainloop.Loop or mainloop.Affinity.
type ExecContext interface {
	IsCurrent() bool
}

// Delivery describes what happened to one post.
type Delivery struct {
	// Delivered is the number of observers notified by this post's own pass.
	// Nested posts made by those observers are not included.
	Delivered int

	// Delayed is true if the post went to the delay queue instead.
	Delayed bool
}

// Stats contains broadcaster statistics.
type Stats struct {
	// EventsPosted is the number of accepted posts, delayed or not.
	EventsPosted uint64

	// EventsDelayed is the number of posts parked while suspended.
	EventsDelayed uint64

	// EventsReplayed is the number of delayed posts replayed on resume.
	EventsReplayed uint64

	// EventsRejected is the number of posts refused off the execution context.
	EventsRejected uint64

	// Notifications is the total number of observer calls.
	Notifications uint64

	// ObserverPanics is the number of observer calls that panicked.
	ObserverPanics uint64

	// ObserversReaped is the number of dead weak entries purged.
	ObserversReaped uint64

	// ObserverTime is the total time spent inside observer callbacks.
	ObserverTime time.Duration

	// SlowestObserver is the longest single observer callback.
	SlowestObserver time.Duration

	// ActiveObservers is the number of entries in the observer table,
	// including entries not yet reaped.
	ActiveObservers int

	// DelayQueueDepth is the number of posts waiting for resume.
	DelayQueueDepth int

	// DispatchDepth is the current broadcast nesting level.
	DispatchDepth int

	// Suspended reports the suspend flag.
	Suspended bool
}

// PanicHandler is called when an observer panics during delivery.
type PanicHandler func(id EventID, observer Observer, recovered any)

// DefaultPanicHandler ignores the panic. Panics are still logged and counted.
func DefaultPanicHandler(EventID, Observer, any) {}
