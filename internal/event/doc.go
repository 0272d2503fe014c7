// Package event provides an in-process broadcaster that fans integer-keyed
// events out to weakly held observers.
//
// # Overview
//
// A Broadcaster is confined to one execution context, normally the goroutine
// running a mainloop.Loop. Delivery is synchronous: Publish returns after
// every live observer of the id has been called, in subscription order.
//
//	                  Publish(id, payload)
//	                          │
//	             suspended && !urgent ?
//	              ┌───────────┴───────────┐
//	              ▼                       ▼
//	        delay queue              deliver(id)
//	   (replayed on resume)     depth++ → reap → notify
//	                                      │
//	                          depth == 0 → drain deferred
//	                          (removals, then additions)
//
// # Observers
//
// Observers are held through weak pointers. An observer that becomes
// unreachable is purged the next time its id is delivered; there is no need
// to unsubscribe on teardown. Observers must be pointers to values of
// non-zero size.
//
// # Reentrancy
//
// Observers may post, subscribe and unsubscribe while being notified. Posts
// nest immediately. Subscribe and Unsubscribe calls made while any broadcast
// is running are buffered and applied when the outermost broadcast returns,
// so the pass in progress always sees the list it started with.
//
// # Suspension
//
// SetSuspended(true) parks non-urgent posts. Posts made with WithUrgent, via
// PostUrgent, or for an allow-listed id are delivered regardless.
// SetSuspended(false) replays the parked posts in arrival order.
//
// # Failure Isolation
//
// A panicking observer is recovered, logged and reported to the configured
// PanicHandler; the remaining observers are still notified.
package event
