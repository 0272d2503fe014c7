package event

import "time"

// Metrics receives broadcaster measurements. PostRejected may be called from
// any goroutine; every other method runs on the broadcaster's execution
// context.
type Metrics interface {
	// PostAccepted records a post that was delivered or delayed.
	PostAccepted(id EventID, delayed bool)

	// PostRejected records a post refused off the execution context.
	PostRejected(id EventID)

	// PostReplayed records a delayed post replayed on resume.
	PostReplayed(id EventID)

	// ObserverNotified records one observer call.
	ObserverNotified(id EventID, took time.Duration, panicked bool)

	// ObserversReaped records dead entries purged from an id's list.
	ObserversReaped(id EventID, n int)

	// SetDispatchDepth reports the broadcast nesting level.
	SetDispatchDepth(n int)

	// SetDelayQueueDepth reports the number of delayed posts.
	SetDelayQueueDepth(n int)

	// SetTableSize reports the number of observer table entries.
	SetTableSize(n int)
}

type nopMetrics struct{}

func (nopMetrics) PostAccepted(EventID, bool)                    {}
func (nopMetrics) PostRejected(EventID)                          {}
func (nopMetrics) PostReplayed(EventID)                          {}
func (nopMetrics) ObserverNotified(EventID, time.Duration, bool) {}
func (nopMetrics) ObserversReaped(EventID, int)                  {}
func (nopMetrics) SetDispatchDepth(int)                          {}
func (nopMetrics) SetDelayQueueDepth(int)                        {}
func (nopMetrics) SetTableSize(int)                              {}
