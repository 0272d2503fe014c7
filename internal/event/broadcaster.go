package event

import (
	"reflect"
	"slices"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dshills/broadcaster/internal/event/dispatch"
	"github.com/dshills/broadcaster/internal/mainloop"
)

// Broadcaster delivers posts to weakly held observers on a single execution
// context.
//
// Every mutating operation must run on the designated context. Delivery is
// synchronous and reentrant: observers may post, subscribe and unsubscribe
// from inside OnNotification. Table changes requested during a broadcast are
// buffered and applied, removals first, once the outermost broadcast
// returns.
//
// Suspended, Depth and Stats are safe to call from any goroutine.
type Broadcaster struct {
	exec         ExecContext
	log          zerolog.Logger
	metrics      Metrics
	panicHandler PanicHandler
	dispatcher   *dispatch.SyncDispatcher

	// Confined to the execution context.
	table   *registry
	pending deferredQueues
	delayed delayQueue
	allowed map[EventID]struct{}
	depth   int

	suspended atomic.Bool

	// Mirrors for cross-goroutine readers.
	depthGauge   atomic.Int64
	delayedGauge atomic.Int64
	tableGauge   atomic.Int64

	// Stats
	eventsPosted    atomic.Uint64
	eventsDelayed   atomic.Uint64
	eventsReplayed  atomic.Uint64
	eventsRejected  atomic.Uint64
	notifications   atomic.Uint64
	observerPanics  atomic.Uint64
	observersReaped atomic.Uint64
}

// New creates a broadcaster. Without WithExecContext it is bound to the
// goroutine that calls New.
func New(opts ...Option) *Broadcaster {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	exec := cfg.exec
	if exec == nil {
		exec = mainloop.BindCurrent()
	}

	b := &Broadcaster{
		exec:         exec,
		log:          cfg.log,
		metrics:      cfg.metrics,
		panicHandler: cfg.panicHandler,
		dispatcher:   dispatch.NewSyncDispatcher(),
		table:        newRegistry(),
	}
	b.allowed = toSet(cfg.allowList)
	b.suspended.Store(cfg.suspended)
	b.syncGauges()
	return b
}

// Subscribe registers o for id. Subscribing twice is a no-op. During a
// broadcast the request is buffered until dispatch depth returns to zero.
func (b *Broadcaster) Subscribe(o Observer, id EventID) error {
	if !b.exec.IsCurrent() {
		return &ContextError{Op: "subscribe"}
	}
	h, err := makeHandle(o)
	if err != nil {
		return err
	}
	if b.depth > 0 {
		b.pending.queueAdd(id, h)
		b.log.Debug().Int("event", int(id)).Int("depth", b.depth).Msg("subscribe deferred")
		return nil
	}
	if b.table.add(id, h) {
		b.syncGauges()
	}
	return nil
}

// Unsubscribe removes o from id. Removing an absent observer is a no-op.
// During a broadcast the request is buffered until dispatch depth returns
// to zero, so o still receives the rest of the current pass.
func (b *Broadcaster) Unsubscribe(o Observer, id EventID) error {
	if !b.exec.IsCurrent() {
		return &ContextError{Op: "unsubscribe"}
	}
	h, err := makeHandle(o)
	if err != nil {
		return err
	}
	if b.depth > 0 {
		b.pending.queueRemove(id, h)
		b.log.Debug().Int("event", int(id)).Int("depth", b.depth).Msg("unsubscribe deferred")
		return nil
	}
	if b.table.remove(id, h) {
		b.syncGauges()
	}
	return nil
}

// Publish broadcasts id with payload.
//
// The post is urgent if WithUrgent is given or id is on the allow-list.
// While suspended, non-urgent posts go to the delay queue and are replayed
// when SetSuspended(false) is called. Otherwise every live observer of id is
// notified in subscription order before Publish returns.
func (b *Broadcaster) Publish(id EventID, payload []any, opts ...PostOption) (Delivery, error) {
	if !b.exec.IsCurrent() {
		b.eventsRejected.Add(1)
		b.metrics.PostRejected(id)
		return Delivery{}, &ContextError{Op: "post"}
	}

	var pc postConfig
	for _, opt := range opts {
		opt(&pc)
	}
	urgent := pc.urgent || b.isAllowed(id)

	b.eventsPosted.Add(1)
	if b.suspended.Load() && !urgent {
		b.delayed.push(id, payload)
		b.eventsDelayed.Add(1)
		b.metrics.PostAccepted(id, true)
		b.syncGauges()
		b.log.Debug().Int("event", int(id)).Int("queued", b.delayed.len()).Msg("post delayed")
		return Delivery{Delayed: true}, nil
	}

	b.metrics.PostAccepted(id, false)
	return Delivery{Delivered: b.deliver(id, payload)}, nil
}

// Post broadcasts id, subject to the suspend gate. A post made off the
// execution context is dropped and logged.
func (b *Broadcaster) Post(id EventID, payload ...any) {
	b.post(id, payload)
}

// PostUrgent broadcasts id immediately, bypassing the suspend gate.
func (b *Broadcaster) PostUrgent(id EventID, payload ...any) {
	b.post(id, payload, WithUrgent())
}

func (b *Broadcaster) post(id EventID, payload []any, opts ...PostOption) {
	if _, err := b.Publish(id, payload, opts...); err != nil {
		b.log.Error().Err(err).Int("event", int(id)).Msg("post dropped")
	}
}

// SetSuspended sets the suspend flag. Clearing it replays every delayed post
// in arrival order, each as urgent, before returning. Posts delayed during
// that replay stay queued.
func (b *Broadcaster) SetSuspended(suspended bool) error {
	if !b.exec.IsCurrent() {
		return &ContextError{Op: "set suspended"}
	}
	b.suspended.Store(suspended)
	if suspended {
		b.log.Debug().Msg("broadcasts suspended")
		return nil
	}
	b.flush()
	return nil
}

// Suspended reports the suspend flag.
func (b *Broadcaster) Suspended() bool {
	return b.suspended.Load()
}

// SetAllowList replaces the set of ids that bypass the suspend gate.
func (b *Broadcaster) SetAllowList(ids ...EventID) error {
	if !b.exec.IsCurrent() {
		return &ContextError{Op: "set allow-list"}
	}
	b.allowed = toSet(ids)
	b.log.Debug().Int("ids", len(b.allowed)).Msg("allow-list set")
	return nil
}

// ClearAllowList removes the allow-list override.
func (b *Broadcaster) ClearAllowList() error {
	if !b.exec.IsCurrent() {
		return &ContextError{Op: "clear allow-list"}
	}
	b.allowed = nil
	return nil
}

// AllowList returns the allow-listed ids, sorted. It must be called on the
// execution context.
func (b *Broadcaster) AllowList() []EventID {
	ids := make([]EventID, 0, len(b.allowed))
	for id := range b.allowed {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Reset drops every subscription, buffered request, delayed post and the
// allow-list. The suspend flag is kept. Reset is refused while a broadcast
// is in progress.
func (b *Broadcaster) Reset() error {
	if !b.exec.IsCurrent() {
		return &ContextError{Op: "reset"}
	}
	if b.depth > 0 {
		return ErrDispatchInProgress
	}
	dropped := b.delayed.len()
	b.table.clear()
	b.pending.clear()
	b.delayed.clear()
	b.allowed = nil
	b.syncGauges()
	b.log.Info().Int("dropped_posts", dropped).Msg("broadcaster reset")
	return nil
}

// Depth returns the current broadcast nesting level.
func (b *Broadcaster) Depth() int {
	return int(b.depthGauge.Load())
}

// ObserverCount returns the number of live observers for id. It must be
// called on the execution context.
func (b *Broadcaster) ObserverCount(id EventID) int {
	return b.table.countLive(id)
}

// EventIDs returns every id with a table entry, sorted. It must be called on
// the execution context.
func (b *Broadcaster) EventIDs() []EventID {
	return b.table.ids()
}

// Stats returns broadcaster statistics.
func (b *Broadcaster) Stats() Stats {
	ds := b.dispatcher.Stats()
	return Stats{
		ObserverTime:    ds.TotalDuration,
		SlowestObserver: ds.MaxDuration,
		EventsPosted:    b.eventsPosted.Load(),
		EventsDelayed:   b.eventsDelayed.Load(),
		EventsReplayed:  b.eventsReplayed.Load(),
		EventsRejected:  b.eventsRejected.Load(),
		Notifications:   b.notifications.Load(),
		ObserverPanics:  b.observerPanics.Load(),
		ObserversReaped: b.observersReaped.Load(),
		ActiveObservers: int(b.tableGauge.Load()),
		DelayQueueDepth: int(b.delayedGauge.Load()),
		DispatchDepth:   int(b.depthGauge.Load()),
		Suspended:       b.suspended.Load(),
	}
}

// deliver notifies the live observers of id and returns how many were
// called. The observer list is snapshotted first, so table changes made by
// observers never affect the current pass.
func (b *Broadcaster) deliver(id EventID, payload []any) int {
	b.enter()
	defer b.leave()

	if n := b.table.reap(id); n > 0 {
		b.observersReaped.Add(uint64(n))
		b.metrics.ObserversReaped(id, n)
		b.syncGauges()
		b.log.Debug().Int("event", int(id)).Int("reaped", n).Msg("dead observers purged")
	}

	observers := b.table.snapshot(id)
	for _, o := range observers {
		result := b.dispatcher.Dispatch(func() {
			o.OnNotification(id, payload)
		})
		b.notifications.Add(1)
		b.metrics.ObserverNotified(id, result.Duration, result.Panicked)
		if result.Panicked {
			b.observerPanics.Add(1)
			b.log.Error().
				Err(&PanicError{ID: id, Value: result.PanicValue, Stack: string(result.PanicStack)}).
				Int("event", int(id)).
				Str("observer", typeName(o)).
				Msg("observer panicked")
			b.handlePanic(id, o, result.PanicValue)
		}
	}
	return len(observers)
}

// handlePanic calls the panic handler, containing any panic it raises.
func (b *Broadcaster) handlePanic(id EventID, o Observer, recovered any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Int("event", int(id)).Msg("panic handler panicked")
		}
	}()
	b.panicHandler(id, o, recovered)
}

func (b *Broadcaster) enter() {
	b.depth++
	b.syncDepth()
}

// leave closes one broadcast level and drains the deferred queues when the
// outermost one ends. It runs deferred, so depth is restored even if an
// observer panic escapes.
func (b *Broadcaster) leave() {
	b.depth--
	b.syncDepth()
	if b.depth == 0 && b.pending.len() > 0 {
		b.drain()
	}
}

// drain applies buffered removals, then buffered additions.
// Additions whose observer was collected in the meantime are skipped.
func (b *Broadcaster) drain() {
	removes, adds := b.pending.take()
	for _, op := range removes {
		b.table.remove(op.id, op.h)
	}
	for _, op := range adds {
		v := op.h.value()
		if v == nil {
			continue
		}
		if _, ok := v.(Observer); !ok {
			panic(&ObserverTypeError{ID: op.id, Value: v})
		}
		b.table.add(op.id, op.h)
	}
	b.syncGauges()
	b.log.Debug().Int("removed", len(removes)).Int("added", len(adds)).Msg("deferred changes applied")
}

// flush replays the delay queue as it stood when called.
func (b *Broadcaster) flush() {
	posts := b.delayed.take()
	if len(posts) == 0 {
		return
	}
	b.syncGauges()
	b.log.Debug().Int("posts", len(posts)).Msg("replaying delayed posts")
	for _, p := range posts {
		b.eventsReplayed.Add(1)
		b.metrics.PostReplayed(p.id)
		b.deliver(p.id, p.payload)
	}
}

func (b *Broadcaster) isAllowed(id EventID) bool {
	_, ok := b.allowed[id]
	return ok
}

func (b *Broadcaster) syncDepth() {
	b.depthGauge.Store(int64(b.depth))
	b.metrics.SetDispatchDepth(b.depth)
}

func (b *Broadcaster) syncGauges() {
	b.tableGauge.Store(int64(b.table.total()))
	b.delayedGauge.Store(int64(b.delayed.len()))
	b.metrics.SetTableSize(b.table.total())
	b.metrics.SetDelayQueueDepth(b.delayed.len())
}

func toSet(ids []EventID) map[EventID]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[EventID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func typeName(o Observer) string {
	return reflect.TypeOf(o).String()
}
