package app

import (
	"github.com/rs/zerolog"

	"github.com/dshills/broadcaster/internal/event"
	"github.com/dshills/broadcaster/internal/event/events"
)

// traceObserver logs every notification it receives. The application holds
// the only strong reference, so it lives exactly as long as the application.
type traceObserver struct {
	log   zerolog.Logger
	count uint64
}

func newTraceObserver(log zerolog.Logger) *traceObserver {
	return &traceObserver{log: log}
}

// OnNotification implements event.Observer.
func (t *traceObserver) OnNotification(id event.EventID, payload []any) {
	t.count++
	ev := t.log.Info()
	if events.IsService(id) {
		ev = t.log.Debug()
	}
	ev.Int("event", int(id)).
		Str("name", events.Name(id)).
		Int("payload_len", len(payload)).
		Uint64("seen", t.count).
		Msg("notification")
}

// traceSet tracks which ids the trace observer is subscribed to.
// Only used on the loop.
type traceSet map[event.EventID]struct{}

// apply subscribes the tracer to every id in want and unsubscribes it from
// the ids it no longer wants.
func (s traceSet) apply(b *event.Broadcaster, t *traceObserver, want []event.EventID) error {
	next := make(traceSet, len(want))
	for _, id := range want {
		next[id] = struct{}{}
	}
	for id := range s {
		if _, keep := next[id]; keep {
			continue
		}
		if err := b.Unsubscribe(t, id); err != nil {
			return err
		}
		delete(s, id)
	}
	for _, id := range want {
		if _, have := s[id]; have {
			continue
		}
		if err := b.Subscribe(t, id); err != nil {
			return err
		}
		s[id] = struct{}{}
	}
	return nil
}
