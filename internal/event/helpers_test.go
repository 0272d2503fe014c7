package event

import (
	"time"
)

type call struct {
	id      EventID
	payload []any
}

// recorder is an Observer that records every notification and optionally
// runs a hook from inside the callback.
type recorder struct {
	name     string
	order    *[]string
	calls    []call
	onNotify func(id EventID, payload []any)
}

func newRecorder(name string, order *[]string) *recorder {
	return &recorder{name: name, order: order}
}

func (r *recorder) OnNotification(id EventID, payload []any) {
	r.calls = append(r.calls, call{id: id, payload: append([]any(nil), payload...)})
	if r.order != nil {
		*r.order = append(*r.order, r.name)
	}
	if r.onNotify != nil {
		r.onNotify(id, payload)
	}
}

func (r *recorder) payloads() [][]any {
	out := make([][]any, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.payload)
	}
	return out
}

// fakeExec is an ExecContext whose answer is set by the test.
type fakeExec struct {
	current bool
}

func (f *fakeExec) IsCurrent() bool { return f.current }

// recordingMetrics counts Metrics calls.
type recordingMetrics struct {
	accepted   int
	delayed    int
	rejected   int
	replayed   int
	notified   int
	panicked   int
	reaped     int
	maxDepth   int
	queueDepth int
	tableSize  int
}

func (m *recordingMetrics) PostAccepted(_ EventID, delayed bool) {
	m.accepted++
	if delayed {
		m.delayed++
	}
}

func (m *recordingMetrics) PostRejected(EventID) { m.rejected++ }
func (m *recordingMetrics) PostReplayed(EventID) { m.replayed++ }

func (m *recordingMetrics) ObserverNotified(_ EventID, _ time.Duration, panicked bool) {
	m.notified++
	if panicked {
		m.panicked++
	}
}

func (m *recordingMetrics) ObserversReaped(_ EventID, n int) { m.reaped += n }

func (m *recordingMetrics) SetDispatchDepth(n int) {
	if n > m.maxDepth {
		m.maxDepth = n
	}
}

func (m *recordingMetrics) SetDelayQueueDepth(n int) { m.queueDepth = n }
func (m *recordingMetrics) SetTableSize(n int)       { m.tableSize = n }
