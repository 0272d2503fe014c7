package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/broadcaster/internal/event"
)

type nopObserver struct{ calls int }

func (o *nopObserver) OnNotification(event.EventID, []any) { o.calls++ }

type panickyObserver struct{ name string }

func (o *panickyObserver) OnNotification(event.EventID, []any) { panic(o.name) }

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err, "duplicate registration fails")
	assert.Panics(t, func() { MustNew(reg) })
}

func TestCollector_Counters(t *testing.T) {
	c := MustNew(prometheus.NewRegistry())

	c.PostAccepted(1, false)
	c.PostAccepted(1, true)
	c.PostAccepted(1, true)
	c.PostRejected(2)
	c.PostReplayed(1)
	c.ObserverNotified(1, time.Millisecond, false)
	c.ObserverNotified(1, time.Millisecond, true)
	c.ObserversReaped(3, 4)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.postsTotal.WithLabelValues("1", OutcomeDelivered)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.postsTotal.WithLabelValues("1", OutcomeDelayed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.postsTotal.WithLabelValues("2", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.postsTotal.WithLabelValues("1", OutcomeReplayed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.notificationsTotal.WithLabelValues("1", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.notificationsTotal.WithLabelValues("1", "panic")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.reapedTotal.WithLabelValues("3")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.notifyDuration))
}

func TestCollector_Gauges(t *testing.T) {
	c := MustNew(prometheus.NewRegistry())

	c.SetDispatchDepth(2)
	c.SetDelayQueueDepth(5)
	c.SetTableSize(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.dispatchDepth))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.delayQueueDepth))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.tableSize))
}

func TestCollector_WiredIntoBroadcaster(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := MustNew(reg)
	b := event.New(event.WithMetrics(c))

	ok := &nopObserver{}
	bad := &panickyObserver{name: "bad"}
	require.NoError(t, b.Subscribe(bad, 1))
	require.NoError(t, b.Subscribe(ok, 1))

	b.Post(1, "x")
	require.NoError(t, b.SetSuspended(true))
	b.Post(1, "y")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.delayQueueDepth))
	require.NoError(t, b.SetSuspended(false))

	expected := `
# HELP broadcaster_posts_total Total number of posts by event id and outcome
# TYPE broadcaster_posts_total counter
broadcaster_posts_total{event="1",outcome="delayed"} 1
broadcaster_posts_total{event="1",outcome="delivered"} 1
broadcaster_posts_total{event="1",outcome="replayed"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "broadcaster_posts_total"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.notificationsTotal.WithLabelValues("1", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.notificationsTotal.WithLabelValues("1", "panic")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.delayQueueDepth))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.dispatchDepth))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.tableSize))
	assert.Equal(t, 2, ok.calls)
}

func TestCollector_Unregister(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.Unregister(reg)

	_, err = New(reg)
	assert.NoError(t, err)
}
