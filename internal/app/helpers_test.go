package app

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dshills/broadcaster/internal/config"
	"github.com/dshills/broadcaster/internal/event"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type received struct {
	id      event.EventID
	payload []any
}

// collector records notifications from the loop goroutine.
type collector struct {
	mu   sync.Mutex
	seen []received
}

func (c *collector) OnNotification(id event.EventID, payload []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, received{id: id, payload: append([]any(nil), payload...)})
}

func (c *collector) all() []received {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]received(nil), c.seen...)
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Log.Format = "json"
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.HTTP.ShutdownTimeoutSec = 2
	return cfg
}

type testApp struct {
	*Application
	logs *syncBuffer
}

// newTestApp builds an application listening on a random local port.
func newTestApp(t *testing.T, cfg config.Config, opts Options) *testApp {
	t.Helper()

	logs := &syncBuffer{}
	logging, err := NewLogging(cfg.Log, logs)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	opts.Listener = ln
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	app, err := New(cfg, logging, opts)
	require.NoError(t, err)
	return &testApp{Application: app, logs: logs}
}

// start runs the application until the test ends.
func (a *testApp) start(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("application did not stop")
		}
	})

	require.Eventually(t, a.Ready, 2*time.Second, 5*time.Millisecond)
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}
