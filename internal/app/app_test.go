package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/broadcaster/internal/event"
	"github.com/dshills/broadcaster/internal/event/events"
)

func TestApplication_PublishDelivers(t *testing.T) {
	app := newTestApp(t, testConfig(), Options{})
	app.start(t)
	ctx := testCtx(t)

	obs := &collector{}
	require.NoError(t, app.Subscribe(ctx, obs, 5))

	d, err := app.Publish(ctx, 5, []any{"hello"}, false)
	require.NoError(t, err)
	assert.Equal(t, event.Delivery{Delivered: 1}, d)
	assert.Equal(t, []received{{id: 5, payload: []any{"hello"}}}, obs.all())
	assert.Equal(t, uint64(1), app.Stats().EventsPosted)

	require.NoError(t, app.Unsubscribe(ctx, obs, 5))
	d, err = app.Publish(ctx, 5, nil, false)
	require.NoError(t, err)
	assert.Zero(t, d.Delivered)
}

func TestApplication_SuspendAndResume(t *testing.T) {
	app := newTestApp(t, testConfig(), Options{})
	app.start(t)
	ctx := testCtx(t)

	obs := &collector{}
	require.NoError(t, app.Subscribe(ctx, obs, 5))
	require.NoError(t, app.Subscribe(ctx, obs, 7))

	require.NoError(t, app.SetSuspended(ctx, true))

	d, err := app.Publish(ctx, 5, []any{"late"}, false)
	require.NoError(t, err)
	assert.True(t, d.Delayed)

	d, err = app.Publish(ctx, 7, []any{"now"}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Delivered)
	assert.Equal(t, []received{{id: 7, payload: []any{"now"}}}, obs.all())

	require.NoError(t, app.SetSuspended(ctx, false))
	assert.Equal(t, []received{
		{id: 7, payload: []any{"now"}},
		{id: 5, payload: []any{"late"}},
	}, obs.all())
	assert.Equal(t, uint64(1), app.Stats().EventsReplayed)
}

func TestApplication_StartSuspendedWithAllowList(t *testing.T) {
	cfg := testConfig()
	cfg.Broadcast.StartSuspended = true
	cfg.Broadcast.AllowList = []int{9}
	app := newTestApp(t, cfg, Options{})
	app.start(t)
	ctx := testCtx(t)

	obs := &collector{}
	require.NoError(t, app.Subscribe(ctx, obs, 9))
	require.NoError(t, app.Subscribe(ctx, obs, 10))

	d, err := app.Publish(ctx, 9, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Delivered)

	d, err = app.Publish(ctx, 10, nil, false)
	require.NoError(t, err)
	assert.True(t, d.Delayed)

	ids, err := app.AllowList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []event.EventID{9}, ids)
}

func TestApplication_ServiceEvents(t *testing.T) {
	app := newTestApp(t, testConfig(), Options{})
	app.start(t)
	ctx := testCtx(t)

	obs := &collector{}
	require.NoError(t, app.Subscribe(ctx, obs, events.SuspendChanged))
	require.NoError(t, app.Subscribe(ctx, obs, events.AllowListChanged))

	require.NoError(t, app.SetSuspended(ctx, true))
	require.NoError(t, app.SetAllowList(ctx, []event.EventID{4, 2}))
	require.NoError(t, app.ClearAllowList(ctx))

	seen := obs.all()
	require.Len(t, seen, 3, "service events bypass the suspend gate")

	p, ok := events.AsSuspendChanged(seen[0].payload)
	require.True(t, ok)
	assert.True(t, p.Suspended)

	a, ok := events.AsAllowListChanged(seen[1].payload)
	require.True(t, ok)
	assert.Equal(t, []event.EventID{2, 4}, a.IDs)

	a, ok = events.AsAllowListChanged(seen[2].payload)
	require.True(t, ok)
	assert.Empty(t, a.IDs)
}

func TestApplication_TraceObserverLogs(t *testing.T) {
	cfg := testConfig()
	cfg.Broadcast.TraceIDs = []int{3}
	app := newTestApp(t, cfg, Options{})
	app.start(t)
	ctx := testCtx(t)

	d, err := app.Publish(ctx, 3, []any{1, 2}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Delivered, "tracer is the only observer")

	logs := app.logs.String()
	assert.Contains(t, logs, `"component":"trace"`)
	assert.Contains(t, logs, `"payload_len":2`)
}

func TestApplication_OffLoopCallsAreRejected(t *testing.T) {
	app := newTestApp(t, testConfig(), Options{})
	app.start(t)

	_, err := app.bus.Publish(1, nil)
	assert.ErrorIs(t, err, event.ErrWrongExecutionContext)
	assert.Equal(t, uint64(1), app.Stats().EventsRejected)
}

func TestApplication_RunTwice(t *testing.T) {
	app := newTestApp(t, testConfig(), Options{})
	app.start(t)

	err := app.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestApplication_ReadyLifecycle(t *testing.T) {
	app := newTestApp(t, testConfig(), Options{})
	assert.False(t, app.Ready())
	assert.Empty(t, app.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	require.Eventually(t, app.Ready, 2*time.Second, 5*time.Millisecond)
	assert.NotEmpty(t, app.Addr())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.False(t, app.Ready())

	_, err := app.Publish(context.Background(), 1, nil, false)
	assert.Error(t, err, "loop is stopped")
}

func TestApplication_HTTPRoundTrip(t *testing.T) {
	app := newTestApp(t, testConfig(), Options{})
	app.start(t)
	ctx := testCtx(t)

	obs := &collector{}
	require.NoError(t, app.Subscribe(ctx, obs, 11))

	base := "http://" + app.Addr()
	resp, err := http.Post(base+"/events/11", "application/json", strings.NewReader(`{"payload":["a"]}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"delivered":1`)
	assert.Equal(t, []received{{id: 11, payload: []any{"a"}}}, obs.all())

	resp, err = http.Get(base + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "broadcaster_posts_total")
	assert.Contains(t, string(body), "broadcaster_http_requests_total")
}

func TestApplication_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	reg := prometheus.NewRegistry()
	app := newTestApp(t, cfg, Options{Registry: reg})

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
	assert.Nil(t, app.collector)
}

func TestNew_DuplicateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	newTestApp(t, testConfig(), Options{Registry: reg})

	logging, err := NewLogging(testConfig().Log, io.Discard)
	require.NoError(t, err)
	_, err = New(testConfig(), logging, Options{Registry: reg})
	require.Error(t, err)

	var initErr *InitError
	require.True(t, errors.As(err, &initErr))
	assert.Equal(t, "metrics", initErr.Component)
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestApplication_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broadcaster.toml")
	writeConfig(t, path, `
[log]
level = "info"
format = "json"

[broadcast]
allow_list = [1]
`)

	cfg := testConfig()
	cfg.Broadcast.AllowList = []int{1}
	app := newTestApp(t, cfg, Options{ConfigPath: path})
	app.start(t)
	ctx := testCtx(t)

	obs := &collector{}
	require.NoError(t, app.Subscribe(ctx, obs, events.ConfigReloaded))
	require.NoError(t, app.Subscribe(ctx, obs, events.ConfigReloadFailed))

	writeConfig(t, path, `
[log]
level = "debug"
format = "json"

[broadcast]
allow_list = [2, 3]
trace_ids = [8]
`)
	require.NoError(t, app.Reload(ctx))

	ids, err := app.AllowList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []event.EventID{2, 3}, ids)
	assert.Equal(t, zerolog.DebugLevel, app.logging.Level())
	assert.Equal(t, []int{8}, app.Config().Broadcast.TraceIDs)
	assert.Equal(t, "127.0.0.1:0", app.Config().HTTP.Addr, "listener settings keep running values")

	require.NotEmpty(t, obs.all())
	reloaded, ok := events.AsConfigReloaded(obs.all()[0].payload)
	require.True(t, ok)
	assert.Equal(t, "debug", reloaded.LogLevel)
	assert.Equal(t, []event.EventID{2, 3}, reloaded.AllowList)

	d, err := app.Publish(ctx, 8, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Delivered, "tracer follows trace_ids")
}

func TestApplication_ReloadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broadcaster.toml")
	writeConfig(t, path, "[broadcast]\nallow_list = [1]\n")

	cfg := testConfig()
	cfg.Broadcast.AllowList = []int{1}
	app := newTestApp(t, cfg, Options{ConfigPath: path})
	app.start(t)
	ctx := testCtx(t)

	obs := &collector{}
	require.NoError(t, app.Subscribe(ctx, obs, events.ConfigReloadFailed))

	writeConfig(t, path, "[log]\nlevel = \"loud\"\n")
	require.Error(t, app.Reload(ctx))

	ids, err := app.AllowList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []event.EventID{1}, ids, "previous configuration kept")

	seen := obs.all()
	require.Len(t, seen, 1)
	failed, ok := events.AsConfigReloadFailed(seen[0].payload)
	require.True(t, ok)
	assert.Equal(t, path, failed.Path)
	assert.Error(t, failed.Err)
}

func TestApplication_ReloadWithoutFile(t *testing.T) {
	app := newTestApp(t, testConfig(), Options{})
	assert.ErrorIs(t, app.Reload(context.Background()), ErrNoConfigFile)
}

func TestApplication_WatcherTriggersReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broadcaster.yaml")
	writeConfig(t, path, "broadcast:\n  allow_list: [1]\n")

	cfg := testConfig()
	cfg.Broadcast.AllowList = []int{1}
	app := newTestApp(t, cfg, Options{ConfigPath: path})
	app.start(t)

	writeConfig(t, path, "broadcast:\n  allow_list: [5]\n")

	require.Eventually(t, func() bool {
		ids, err := app.AllowList(context.Background())
		return err == nil && len(ids) == 1 && ids[0] == 5
	}, 3*time.Second, 20*time.Millisecond)
}
