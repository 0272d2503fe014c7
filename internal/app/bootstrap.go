package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dshills/broadcaster/internal/config/watcher"
	"github.com/dshills/broadcaster/internal/event"
	"github.com/dshills/broadcaster/internal/httpapi"
	"github.com/dshills/broadcaster/internal/mainloop"
	"github.com/dshills/broadcaster/internal/metrics"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app       *Application
	initOrder []string
}

// newBootstrapper creates a new bootstrapper for the application.
func newBootstrapper(app *Application) *bootstrapper {
	return &bootstrapper{
		app:       app,
		initOrder: make([]string, 0, 5),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []func() error{
		b.initMetrics,
		b.initLoop,
		b.initBroadcaster,
		b.initHTTP,
		b.initWatcher,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			b.cleanup()
			return err
		}
	}
	return nil
}

// initMetrics creates the registry and the broadcaster's collector.
func (b *bootstrapper) initMetrics() error {
	reg := b.app.opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	b.app.registry = reg

	if b.app.Config().Metrics.Enabled {
		c, err := metrics.New(reg)
		if err != nil {
			return &InitError{Component: "metrics", Err: err}
		}
		b.app.collector = c
	}
	b.initOrder = append(b.initOrder, "metrics")
	return nil
}

// initLoop creates the designated execution context. It does not run yet.
func (b *bootstrapper) initLoop() error {
	b.app.loop = mainloop.New(
		mainloop.WithQueueSize(b.app.Config().Broadcast.LoopQueueSize),
		mainloop.WithLogger(WithComponent(b.app.logging.Logger, "mainloop")),
	)
	b.initOrder = append(b.initOrder, "loop")
	return nil
}

// initBroadcaster creates the broadcaster bound to the loop.
func (b *bootstrapper) initBroadcaster() error {
	cfg := b.app.Config()
	opts := []event.Option{
		event.WithExecContext(b.app.loop),
		event.WithLogger(WithComponent(b.app.logging.Logger, "broadcaster")),
		event.WithAllowList(toEventIDs(cfg.Broadcast.AllowList)...),
		event.WithSuspended(cfg.Broadcast.StartSuspended),
	}
	if b.app.collector != nil {
		opts = append(opts, event.WithMetrics(b.app.collector))
	}
	b.app.bus = event.New(opts...)
	b.app.tracer = newTraceObserver(WithComponent(b.app.logging.Logger, "trace"))
	b.initOrder = append(b.initOrder, "broadcaster")
	return nil
}

// initHTTP builds the control surface router.
func (b *bootstrapper) initHTTP() error {
	cfg := b.app.Config()
	opts := []httpapi.Option{
		httpapi.WithLogger(WithComponent(b.app.logging.Logger, "http")),
		httpapi.WithRequestTimeout(b.app.opts.RequestTimeout),
	}
	if len(cfg.HTTP.AllowedOrigins) > 0 {
		opts = append(opts, httpapi.WithAllowedOrigins(cfg.HTTP.AllowedOrigins...))
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, httpapi.WithMetrics(b.app.registry, b.app.registry, cfg.Metrics.Path))
	}

	h, err := httpapi.NewMux(b.app, opts...)
	if err != nil {
		return &InitError{Component: "http", Err: err}
	}
	b.app.handler = h
	b.initOrder = append(b.initOrder, "http")
	return nil
}

// initWatcher creates the config watcher when a config file is in use.
func (b *bootstrapper) initWatcher() error {
	if b.app.opts.ConfigPath == "" {
		return nil
	}
	w, err := watcher.New(b.app.opts.ConfigPath, b.app.onConfigChange,
		watcher.WithLogger(WithComponent(b.app.logging.Logger, "watcher")))
	if err != nil {
		return &InitError{Component: "watcher", Err: err}
	}
	b.app.watcher = w
	b.initOrder = append(b.initOrder, "watcher")
	return nil
}

// cleanup releases components in reverse initialization order.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		switch b.initOrder[i] {
		case "watcher":
			_ = b.app.watcher.Close()
			b.app.watcher = nil
		case "http":
			b.app.handler = nil
		case "broadcaster":
			b.app.bus = nil
			b.app.tracer = nil
		case "loop":
			b.app.loop = nil
		case "metrics":
			if b.app.collector != nil {
				b.app.collector.Unregister(b.app.registry)
				b.app.collector = nil
			}
		}
	}
}
