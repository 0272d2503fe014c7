// Package app provides the main application structure and coordination
// for the broadcaster service. It wires the loop, the broadcaster, metrics,
// the control surface and config reload together and manages their
// lifecycle.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/dshills/broadcaster/internal/config"
	"github.com/dshills/broadcaster/internal/config/watcher"
	"github.com/dshills/broadcaster/internal/event"
	"github.com/dshills/broadcaster/internal/event/events"
	"github.com/dshills/broadcaster/internal/mainloop"
	"github.com/dshills/broadcaster/internal/metrics"
)

// Application is the central coordinator for all service components.
type Application struct {
	mu  sync.RWMutex
	cfg config.Config

	// Core infrastructure
	logging  *Logging
	log      zerolog.Logger
	registry *prometheus.Registry

	// Broadcast components
	loop      *mainloop.Loop
	bus       *event.Broadcaster
	collector *metrics.Collector
	tracer    *traceObserver
	traced    traceSet

	// Outer surfaces
	handler http.Handler
	watcher *watcher.Watcher

	// State
	running atomic.Bool
	ready   atomic.Bool
	addr    atomic.Pointer[string]

	opts Options
}

// Options configures the application.
type Options struct {
	// ConfigPath is the file the configuration was loaded from. When set,
	// it is watched and reloaded on change.
	ConfigPath string

	// Registry receives every collector. Defaults to a new registry.
	Registry *prometheus.Registry

	// Listener overrides the configured HTTP address.
	Listener net.Listener

	// ReloadTimeout bounds how long a file change waits for the loop.
	ReloadTimeout time.Duration

	// RequestTimeout bounds how long an HTTP request waits for the loop.
	RequestTimeout time.Duration
}

// New creates an Application from cfg. A nil logging writes to stderr.
func New(cfg config.Config, logging *Logging, opts Options) (*Application, error) {
	if logging == nil {
		var err error
		logging, err = NewLogging(cfg.Log, os.Stderr)
		if err != nil {
			return nil, &InitError{Component: "logging", Err: err}
		}
	}
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = 5 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}

	app := &Application{
		cfg:     cfg,
		logging: logging,
		log:     WithComponent(logging.Logger, "app"),
		traced:  traceSet{},
		opts:    opts,
	}

	if err := newBootstrapper(app).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Run starts the loop, the config watcher and the HTTP server, and blocks
// until ctx is cancelled or the server fails. Run may be called once.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	loopCtx, cancelLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- app.loop.Run(loopCtx) }()
	stopLoop := func() {
		cancelLoop()
		<-loopDone
	}

	if err := app.loop.Call(ctx, app.setup); err != nil {
		stopLoop()
		return NewComponentError("broadcaster", "setup", err)
	}

	if app.watcher != nil {
		if err := app.watcher.Start(); err != nil {
			stopLoop()
			return NewComponentError("watcher", "start", err)
		}
	}

	ln := app.opts.Listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", app.Config().HTTP.Addr)
		if err != nil {
			app.closeWatcher()
			stopLoop()
			return NewComponentError("http", "listen", err)
		}
	}

	srv := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	addr := ln.Addr().String()
	app.addr.Store(&addr)
	app.ready.Store(true)
	app.log.Info().Str("addr", addr).Msg("serving")

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = NewComponentError("http", "serve", err)
		}
	}

	app.ready.Store(false)
	app.log.Info().Msg("shutting down")

	errs := []error{runErr, app.shutdownServer(srv)}
	if err := app.closeWatcher(); err != nil {
		errs = append(errs, NewComponentError("watcher", "close", err))
	}
	stopLoop()
	app.log.Info().Msg("stopped")
	return errors.Join(errs...)
}

// setup runs on the loop before the server starts.
func (app *Application) setup() error {
	return app.traced.apply(app.bus, app.tracer, traceIDs(app.Config()))
}

func (app *Application) shutdownServer(srv *http.Server) error {
	timeout := time.Duration(app.Config().HTTP.ShutdownTimeoutSec) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrShutdownTimeout
		}
		return NewComponentError("http", "shutdown", err)
	}
	return nil
}

func (app *Application) closeWatcher() error {
	if app.watcher == nil {
		return nil
	}
	return app.watcher.Close()
}

// Config returns the configuration currently in effect.
func (app *Application) Config() config.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.cfg
}

func (app *Application) setConfig(cfg config.Config) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.cfg = cfg
}

// Addr returns the address the HTTP server listens on, or "" before Run.
func (app *Application) Addr() string {
	if p := app.addr.Load(); p != nil {
		return *p
	}
	return ""
}

// Handler returns the control surface router.
func (app *Application) Handler() http.Handler {
	return app.handler
}

// Registry returns the Prometheus registry holding every collector.
func (app *Application) Registry() *prometheus.Registry {
	return app.registry
}

// Running reports whether Run has been called.
func (app *Application) Running() bool {
	return app.running.Load()
}

// traceIDs returns the configured trace ids plus every service id, sorted.
func traceIDs(cfg config.Config) []event.EventID {
	ids := toEventIDs(cfg.Broadcast.TraceIDs)
	for id := range events.Names {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func toEventIDs(ids []int) []event.EventID {
	out := make([]event.EventID, len(ids))
	for i, id := range ids {
		out[i] = event.EventID(id)
	}
	return out
}
