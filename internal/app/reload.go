package app

import (
	"context"

	"github.com/dshills/broadcaster/internal/config"
	"github.com/dshills/broadcaster/internal/config/watcher"
	"github.com/dshills/broadcaster/internal/event/events"
)

// onConfigChange runs on the watcher goroutine.
func (app *Application) onConfigChange(ev watcher.Event) {
	app.log.Debug().Str("path", ev.Path).Stringer("op", ev.Op).Msg("config file changed")
	if ev.Op == watcher.OpRemove {
		app.log.Warn().Str("path", ev.Path).Msg("config file removed, keeping current configuration")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), app.opts.ReloadTimeout)
	defer cancel()
	if err := app.Reload(ctx); err != nil {
		app.log.Error().Err(err).Msg("config reload failed")
	}
}

// Reload reads the config file again and applies it on the loop.
//
// The allow-list, log level and trace ids take effect immediately. The
// suspend flag is runtime state and is left alone; listener settings need
// a restart. A file that fails to load or validate is rejected as a whole.
func (app *Application) Reload(ctx context.Context) error {
	path := app.opts.ConfigPath
	if path == "" {
		return ErrNoConfigFile
	}
	cfg, loadErr := config.Load(path)
	return app.loop.Call(ctx, func() error {
		return app.applyConfig(path, cfg, loadErr)
	})
}

// applyConfig runs on the loop.
func (app *Application) applyConfig(path string, cfg config.Config, loadErr error) error {
	if loadErr != nil {
		app.log.Warn().Err(loadErr).Str("path", path).Msg("config reload rejected")
		app.bus.PostUrgent(events.ConfigReloadFailed, events.ConfigReloadFailedPayload{Path: path, Err: loadErr})
		return loadErr
	}

	prev := app.Config()
	if err := app.bus.SetAllowList(toEventIDs(cfg.Broadcast.AllowList)...); err != nil {
		return err
	}
	app.logging.SetLevel(cfg.Log.LogLevel())
	if err := app.traced.apply(app.bus, app.tracer, traceIDs(cfg)); err != nil {
		return err
	}

	if prev.HTTP.Addr != cfg.HTTP.Addr {
		app.log.Warn().
			Str("current", prev.HTTP.Addr).
			Str("configured", cfg.HTTP.Addr).
			Msg("http.addr changed; restart to apply")
	}

	// Settings that need a restart keep their running values.
	cfg.HTTP = prev.HTTP
	cfg.Metrics = prev.Metrics
	cfg.Broadcast.LoopQueueSize = prev.Broadcast.LoopQueueSize
	app.setConfig(cfg)

	level := cfg.Log.LogLevel().String()
	app.log.Info().Str("path", path).Str("log_level", level).Msg("config reloaded")
	app.bus.PostUrgent(events.ConfigReloaded, events.ConfigReloadedPayload{
		Path:      path,
		AllowList: app.bus.AllowList(),
		LogLevel:  level,
	})
	return nil
}
