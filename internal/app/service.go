package app

import (
	"context"

	"github.com/dshills/broadcaster/internal/event"
	"github.com/dshills/broadcaster/internal/event/events"
	"github.com/dshills/broadcaster/internal/httpapi"
)

var _ httpapi.Service = (*Application)(nil)

// Publish posts id on the loop and reports what happened to it.
func (app *Application) Publish(ctx context.Context, id event.EventID, payload []any, urgent bool) (event.Delivery, error) {
	var d event.Delivery
	err := app.loop.Call(ctx, func() error {
		var opts []event.PostOption
		if urgent {
			opts = append(opts, event.WithUrgent())
		}
		var err error
		d, err = app.bus.Publish(id, payload, opts...)
		return err
	})
	if err != nil {
		return event.Delivery{}, err
	}
	return d, nil
}

// SetSuspended sets the suspend flag on the loop. Resuming replays the
// delay queue before SetSuspended returns.
func (app *Application) SetSuspended(ctx context.Context, suspended bool) error {
	return app.loop.Call(ctx, func() error {
		if err := app.bus.SetSuspended(suspended); err != nil {
			return err
		}
		app.log.Info().Bool("suspended", suspended).Msg("suspend flag changed")
		app.bus.PostUrgent(events.SuspendChanged, events.SuspendChangedPayload{Suspended: suspended})
		return nil
	})
}

// AllowList returns the allow-listed ids.
func (app *Application) AllowList(ctx context.Context) ([]event.EventID, error) {
	var ids []event.EventID
	err := app.loop.Call(ctx, func() error {
		ids = app.bus.AllowList()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SetAllowList replaces the allow-list on the loop.
func (app *Application) SetAllowList(ctx context.Context, ids []event.EventID) error {
	return app.loop.Call(ctx, func() error {
		if err := app.bus.SetAllowList(ids...); err != nil {
			return err
		}
		app.bus.PostUrgent(events.AllowListChanged, events.AllowListChangedPayload{IDs: app.bus.AllowList()})
		return nil
	})
}

// ClearAllowList removes the allow-list on the loop.
func (app *Application) ClearAllowList(ctx context.Context) error {
	return app.loop.Call(ctx, func() error {
		if err := app.bus.ClearAllowList(); err != nil {
			return err
		}
		app.bus.PostUrgent(events.AllowListChanged, events.AllowListChangedPayload{})
		return nil
	})
}

// Stats returns broadcaster statistics. Safe from any goroutine.
func (app *Application) Stats() event.Stats {
	return app.bus.Stats()
}

// Ready reports whether the server is accepting requests.
func (app *Application) Ready() bool {
	return app.ready.Load()
}

// Subscribe registers o for id on the loop. The application does not keep
// o alive.
func (app *Application) Subscribe(ctx context.Context, o event.Observer, id event.EventID) error {
	return app.loop.Call(ctx, func() error {
		return app.bus.Subscribe(o, id)
	})
}

// Unsubscribe removes o from id on the loop.
func (app *Application) Unsubscribe(ctx context.Context, o event.Observer, id event.EventID) error {
	return app.loop.Call(ctx, func() error {
		return app.bus.Unsubscribe(o, id)
	})
}
