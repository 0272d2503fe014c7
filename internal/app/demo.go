package app

import (
	"fmt"
	"io"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/dshills/broadcaster/internal/event"
)

// demoObserver prints what it receives.
type demoObserver struct {
	name string
	out  io.Writer
}

func (o *demoObserver) OnNotification(id event.EventID, payload []any) {
	fmt.Fprintf(o.out, "%s <- event %d %v\n", o.name, id, payload)
}

// RunDemo walks through subscription, ordered delivery and suspension on a
// broadcaster bound to the calling goroutine, writing every notification
// and step to out.
func RunDemo(out io.Writer, log zerolog.Logger) error {
	b := event.New(event.WithLogger(WithComponent(log, "broadcaster")))
	a := &demoObserver{name: "A", out: out}
	bo := &demoObserver{name: "B", out: out}

	step := func(format string, args ...any) {
		fmt.Fprintf(out, "# "+format+"\n", args...)
	}

	step("subscribe A to 1, post 1 [x]")
	if err := b.Subscribe(a, 1); err != nil {
		return err
	}
	if _, err := b.Publish(1, []any{"x"}); err != nil {
		return err
	}

	step("subscribe A then B to 2, post 2 []")
	if err := b.Subscribe(a, 2); err != nil {
		return err
	}
	if err := b.Subscribe(bo, 2); err != nil {
		return err
	}
	if _, err := b.Publish(2, nil); err != nil {
		return err
	}

	step("suspend, post 2 [y]")
	if err := b.SetSuspended(true); err != nil {
		return err
	}
	d, err := b.Publish(2, []any{"y"})
	if err != nil {
		return err
	}
	step("delayed=%t queued=%d", d.Delayed, b.Stats().DelayQueueDepth)

	step("resume")
	if err := b.SetSuspended(false); err != nil {
		return err
	}

	st := b.Stats()
	step("posted=%d delayed=%d replayed=%d notifications=%d",
		st.EventsPosted, st.EventsDelayed, st.EventsReplayed, st.Notifications)

	runtime.KeepAlive(a)
	runtime.KeepAlive(bo)
	return nil
}
