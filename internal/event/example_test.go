package event_test

import (
	"fmt"

	"github.com/dshills/broadcaster/internal/event"
)

type printer struct {
	name string
}

func (p *printer) OnNotification(id event.EventID, payload []any) {
	fmt.Printf("%s got %d %v\n", p.name, id, payload)
}

// Example demonstrates ordering and the suspend gate.
func Example() {
	b := event.New()
	a := &printer{name: "A"}
	bb := &printer{name: "B"}

	_ = b.Subscribe(a, 1)
	b.Post(1, "x")

	_ = b.Subscribe(a, 2)
	_ = b.Subscribe(bb, 2)
	b.Post(2)

	_ = b.SetSuspended(true)
	b.Post(2, "y")
	fmt.Println("suspended")
	_ = b.SetSuspended(false)

	// Output:
	// A got 1 [x]
	// A got 2 []
	// B got 2 []
	// suspended
	// A got 2 [y]
	// B got 2 [y]
}

// Example_urgent shows posts that bypass a suspended broadcaster.
func Example_urgent() {
	b := event.New(event.WithSuspended(true), event.WithAllowList(3))
	p := &printer{name: "P"}
	_ = b.Subscribe(p, 3)
	_ = b.Subscribe(p, 7)

	b.Post(3, "allow-listed")
	b.PostUrgent(7, "urgent")
	d, _ := b.Publish(7, []any{"normal"})
	fmt.Println("delayed:", d.Delayed)

	// Output:
	// P got 3 [allow-listed]
	// P got 7 [urgent]
	// delayed: true
}
