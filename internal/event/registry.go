package event

import "slices"

// registry is the observer table: event id to an ordered list of weak
// observer handles. Insertion order is delivery order.
//
// A registry is confined to the broadcaster's execution context and is not
// safe for concurrent use.
type registry struct {
	subs map[EventID][]handle
	size int
}

// newRegistry creates an empty observer table.
func newRegistry() *registry {
	return &registry{
		subs: make(map[EventID][]handle),
	}
}

// add appends h to the list for id.
// It is a no-op if a live entry for the same observer is already present.
func (r *registry) add(id EventID, h handle) bool {
	if r.contains(id, h) {
		return false
	}
	r.subs[id] = append(r.subs[id], h)
	r.size++
	return true
}

// contains reports whether a live entry for h exists under id.
// Dead entries never count as present.
func (r *registry) contains(id EventID, h handle) bool {
	for _, e := range r.subs[id] {
		if e == h && e.alive() {
			return true
		}
	}
	return false
}

// remove deletes the entry for h under id. Absent entries are a no-op.
func (r *registry) remove(id EventID, h handle) bool {
	subs := r.subs[id]
	i := slices.Index(subs, h)
	if i < 0 {
		return false
	}
	r.set(id, slices.Delete(subs, i, i+1))
	r.size--
	return true
}

// reap purges dead entries for id and returns how many were removed.
func (r *registry) reap(id EventID) int {
	subs, ok := r.subs[id]
	if !ok {
		return 0
	}
	live := slices.DeleteFunc(subs, func(h handle) bool { return !h.alive() })
	removed := len(subs) - len(live)
	if removed > 0 {
		r.set(id, live)
		r.size -= removed
	}
	return removed
}

// snapshot returns strong references to the live observers for id, in order.
// Holding the snapshot keeps those observers alive for one delivery pass.
func (r *registry) snapshot(id EventID) []Observer {
	subs := r.subs[id]
	if len(subs) == 0 {
		return nil
	}
	result := make([]Observer, 0, len(subs))
	for _, h := range subs {
		if o, ok := h.observer(); ok {
			result = append(result, o)
		}
	}
	return result
}

// countLive returns the number of live observers for id.
func (r *registry) countLive(id EventID) int {
	n := 0
	for _, h := range r.subs[id] {
		if h.alive() {
			n++
		}
	}
	return n
}

// entries returns the number of entries for id, dead or alive.
func (r *registry) entries(id EventID) int {
	return len(r.subs[id])
}

// total returns the number of entries across all ids.
func (r *registry) total() int {
	return r.size
}

// ids returns every event id with at least one entry, sorted.
func (r *registry) ids() []EventID {
	ids := make([]EventID, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// clear removes every entry.
func (r *registry) clear() {
	r.subs = make(map[EventID][]handle)
	r.size = 0
}

// set stores subs for id, dropping the key once the list is empty.
func (r *registry) set(id EventID, subs []handle) {
	if len(subs) == 0 {
		delete(r.subs, id)
		return
	}
	r.subs[id] = subs
}
