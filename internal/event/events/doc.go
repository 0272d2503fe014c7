// Package events defines the event ids the broadcaster service posts about
// itself, with their payload types.
//
// Service ids are negative so they never collide with host-assigned ids,
// which are conventionally non-negative. Each id carries a single payload
// element of the documented type:
//
//	b.PostUrgent(events.ConfigReloaded, events.ConfigReloadedPayload{Path: p})
//
// Observers recover the payload with the matching helper, e.g. AsConfigReloaded.
package events
