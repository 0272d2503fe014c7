// Package dispatch executes observer notifications for the broadcaster.
//
// Every observer call runs through an Executor, which recovers panics,
// captures the stack and measures how long the call took. A panicking
// observer therefore never aborts a broadcast pass: the caller receives a
// Result describing the failure and moves on to the next observer.
//
// # Usage
//
//	dispatcher := dispatch.NewSyncDispatcher(
//	    dispatch.WithPanicHandler(func(v any, stack []byte) {
//	        log.Error().Interface("panic", v).Bytes("stack", stack).Msg("observer panicked")
//	    }),
//	)
//	result := dispatcher.Dispatch(func() { obs.OnNotification(id, payload) })
//	if result.IsPanic() {
//	    // counted and logged, keep going
//	}
//
// All calls run synchronously in the caller's goroutine. There is no timeout
// or cancellation: once a call starts it runs to completion.
package dispatch
