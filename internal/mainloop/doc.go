// Package mainloop provides the designated execution context for a broadcaster.
//
// The broadcaster is not guarded by locks. Instead every entry point checks
// that it runs on one designated goroutine, the analog of a UI main thread.
// This package supplies that check in two forms:
//
//   - Affinity pins the check to whichever goroutine called BindCurrent.
//   - Loop owns a goroutine, runs submitted tasks on it in order, and lets
//     producers on other goroutines hop onto it with Post or Call.
//
// Both satisfy event.ExecContext.
package mainloop
