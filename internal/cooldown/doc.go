// Package cooldown holds per-identity resend windows.
//
// # Architecture boundaries
//
// The timer answers "how long until the next code may be issued" and nothing
// else. Callers decide what to do with the answer.
//
// # What this package must NOT do
//
//   - Start goroutines or runtime timers.
//   - Read the wall clock directly; time always comes from the injected func.
package cooldown
