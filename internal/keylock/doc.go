// Package keylock serialises work per string key.
//
// The sign-in engine takes one key per identity so that two concurrent
// operations for the same account never race two challenges, while
// different accounts proceed in parallel.
//
// # What this package must NOT do
//
//   - Hold a global lock across a caller's critical section.
//   - Ignore context cancellation while waiting.
package keylock
