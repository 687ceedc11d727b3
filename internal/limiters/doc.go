// Package limiters holds the wrong-code attempt policy.
//
// # Limiters
//
//   - [AttemptPolicy] counts rejected codes per identity key and returns
//     [Retry] or [Lockout] once the threshold is reached.
//   - [MemoryCounter] keeps counts in process with a sliding window.
//   - [RedisCounter] keeps counts in Redis (INCR + EXPIRE on first hit) so
//     replicas share them. Key prefix defaults to "sia:".
//
// A counter error surfaces as [ErrCounterUnavailable]. Callers treat it as a
// lockout.
//
// # What this package must NOT do
//
//   - Import goSignIn or any sibling internal package.
//   - Decide what a lockout means for the attempt. The engine owns state.
package limiters
