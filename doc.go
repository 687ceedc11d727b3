// Package goSignIn orchestrates one-time-code sign-in with device trust and
// biometric step-up. It is UI-agnostic: callers drive the flow through
// [Engine] operations and render whatever [Attempt] snapshot comes back.
//
// A sign-in moves through Idle, ChallengeIssued, Verifying, StepUp,
// Whitelisting and Authenticated, with LockedOut and Failed as the failure
// states. Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]; operations on the same identity are
// serialised, different identities run in parallel.
//
// # Architecture boundaries
//
// goSignIn is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy and value types. Challenge bookkeeping, attempt
// counting, cooldown windows, step-up prompting, audit dispatch and metric
// storage live under internal/ and are never exported directly.
//
// The credential backend, trust store, biometric capability, password
// verifier and clock are collaborators injected through the Builder.
//
// # What this package must NOT do
//
//   - Generate or store one-time codes (the backend owns them).
//   - Log or audit codes and passwords.
//   - Skip step-up when the trust store cannot be read.
//   - Run background goroutines other than the optional audit dispatcher.
package goSignIn
