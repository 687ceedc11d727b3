// Package audit implements async delivery of sign-in audit events.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: one sign-in transition with masked identity, channel, flow and metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. The engine decides which
// events to emit.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on sign-in logic.
//   - Import goSignIn or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
