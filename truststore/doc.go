// Package truststore persists which identities have completed a full
// verification cycle on this device ("whitelisted" devices).
//
// # Implementations
//
//   - [Memory]: map guarded by an RWMutex, for tests and single-process use.
//   - [Redis]: one SET NX key per identity.
//   - [SQL]: whitelisted_devices table over database/sql (pgx driver for
//     Postgres), schema applied by [SQL.Migrate].
//
// Whitelist is idempotent in every implementation and keeps the first
// timestamp. Backend failures wrap [ErrUnavailable]; callers decide whether
// that means "untrusted" or a write warning.
//
// # What this package must NOT do
//
//   - Decide when a device becomes trusted. That is the engine's job.
//   - Import goSignIn.
package truststore
