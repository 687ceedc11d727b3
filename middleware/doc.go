// Package middleware guards HTTP handlers with the signed receipts the
// sign-in engine mints on success.
//
// # Guards
//
//   - [RequireReceipt] accepts any valid receipt.
//   - [RequireVerifiedDevice] also requires a trusted device or a confirmed
//     biometric step-up.
//
// Both read the Authorization header, call VerifyReceipt and put the claims
// in the request context for [ReceiptFromContext].
//
// # What this package must NOT do
//
//   - Parse or sign JWTs directly. Verification is delegated to the engine.
//   - Touch the trust store or attempt state.
package middleware
