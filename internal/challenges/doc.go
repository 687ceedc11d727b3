// Package challenges issues and verifies one-time code challenges over an
// opaque credential backend.
//
// # Flow
//
//	Issue   -> backend.SendCode -> supersede prior -> start cooldown
//	Verify  -> consumed? -> malformed? -> expired? -> backend.VerifyCode
//
// # Architecture boundaries
//
// The manager owns challenge identity and lifetime. Attempt counting, trust
// and step-up belong to the root engine.
//
// # What this package must NOT do
//
//   - Generate, store or log code values.
//   - Import goSignIn.
package challenges
