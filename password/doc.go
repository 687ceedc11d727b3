// Package password implements Argon2id hashing, the business password
// composition policy, and a local password verifier.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters.
// [LocalVerifier] re-hashes them after a successful check when its source is a
// [CredentialStore].
//
// # Enrolment
//
// [LocalVerifier.EnrollPassword] writes the first hash for an identity and
// refuses to overwrite an existing one. [BusinessPolicy] is checked by the
// engine before enrolment, not here.
//
// # Architecture boundaries
//
// [LocalVerifier] is one implementation of the engine's password check. A
// hosted identity provider can replace it entirely.
//
// # What this package must NOT do
//
//   - Log plaintext passwords or hash parameters at runtime.
//   - Import goSignIn.
package password
