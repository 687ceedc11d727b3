// Package identity defines the identity reference a sign-in attempt is keyed
// by: a delivery channel (phone or email) plus the address on that channel.
//
// # Architecture boundaries
//
// This package owns address validation and key derivation only. It is a leaf:
// it must not import goSignIn or any sibling package, so that stores and
// transports can share the same Ref type without import cycles.
package identity
