// Package jwt signs and verifies short-lived sign-in receipts: compact tokens
// a downstream service can check to learn that an identity completed the
// sign-in flow, over which channel, and whether the device was trusted.
package jwt
