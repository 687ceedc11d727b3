package goSignIn

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSignIn/identity"
	"github.com/MrEthical07/goSignIn/internal/challenges"
	"github.com/MrEthical07/goSignIn/password"
	"github.com/MrEthical07/goSignIn/truststore"
)

var (
	// ErrInvalidIdentity is returned for malformed phone numbers or email addresses.
	ErrInvalidIdentity = identity.ErrInvalid
	// ErrMalformedCode is returned for codes that are not exactly six digits. No attempt is counted.
	ErrMalformedCode = challenges.ErrMalformedCode
	// ErrChallengeExpired is returned when a code arrives after the challenge deadline.
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrChallengeAlreadyConsumed is returned for challenges that were accepted, discarded or superseded.
	ErrChallengeAlreadyConsumed = challenges.ErrAlreadyConsumed
	// ErrBackendUnavailable wraps credential backend and password verifier failures.
	ErrBackendUnavailable = challenges.ErrBackendUnavailable
	// ErrStoreUnavailable wraps device trust store failures.
	ErrStoreUnavailable = truststore.ErrUnavailable
	// ErrRejected is returned for a wrong code while attempts remain.
	ErrRejected = errors.New("code rejected")
	// ErrLockedOut is returned once the attempt threshold is reached.
	ErrLockedOut = errors.New("locked out")
	// ErrStepUpDeclined is returned when the biometric prompt was declined or failed.
	ErrStepUpDeclined = errors.New("step-up declined")
	// ErrWhitelistWriteFailed is returned, or attached as an outcome warning, when a trust record could not be written.
	ErrWhitelistWriteFailed = errors.New("device whitelist write failed")
	// ErrCooldownActive is returned while the resend window is open. The concrete error is *CooldownError.
	ErrCooldownActive = errors.New("cooldown active")
	// ErrNoActiveAttempt is returned when the identity has no sign-in in progress.
	ErrNoActiveAttempt = errors.New("no active sign-in attempt")
	// ErrInvalidTransition is returned when an operation is not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrIssueRateLimited is returned when the global issuance limit is exhausted.
	ErrIssueRateLimited = errors.New("challenge issuance rate limited")
	// ErrInvalidCredentials is returned when the business password check fails.
	ErrInvalidCredentials = password.ErrInvalidCredentials
	// ErrAlreadyEnrolled is returned when enrolling a business account that already has a password.
	ErrAlreadyEnrolled = password.ErrAlreadyEnrolled
	// ErrPasswordPolicy is returned when a business password does not meet the policy.
	ErrPasswordPolicy = password.ErrPolicy
	// ErrEngineNotReady is returned by a nil Engine or one missing a required collaborator.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrReceiptInvalid wraps every sign-in receipt verification failure.
	ErrReceiptInvalid = errors.New("invalid sign-in receipt")
)

// CooldownError reports how long the caller must wait before another code
// can be issued for the identity.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: retry in %s", ErrCooldownActive, e.Remaining.Round(time.Second))
}

func (e *CooldownError) Unwrap() error {
	return ErrCooldownActive
}
