package goSignIn

import (
	"context"
	"io"
	"time"

	"github.com/MrEthical07/goSignIn/identity"
	internalaudit "github.com/MrEthical07/goSignIn/internal/audit"
	"github.com/MrEthical07/goSignIn/internal/challenges"
	"github.com/MrEthical07/goSignIn/internal/stepup"
	"github.com/MrEthical07/goSignIn/jwt"
	"github.com/MrEthical07/goSignIn/truststore"
)

// Identity is the phone number or email address signing in.
//
// Build values with [Phone], [Email] or [identity.New]; addresses are
// normalised so that the same account always maps to the same key.
type Identity = identity.Ref

// Channel tags how codes are delivered to an [Identity].
type Channel = identity.Channel

const (
	// ChannelPhone delivers codes by SMS to an E.164 number.
	ChannelPhone = identity.ChannelPhone
	// ChannelEmail delivers codes to an email address.
	ChannelEmail = identity.ChannelEmail
)

// Phone returns a phone [Identity] with formatting characters stripped.
func Phone(number string) Identity {
	return identity.Phone(number)
}

// Email returns an email [Identity], trimmed and lower-cased.
func Email(address string) Identity {
	return identity.Email(address)
}

// CredentialBackend is the hosted identity provider that generates, delivers
// and checks one-time codes.
//
// SendCode may return an error matching [ErrInvalidIdentity] for addresses
// the provider refuses; any other error is reported as [ErrBackendUnavailable].
type CredentialBackend = challenges.Backend

// TrustStore persists which identities completed a full verification cycle
// on this device. Implementations live in package truststore.
type TrustStore = truststore.Store

// Biometric is the platform capability used for step-up.
type Biometric = stepup.Biometric

// StepUpResult is the outcome of a biometric step-up prompt.
type StepUpResult = stepup.Result

const (
	// StepUpConfirmed means the user passed the prompt.
	StepUpConfirmed = stepup.Confirmed
	// StepUpDeclined means the prompt was declined or failed.
	StepUpDeclined = stepup.Declined
	// StepUpUnavailable means no biometric hardware is present; sign-in proceeds.
	StepUpUnavailable = stepup.Unavailable
)

// PasswordVerifier checks business-account passwords. It must return an
// error matching [ErrInvalidCredentials] for a wrong password.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, ref Identity, password string) error
}

// PasswordEnroller is implemented by password verifiers that can create
// business credentials. It must return an error matching
// [ErrAlreadyEnrolled] when ref already has a password.
type PasswordEnroller interface {
	EnrollPassword(ctx context.Context, ref Identity, password string) error
}

// Clock supplies the current time. Expiry, cooldown and trust timestamps all
// read from it.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// ReceiptClaims are the verified claims of a sign-in receipt.
type ReceiptClaims = jwt.ReceiptClaims

// State is the position of a sign-in attempt in the state machine.
type State uint8

const (
	// StateIdle means no attempt is in progress for the identity.
	StateIdle State = iota
	// StateChallengeIssued means a code was sent and the attempt awaits submission.
	StateChallengeIssued
	// StateVerifying is held while the backend checks a submitted code.
	StateVerifying
	// StateStepUp means the attempt awaits a biometric result.
	StateStepUp
	// StateWhitelisting is held while the trust record is written.
	StateWhitelisting
	// StateAuthenticated is the terminal success state.
	StateAuthenticated
	// StateLockedOut means the attempt threshold was reached. Only a fresh
	// issuance leaves this state.
	StateLockedOut
	// StateFailed is a terminal failure; Outcome.Failure carries the reason.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChallengeIssued:
		return "challenge_issued"
	case StateVerifying:
		return "verifying"
	case StateStepUp:
		return "step_up"
	case StateWhitelisting:
		return "whitelisting"
	case StateAuthenticated:
		return "authenticated"
	case StateLockedOut:
		return "locked_out"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further operation can move the attempt
// forward without a fresh issuance.
func (s State) Terminal() bool {
	return s == StateAuthenticated || s == StateLockedOut || s == StateFailed
}

// Flow names the entry path of an attempt.
type Flow uint8

const (
	FlowPhone Flow = iota + 1
	FlowEmail
	FlowBusiness
)

func (f Flow) String() string {
	switch f {
	case FlowPhone:
		return "phone"
	case FlowEmail:
		return "email"
	case FlowBusiness:
		return "business"
	default:
		return "unknown"
	}
}

func flowFor(ref Identity) Flow {
	if ref.Channel == ChannelEmail {
		return FlowEmail
	}
	return FlowPhone
}

// FailureReason explains a LockedOut or Failed outcome.
type FailureReason uint8

const (
	FailureNone FailureReason = iota
	FailureBackendUnavailable
	FailureChallengeExpired
	FailureLockedOut
	FailureStepUpDeclined
	FailureWhitelistWriteFailed
)

func (r FailureReason) String() string {
	switch r {
	case FailureNone:
		return "none"
	case FailureBackendUnavailable:
		return "backend_unavailable"
	case FailureChallengeExpired:
		return "challenge_expired"
	case FailureLockedOut:
		return "locked_out"
	case FailureStepUpDeclined:
		return "step_up_declined"
	case FailureWhitelistWriteFailed:
		return "whitelist_write_failed"
	default:
		return "unknown"
	}
}

// Err returns the sentinel error matching r, or nil for FailureNone.
func (r FailureReason) Err() error {
	switch r {
	case FailureBackendUnavailable:
		return ErrBackendUnavailable
	case FailureChallengeExpired:
		return ErrChallengeExpired
	case FailureLockedOut:
		return ErrLockedOut
	case FailureStepUpDeclined:
		return ErrStepUpDeclined
	case FailureWhitelistWriteFailed:
		return ErrWhitelistWriteFailed
	default:
		return nil
	}
}

// Outcome is attached to an [Attempt] once it reaches a terminal state.
type Outcome struct {
	Authenticated bool
	Failure       FailureReason

	// TrustedDevice reports whether the device was already trusted when the
	// trust store was consulted.
	TrustedDevice bool
	StepUp        StepUpResult
	Whitelisted   bool

	// Warning carries a non-fatal problem, currently only a wrapped
	// ErrWhitelistWriteFailed.
	Warning error

	// Receipt is a signed JWT, set only when a receipt signing key is configured.
	Receipt     string
	CompletedAt time.Time
}

// ChallengeView is the caller-visible part of the active challenge.
type ChallengeView struct {
	ID        string
	Channel   Channel
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Attempt is a point-in-time snapshot of a sign-in. Every Engine operation
// returns one, including on error.
type Attempt struct {
	Identity Identity
	Flow     Flow
	State    State

	// Challenge is nil when no challenge is active.
	Challenge *ChallengeView

	// AttemptsRemaining is the number of wrong codes that may still be
	// submitted before lockout. It is only populated in ChallengeIssued.
	AttemptsRemaining int

	// ResendAfter is the time left in the cooldown window; zero means a new
	// code may be requested now.
	ResendAfter time.Duration

	StepUp  StepUpResult
	Outcome *Outcome
}

// AuditEvent is an alias for the internal audit event type.
// See internal/audit for field semantics.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the async dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards audit events to a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes audit events as newline-delimited JSON.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a JSONWriterSink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
