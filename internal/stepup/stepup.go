package stepup

import (
	"context"

	"go.uber.org/zap"
)

// Biometric is the platform capability behind the step-up prompt.
type Biometric interface {
	IsAvailable(ctx context.Context) bool
	Confirm(ctx context.Context) (bool, error)
}

// Result is the outcome of a step-up challenge.
type Result uint8

const (
	// Confirmed means the user passed the biometric prompt.
	Confirmed Result = iota + 1
	// Declined means the prompt failed, was cancelled, or errored.
	Declined
	// Unavailable means no biometric hardware is present.
	Unavailable
)

func (r Result) String() string {
	switch r {
	case Confirmed:
		return "confirmed"
	case Declined:
		return "declined"
	case Unavailable:
		return "unavailable"
	default:
		return "none"
	}
}

// Proceeds reports whether the sign-in may continue after r.
func (r Result) Proceeds() bool {
	return r == Confirmed || r == Unavailable
}

// Authenticator wraps a Biometric capability.
type Authenticator struct {
	bio    Biometric
	logger *zap.Logger
}

// New builds an Authenticator. A nil bio behaves as absent hardware.
func New(bio Biometric, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{bio: bio, logger: logger}
}

// Available reports whether biometric hardware is present.
func (a *Authenticator) Available(ctx context.Context) bool {
	if a == nil || a.bio == nil {
		return false
	}
	return a.bio.IsAvailable(ctx)
}

// Challenge prompts the user. Absent hardware yields Unavailable; any
// prompt error yields Declined.
func (a *Authenticator) Challenge(ctx context.Context) Result {
	if !a.Available(ctx) {
		return Unavailable
	}
	ok, err := a.bio.Confirm(ctx)
	if err != nil {
		a.logger.Warn("biometric prompt failed", zap.Error(err))
		return Declined
	}
	if !ok {
		return Declined
	}
	return Confirmed
}
