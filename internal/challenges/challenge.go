package challenges

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSignIn/identity"
	"github.com/google/uuid"
)

// CodeLength is the fixed number of digits in a one-time code.
const CodeLength = 6

// DefaultTTL is the challenge lifetime used when Config.TTL is unset.
const DefaultTTL = 10 * time.Minute

var (
	// ErrMalformedCode is returned for codes that are not exactly CodeLength ASCII digits.
	ErrMalformedCode = errors.New("malformed code")
	// ErrAlreadyConsumed is returned when the challenge was accepted, discarded or superseded.
	ErrAlreadyConsumed = errors.New("challenge already consumed")
	// ErrBackendUnavailable wraps any credential backend failure.
	ErrBackendUnavailable = errors.New("credential backend unavailable")
)

// Backend sends and checks one-time codes. Code generation and storage stay
// on the backend side; the manager never sees the expected code.
type Backend interface {
	SendCode(ctx context.Context, ref identity.Ref) error
	VerifyCode(ctx context.Context, ref identity.Ref, code string) (bool, error)
}

// Result is the outcome of a verification that reached a decision.
type Result uint8

const (
	// Accepted means the backend confirmed the code.
	Accepted Result = iota + 1
	// Rejected means the backend refused the code.
	Rejected
	// Expired means the challenge deadline passed before submission.
	Expired
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Challenge is one issued code request. Values are copies; the manager keeps
// the authoritative state keyed by identity.
type Challenge struct {
	ID        uuid.UUID
	Identity  identity.Ref
	Channel   identity.Channel
	IssuedAt  time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// ExpiredAt reports whether now is past the challenge deadline.
func (c Challenge) ExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ValidCode reports whether code is exactly CodeLength ASCII digits.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
