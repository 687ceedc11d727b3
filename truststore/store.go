package truststore

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSignIn/identity"
)

var (
	// ErrUnavailable wraps every backend failure from a trust store.
	ErrUnavailable = errors.New("trust store unavailable")
)

// Store answers whether a device/identity pair has completed a full
// verification cycle before.
type Store interface {
	IsTrusted(ctx context.Context, ref identity.Ref) (bool, error)
	Whitelist(ctx context.Context, ref identity.Ref) error
	Revoke(ctx context.Context, ref identity.Ref) error
}

// Record is a single whitelist entry.
type Record struct {
	Identity      identity.Ref
	WhitelistedAt time.Time
}

func nowOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
