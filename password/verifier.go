package password

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrEthical07/goSignIn/identity"
)

var (
	// ErrInvalidCredentials is returned for an unknown identity or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnavailable wraps failures of the credential source.
	ErrUnavailable = errors.New("credential source unavailable")
	// ErrNotFound is returned by a CredentialSource that has no hash for the identity.
	ErrNotFound = errors.New("credential not found")
	// ErrAlreadyEnrolled is returned when enrolling an identity that already has a password.
	ErrAlreadyEnrolled = errors.New("identity already enrolled")
	// ErrReadOnly is returned when enrolling against a CredentialSource that cannot store hashes.
	ErrReadOnly = errors.New("credential source is read-only")
)

// CredentialSource looks up the stored PHC hash for an identity.
type CredentialSource interface {
	PasswordHash(ctx context.Context, ref identity.Ref) (string, error)
}

// CredentialStore is a CredentialSource that can also write hashes. A
// LocalVerifier over a CredentialStore supports enrolment and rehashes
// weaker hashes after a successful check.
type CredentialStore interface {
	CredentialSource
	SetPasswordHash(ctx context.Context, ref identity.Ref, encoded string) error
}

// LocalVerifier checks passwords against Argon2id hashes held by a
// CredentialSource, for deployments without a hosted identity provider.
type LocalVerifier struct {
	hasher *Argon2
	source CredentialSource
	store  CredentialStore // nil when source is read-only
	dummy  string
}

// NewLocalVerifier builds a verifier. Unknown identities still pay for one
// Argon2 computation against a dummy hash.
func NewLocalVerifier(hasher *Argon2, source CredentialSource) (*LocalVerifier, error) {
	if hasher == nil || source == nil {
		return nil, errors.New("hasher and credential source are required")
	}
	dummy, err := hasher.Hash("dummy-password-never-matches")
	if err != nil {
		return nil, err
	}
	v := &LocalVerifier{hasher: hasher, source: source, dummy: dummy}
	if store, ok := source.(CredentialStore); ok {
		v.store = store
	}
	return v, nil
}

// VerifyPassword returns nil when password matches the stored hash for ref.
func (v *LocalVerifier) VerifyPassword(ctx context.Context, ref identity.Ref, password string) error {
	encoded, err := v.source.PasswordHash(ctx, ref)
	switch {
	case errors.Is(err, ErrNotFound):
		_, _ = v.hasher.Verify(password, v.dummy)
		return ErrInvalidCredentials
	case err != nil:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ok, err := v.hasher.Verify(password, encoded)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}
	v.upgrade(ctx, ref, password, encoded)
	return nil
}

// upgrade rewrites encoded under the current cost parameters. Failures leave
// the old hash in place and never fail the sign-in.
func (v *LocalVerifier) upgrade(ctx context.Context, ref identity.Ref, password, encoded string) {
	if v.store == nil {
		return
	}
	if needs, err := v.hasher.NeedsUpgrade(encoded); err != nil || !needs {
		return
	}
	upgraded, err := v.hasher.Hash(password)
	if err != nil {
		return
	}
	_ = v.store.SetPasswordHash(ctx, ref, upgraded)
}

// EnrollPassword stores a new hash for ref. It returns ErrAlreadyEnrolled
// when ref has one and ErrReadOnly when the source cannot store hashes.
// Composition rules are the caller's job.
func (v *LocalVerifier) EnrollPassword(ctx context.Context, ref identity.Ref, password string) error {
	if v.store == nil {
		return ErrReadOnly
	}
	if n := len(password); n < minPassBytes || n > v.hasher.config.MaxPasswordBytes {
		return errors.Join(ErrPolicy, fmt.Errorf("password must be %d to %d bytes", minPassBytes, v.hasher.config.MaxPasswordBytes))
	}
	_, err := v.store.PasswordHash(ctx, ref)
	switch {
	case err == nil:
		return ErrAlreadyEnrolled
	case !errors.Is(err, ErrNotFound):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	encoded, err := v.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := v.store.SetPasswordHash(ctx, ref, encoded); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// MemoryCredentials is an in-process CredentialSource.
type MemoryCredentials struct {
	mu     sync.RWMutex
	hashes map[string]string
}

// NewMemoryCredentials returns an empty credential map.
func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{hashes: make(map[string]string)}
}

// Set stores an already-encoded hash for ref.
func (m *MemoryCredentials) Set(ref identity.Ref, encoded string) {
	m.mu.Lock()
	m.hashes[ref.Key()] = encoded
	m.mu.Unlock()
}

// SetPasswordHash implements CredentialStore.
func (m *MemoryCredentials) SetPasswordHash(_ context.Context, ref identity.Ref, encoded string) error {
	m.Set(ref, encoded)
	return nil
}

func (m *MemoryCredentials) PasswordHash(_ context.Context, ref identity.Ref) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hashes[ref.Key()]
	if !ok {
		return "", ErrNotFound
	}
	return h, nil
}
