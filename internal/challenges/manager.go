package challenges

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/goSignIn/identity"
	"github.com/MrEthical07/goSignIn/internal/cooldown"
	"github.com/google/uuid"
)

// Config controls challenge lifetime and the resend window opened on issue.
type Config struct {
	TTL            time.Duration
	CooldownWindow time.Duration

	// ObserveVerify, when set, receives the latency of every backend
	// VerifyCode call.
	ObserveVerify func(time.Duration)
}

// Manager issues and verifies challenges, holding at most one active
// challenge per identity key.
type Manager struct {
	backend  Backend
	cooldown *cooldown.Timer
	cfg      Config
	now      func() time.Time

	mu     sync.Mutex
	active map[string]Challenge
}

// NewManager builds a Manager. cool may be nil, in which case issuance does
// not open resend windows.
func NewManager(backend Backend, cool *cooldown.Timer, cfg Config, now func() time.Time) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{
		backend:  backend,
		cooldown: cool,
		cfg:      cfg,
		now:      now,
		active:   make(map[string]Challenge),
	}
}

// Issue asks the backend to deliver a code to ref. On success the prior
// challenge for ref, if any, is superseded and the cooldown window restarts.
func (m *Manager) Issue(ctx context.Context, ref identity.Ref) (Challenge, error) {
	if err := ref.Validate(); err != nil {
		return Challenge{}, err
	}
	if m.backend == nil {
		return Challenge{}, fmt.Errorf("%w: no backend configured", ErrBackendUnavailable)
	}

	if err := m.backend.SendCode(ctx, ref); err != nil {
		if errors.Is(err, identity.ErrInvalid) {
			return Challenge{}, err
		}
		return Challenge{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return Challenge{}, fmt.Errorf("challenge id: %w", err)
	}

	now := m.now()
	c := Challenge{
		ID:        id,
		Identity:  ref,
		Channel:   ref.Channel,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.cfg.TTL),
	}

	m.mu.Lock()
	m.active[ref.Key()] = c
	m.mu.Unlock()

	if m.cooldown != nil {
		m.cooldown.Start(ref.Key(), m.cfg.CooldownWindow)
	}
	return c, nil
}

// Verify checks code against c. The consumed, malformed and expiry checks
// all run before the backend is called.
func (m *Manager) Verify(ctx context.Context, c Challenge, code string) (Result, error) {
	key := c.Identity.Key()

	m.mu.Lock()
	current, ok := m.active[key]
	m.mu.Unlock()

	if c.Consumed || !ok || current.ID != c.ID {
		return 0, ErrAlreadyConsumed
	}
	if !ValidCode(code) {
		return 0, ErrMalformedCode
	}
	if current.ExpiredAt(m.now()) {
		return Expired, nil
	}

	start := time.Now()
	accepted, err := m.backend.VerifyCode(ctx, current.Identity, code)
	if m.cfg.ObserveVerify != nil {
		m.cfg.ObserveVerify(time.Since(start))
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !accepted {
		return Rejected, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A concurrent Issue may have replaced the challenge during the backend call.
	if latest, ok := m.active[key]; !ok || latest.ID != c.ID {
		return 0, ErrAlreadyConsumed
	}
	delete(m.active, key)
	return Accepted, nil
}

// Discard consumes c without verification. Discarding a challenge that is no
// longer active is a no-op.
func (m *Manager) Discard(c Challenge) {
	key := c.Identity.Key()

	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.active[key]; ok && current.ID == c.ID {
		delete(m.active, key)
	}
}

// Active returns the live challenge for ref.
func (m *Manager) Active(ref identity.Ref) (Challenge, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.active[ref.Key()]
	return c, ok
}

// Len returns the number of identities holding an active challenge.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
