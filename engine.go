package goSignIn

import (
	"context"
	"errors"
	"fmt"
	"sync"

	internalaudit "github.com/MrEthical07/goSignIn/internal/audit"
	"github.com/MrEthical07/goSignIn/internal/challenges"
	"github.com/MrEthical07/goSignIn/internal/cooldown"
	"github.com/MrEthical07/goSignIn/internal/keylock"
	"github.com/MrEthical07/goSignIn/internal/limiters"
	"github.com/MrEthical07/goSignIn/internal/stepup"
	"github.com/MrEthical07/goSignIn/jwt"
	"github.com/MrEthical07/goSignIn/password"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Engine drives sign-in attempts. Build it with [New] and [Builder.Build].
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config     Config
	clock      Clock
	logger     *zap.Logger
	locks      *keylock.Map
	cooldown   *cooldown.Timer
	challenges *challenges.Manager
	attempts   *limiters.AttemptPolicy
	trust      TrustStore
	stepUp     *stepup.Authenticator
	passwords  PasswordVerifier
	policy     password.Policy
	issueLimit *rate.Limiter
	receipts   *jwt.Manager
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	closers    []func() error

	mu       sync.Mutex
	sessions map[string]session
}

// session is the per-identity attempt state. It is only mutated by the
// holder of the identity's key lock and published through store.
type session struct {
	identity     Identity
	flow         Flow
	state        State
	challenge    challenges.Challenge
	hasChallenge bool
	trusted      bool
	stepUp       StepUpResult
	outcome      *Outcome
}

// Close drains the audit dispatcher and releases connections the engine
// opened itself. Injected clients are left open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	for _, closeFn := range e.closers {
		if err := closeFn(); err != nil {
			e.logger.Warn("close engine resource", zap.Error(err))
		}
	}
	e.closers = nil
}

// AuditDropped returns the number of audit events discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Attempt returns the current snapshot for ref without side effects. When no
// attempt exists it returns an Idle snapshot and [ErrNoActiveAttempt].
func (e *Engine) Attempt(ctx context.Context, ref Identity) (Attempt, error) {
	if err := e.ready(); err != nil {
		return Attempt{Identity: ref}, err
	}
	if err := ref.Validate(); err != nil {
		return Attempt{Identity: ref}, err
	}
	s, ok := e.load(ref.Key())
	if !ok {
		return e.idle(ref, flowFor(ref)), ErrNoActiveAttempt
	}
	return e.snapshot(ctx, s), nil
}

// Abandon drops the attempt for ref and discards its challenge. Attempt
// counters and the cooldown window are kept, so a returning user resumes
// against the same limits.
func (e *Engine) Abandon(ctx context.Context, ref Identity) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := ref.Validate(); err != nil {
		return err
	}
	unlock, err := e.lock(ctx, ref)
	if err != nil {
		return err
	}
	defer unlock()

	s, ok := e.load(ref.Key())
	if !ok {
		return ErrNoActiveAttempt
	}
	if s.hasChallenge {
		e.challenges.Discard(s.challenge)
	}
	e.remove(ref.Key())

	if !s.state.Terminal() {
		e.metricInc(MetricAbandoned)
		e.emitAudit(ctx, auditEventAbandoned, s, false, nil, nil)
	}
	return nil
}

// RevokeDevice removes the trust record for ref, so its next sign-in goes
// through step-up again.
func (e *Engine) RevokeDevice(ctx context.Context, ref Identity) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := e.trust.Revoke(ctx, ref); err != nil {
		if !errors.Is(err, ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return err
	}
	e.emitAudit(ctx, auditEventDeviceRevoked, session{identity: ref}, true, nil, nil)
	return nil
}

// VerifyReceipt checks a receipt minted on an Authenticated outcome. Every
// failure matches [ErrReceiptInvalid].
func (e *Engine) VerifyReceipt(token string) (*ReceiptClaims, error) {
	if e == nil || e.receipts == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.receipts.ParseReceipt(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReceiptInvalid, err)
	}
	return claims, nil
}

func (e *Engine) ready() error {
	if e == nil || e.challenges == nil || e.trust == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) lock(ctx context.Context, ref Identity) (func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return e.locks.Lock(ctx, ref.Key())
}

func (e *Engine) load(key string) (session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[key]
	return s, ok
}

func (e *Engine) store(s session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[s.identity.Key()] = s
}

func (e *Engine) remove(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, key)
}

func (e *Engine) idle(ref Identity, flow Flow) Attempt {
	return Attempt{
		Identity:    ref,
		Flow:        flow,
		State:       StateIdle,
		ResendAfter: e.cooldown.Remaining(ref.Key()),
	}
}

func (e *Engine) snapshot(ctx context.Context, s session) Attempt {
	key := s.identity.Key()
	a := Attempt{
		Identity:    s.identity,
		Flow:        s.flow,
		State:       s.state,
		ResendAfter: e.cooldown.Remaining(key),
		StepUp:      s.stepUp,
	}
	if s.hasChallenge {
		a.Challenge = &ChallengeView{
			ID:        s.challenge.ID.String(),
			Channel:   s.challenge.Channel,
			IssuedAt:  s.challenge.IssuedAt,
			ExpiresAt: s.challenge.ExpiresAt,
		}
		if s.state == StateChallengeIssued {
			if left, err := e.attempts.Remaining(ctx, key); err == nil {
				a.AttemptsRemaining = left
			}
		}
	}
	if s.outcome != nil {
		o := *s.outcome
		a.Outcome = &o
	}
	return a
}

// fail moves s to a failure state, discards its challenge and publishes it.
func (e *Engine) fail(ctx context.Context, s *session, reason FailureReason) {
	if s.hasChallenge {
		e.challenges.Discard(s.challenge)
		s.hasChallenge = false
	}
	s.state = StateFailed
	if reason == FailureLockedOut {
		s.state = StateLockedOut
	}
	s.outcome = &Outcome{
		Failure:       reason,
		TrustedDevice: s.trusted,
		StepUp:        s.stepUp,
		CompletedAt:   e.clock.Now(),
	}
	e.store(*s)

	e.metricInc(MetricSignInFailed)
	e.emitAudit(ctx, auditEventSignInFailed, *s, false, reason.Err(), func() map[string]string {
		return map[string]string{"reason": reason.String()}
	})
}
