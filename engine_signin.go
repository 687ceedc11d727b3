package goSignIn

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSignIn/internal/challenges"
	"github.com/MrEthical07/goSignIn/internal/limiters"
	"go.uber.org/zap"
)

// BeginSignIn sends a one-time code to ref and returns the attempt in
// StateChallengeIssued.
//
// It fails with [ErrInvalidIdentity] for malformed addresses and with a
// *[CooldownError] while the previous resend window is open. A backend
// failure ends the attempt in Failed(BackendUnavailable). Starting over
// after a lockout resets the attempt counter.
func (e *Engine) BeginSignIn(ctx context.Context, ref Identity) (Attempt, error) {
	if err := e.ready(); err != nil {
		return Attempt{Identity: ref}, err
	}
	if err := ref.Validate(); err != nil {
		return Attempt{Identity: ref}, err
	}
	unlock, err := e.lock(ctx, ref)
	if err != nil {
		return Attempt{Identity: ref}, err
	}
	defer unlock()

	flow := flowFor(ref)
	e.metricInc(MetricSignInStarted)
	e.emitAudit(ctx, auditEventSignInStarted, session{identity: ref, flow: flow}, true, nil, nil)

	var prev *session
	if s, ok := e.load(ref.Key()); ok {
		prev = &s
	}
	return e.issue(ctx, ref, flow, prev, false)
}

// SubmitCode checks code against the active challenge for ref.
//
// Malformed codes return [ErrMalformedCode] without counting an attempt. A
// wrong code returns [ErrRejected] while attempts remain and [ErrLockedOut]
// once the threshold is reached; after that every submission returns
// [ErrLockedOut] without contacting the backend. An expired challenge ends
// the attempt in Failed(ChallengeExpired). An accepted code continues into
// the trust check, step-up and whitelisting.
func (e *Engine) SubmitCode(ctx context.Context, ref Identity, code string) (Attempt, error) {
	if err := e.ready(); err != nil {
		return Attempt{Identity: ref}, err
	}
	if err := ref.Validate(); err != nil {
		return Attempt{Identity: ref}, err
	}
	unlock, err := e.lock(ctx, ref)
	if err != nil {
		return Attempt{Identity: ref}, err
	}
	defer unlock()

	key := ref.Key()
	s, ok := e.load(key)
	if !ok {
		return e.idle(ref, flowFor(ref)), ErrNoActiveAttempt
	}

	switch s.state {
	case StateChallengeIssued:
	case StateLockedOut:
		e.metricInc(MetricLockedOutSubmit)
		e.emitAudit(ctx, auditEventLockedOutSubmit, s, false, ErrLockedOut, nil)
		return e.snapshot(ctx, s), ErrLockedOut
	default:
		return e.snapshot(ctx, s), fmt.Errorf("%w: submit code in %s", ErrInvalidTransition, s.state)
	}
	if !s.hasChallenge {
		return e.snapshot(ctx, s), ErrChallengeAlreadyConsumed
	}

	s.state = StateVerifying
	e.store(s)

	result, err := e.challenges.Verify(ctx, s.challenge, code)
	if err != nil {
		s.state = StateChallengeIssued
		switch {
		case errors.Is(err, ErrMalformedCode):
			e.metricInc(MetricCodeMalformed)
		case errors.Is(err, ErrChallengeAlreadyConsumed):
			s.hasChallenge = false
		default:
			e.metricInc(MetricVerifyBackendFailure)
			e.logger.Warn("code verification failed",
				zap.String("identity", ref.Masked()),
				zap.Error(err),
			)
			e.emitAudit(ctx, auditEventVerifyFailed, s, false, err, nil)
		}
		e.store(s)
		return e.snapshot(ctx, s), err
	}

	switch result {
	case challenges.Expired:
		e.metricInc(MetricCodeExpired)
		e.emitAudit(ctx, auditEventCodeExpired, s, false, ErrChallengeExpired, nil)
		e.fail(ctx, &s, FailureChallengeExpired)
		return e.snapshot(ctx, s), ErrChallengeExpired

	case challenges.Rejected:
		e.metricInc(MetricCodeRejected)
		decision, err := e.attempts.RecordFailure(ctx, key)
		if err != nil {
			e.metricInc(MetricCounterStoreFailure)
			e.logger.Warn("attempt counter unavailable, locking out",
				zap.String("identity", ref.Masked()),
				zap.Error(err),
			)
		}
		if decision == limiters.Lockout {
			e.metricInc(MetricLockout)
			e.emitAudit(ctx, auditEventLockout, s, false, ErrLockedOut, nil)
			e.fail(ctx, &s, FailureLockedOut)
			return e.snapshot(ctx, s), ErrLockedOut
		}
		s.state = StateChallengeIssued
		e.store(s)
		e.emitAudit(ctx, auditEventCodeRejected, s, false, ErrRejected, nil)
		return e.snapshot(ctx, s), ErrRejected
	}

	e.metricInc(MetricCodeAccepted)
	e.emitAudit(ctx, auditEventCodeAccepted, s, true, nil, nil)
	s.hasChallenge = false
	return e.afterAccepted(ctx, s)
}

// Resend issues a new code for ref, superseding the active one. It is allowed
// from ChallengeIssued, LockedOut and Failed(ChallengeExpired), and returns a
// *[CooldownError] until the window opened by the previous issuance closes.
// Resending after a lockout resets the attempt counter.
func (e *Engine) Resend(ctx context.Context, ref Identity) (Attempt, error) {
	if err := e.ready(); err != nil {
		return Attempt{Identity: ref}, err
	}
	if err := ref.Validate(); err != nil {
		return Attempt{Identity: ref}, err
	}
	unlock, err := e.lock(ctx, ref)
	if err != nil {
		return Attempt{Identity: ref}, err
	}
	defer unlock()

	s, ok := e.load(ref.Key())
	if !ok {
		return e.idle(ref, flowFor(ref)), ErrNoActiveAttempt
	}
	if !resendAllowed(s) {
		return e.snapshot(ctx, s), fmt.Errorf("%w: resend in %s", ErrInvalidTransition, s.state)
	}
	return e.issue(ctx, ref, s.flow, &s, true)
}

func resendAllowed(s session) bool {
	switch s.state {
	case StateChallengeIssued, StateLockedOut:
		return true
	case StateFailed:
		return s.outcome != nil && s.outcome.Failure == FailureChallengeExpired
	default:
		return false
	}
}

// issue sends a fresh code and publishes the attempt in ChallengeIssued.
// prev is the attempt being replaced, if any. On a resend the previous state
// survives a backend failure; on a fresh start it becomes
// Failed(BackendUnavailable).
func (e *Engine) issue(ctx context.Context, ref Identity, flow Flow, prev *session, resend bool) (Attempt, error) {
	key := ref.Key()
	current := func() Attempt {
		if prev != nil {
			return e.snapshot(ctx, *prev)
		}
		return e.idle(ref, flow)
	}
	base := session{identity: ref, flow: flow}

	if remaining := e.cooldown.Remaining(key); remaining > 0 {
		err := &CooldownError{Remaining: remaining}
		e.metricInc(MetricCooldownRejected)
		e.emitAudit(ctx, auditEventCooldownRejected, base, false, err, nil)
		return current(), err
	}
	if e.issueLimit != nil && !e.issueLimit.AllowN(e.clock.Now(), 1) {
		e.metricInc(MetricIssueRateLimited)
		e.emitAudit(ctx, auditEventIssueRateLimited, base, false, ErrIssueRateLimited, nil)
		return current(), ErrIssueRateLimited
	}

	c, err := e.challenges.Issue(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrInvalidIdentity) {
			return current(), err
		}
		e.metricInc(MetricIssueBackendFailure)
		e.logger.Warn("code issuance failed",
			zap.String("identity", ref.Masked()),
			zap.Bool("resend", resend),
			zap.Error(err),
		)
		e.emitAudit(ctx, auditEventIssueFailed, base, false, err, nil)
		if resend {
			return current(), err
		}
		if prev != nil && prev.hasChallenge {
			e.challenges.Discard(prev.challenge)
		}
		e.fail(ctx, &base, FailureBackendUnavailable)
		return e.snapshot(ctx, base), err
	}

	e.resetAfterLockout(ctx, key, prev)

	s := base
	s.state = StateChallengeIssued
	s.challenge = c
	s.hasChallenge = true
	e.store(s)

	e.metricInc(MetricChallengeIssued)
	event := auditEventChallengeIssued
	if resend {
		e.metricInc(MetricChallengeResent)
		event = auditEventChallengeResent
	}
	e.emitAudit(ctx, event, s, true, nil, nil)
	return e.snapshot(ctx, s), nil
}

// resetAfterLockout clears the attempt counter when the replaced attempt was
// locked out, or when the counter alone shows a lockout (e.g. the attempt
// was abandoned after locking out).
func (e *Engine) resetAfterLockout(ctx context.Context, key string, prev *session) {
	locked := prev != nil && prev.state == StateLockedOut
	if !locked {
		failures, err := e.attempts.Failures(ctx, key)
		if err != nil {
			e.metricInc(MetricCounterStoreFailure)
			e.logger.Warn("attempt counter read failed", zap.Error(err))
			return
		}
		locked = failures >= e.attempts.Threshold()
	}
	if !locked {
		return
	}
	if err := e.attempts.Reset(ctx, key); err != nil {
		e.metricInc(MetricCounterStoreFailure)
		e.logger.Warn("attempt counter reset failed", zap.Error(err))
	}
}
