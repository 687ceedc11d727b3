package goSignIn

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goSignIn/jwt"
	"go.uber.org/zap"
)

// StepUpRespond completes an attempt parked in StateStepUp with the result
// of a biometric prompt the caller showed itself. It is only used when
// Config.StepUp.Interactive is set.
//
// Confirmed and Unavailable continue to whitelisting; Declined ends the
// attempt in Failed(StepUpDeclined) and returns [ErrStepUpDeclined].
func (e *Engine) StepUpRespond(ctx context.Context, ref Identity, result StepUpResult) (Attempt, error) {
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
	if s.state != StateStepUp {
		return e.snapshot(ctx, s), fmt.Errorf("%w: step-up response in %s", ErrInvalidTransition, s.state)
	}
	switch result {
	case StepUpConfirmed, StepUpDeclined, StepUpUnavailable:
	default:
		return e.snapshot(ctx, s), fmt.Errorf("%w: unknown step-up result %d", ErrInvalidTransition, result)
	}
	return e.applyStepUp(ctx, s, result)
}

// afterAccepted runs once the backend accepted a code: the counter is reset
// and the trust store decides whether step-up is needed.
func (e *Engine) afterAccepted(ctx context.Context, s session) (Attempt, error) {
	if err := e.attempts.Reset(ctx, s.identity.Key()); err != nil {
		e.metricInc(MetricCounterStoreFailure)
		e.logger.Warn("attempt counter reset failed", zap.Error(err))
	}

	s.trusted = e.isTrusted(ctx, s.identity)
	if s.trusted {
		return e.complete(ctx, s)
	}
	return e.enterStepUp(ctx, s)
}

// isTrusted reads the trust store. A read failure counts as untrusted so
// that step-up is never skipped on an outage.
func (e *Engine) isTrusted(ctx context.Context, ref Identity) bool {
	trusted, err := e.trust.IsTrusted(ctx, ref)
	if err != nil {
		e.metricInc(MetricTrustReadFailure)
		e.logger.Warn("trust store read failed, treating device as untrusted",
			zap.String("identity", ref.Masked()),
			zap.Error(err),
		)
		return false
	}
	if trusted {
		e.metricInc(MetricTrustedDevice)
	}
	return trusted
}

func (e *Engine) enterStepUp(ctx context.Context, s session) (Attempt, error) {
	s.state = StateStepUp
	e.store(s)

	if e.config.StepUp.Interactive {
		e.emitAudit(ctx, auditEventStepUpRequired, s, true, nil, nil)
		return e.snapshot(ctx, s), nil
	}
	return e.applyStepUp(ctx, s, e.stepUp.Challenge(ctx))
}

func (e *Engine) applyStepUp(ctx context.Context, s session, result StepUpResult) (Attempt, error) {
	s.stepUp = result

	switch result {
	case StepUpConfirmed:
		e.metricInc(MetricStepUpConfirmed)
		e.emitAudit(ctx, auditEventStepUpConfirmed, s, true, nil, nil)
	case StepUpUnavailable:
		e.metricInc(MetricStepUpUnavailable)
		e.emitAudit(ctx, auditEventStepUpUnavailable, s, true, nil, nil)
	default:
		e.metricInc(MetricStepUpDeclined)
		e.emitAudit(ctx, auditEventStepUpDeclined, s, false, ErrStepUpDeclined, nil)
		e.fail(ctx, &s, FailureStepUpDeclined)
		return e.snapshot(ctx, s), ErrStepUpDeclined
	}
	return e.complete(ctx, s)
}

// complete whitelists untrusted devices and publishes the Authenticated
// outcome. A whitelist failure is a warning on the outcome unless
// Trust.WhitelistFailureFatal is set.
func (e *Engine) complete(ctx context.Context, s session) (Attempt, error) {
	outcome := &Outcome{
		Authenticated: true,
		TrustedDevice: s.trusted,
		StepUp:        s.stepUp,
	}

	if !s.trusted {
		s.state = StateWhitelisting
		e.store(s)

		if err := e.trust.Whitelist(ctx, s.identity); err != nil {
			werr := fmt.Errorf("%w: %v", ErrWhitelistWriteFailed, err)
			e.metricInc(MetricWhitelistFailed)
			e.logger.Warn("device whitelist write failed",
				zap.String("identity", s.identity.Masked()),
				zap.Bool("fatal", e.config.Trust.WhitelistFailureFatal),
				zap.Error(err),
			)
			e.emitAudit(ctx, auditEventWhitelistFailed, s, false, werr, nil)
			if e.config.Trust.WhitelistFailureFatal {
				e.fail(ctx, &s, FailureWhitelistWriteFailed)
				return e.snapshot(ctx, s), werr
			}
			outcome.Warning = werr
		} else {
			outcome.Whitelisted = true
			e.metricInc(MetricDeviceWhitelisted)
			e.emitAudit(ctx, auditEventDeviceWhitelisted, s, true, nil, nil)
		}
	}

	outcome.Receipt = e.mintReceipt(s)
	outcome.CompletedAt = e.clock.Now()

	s.state = StateAuthenticated
	s.outcome = outcome
	e.store(s)

	e.metricInc(MetricAuthenticated)
	e.emitAudit(ctx, auditEventAuthenticated, s, true, nil, func() map[string]string {
		return map[string]string{
			"trusted_device": fmt.Sprint(s.trusted),
			"step_up":        s.stepUp.String(),
		}
	})
	return e.snapshot(ctx, s), nil
}

func (e *Engine) mintReceipt(s session) string {
	if !e.receipts.CanSign() {
		return ""
	}
	token, err := e.receipts.CreateReceipt(jwt.Receipt{
		IdentityKey: s.identity.Key(),
		Channel:     s.identity.Channel.String(),
		Flow:        s.flow.String(),
		Trusted:     s.trusted,
		StepUp:      stepUpClaim(s.stepUp),
	})
	if err != nil {
		e.logger.Error("sign-in receipt signing failed", zap.Error(err))
		return ""
	}
	e.metricInc(MetricReceiptIssued)
	return token
}

func stepUpClaim(r StepUpResult) string {
	if r == 0 {
		return ""
	}
	return r.String()
}
