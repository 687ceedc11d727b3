package goSignIn

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSignIn/password"
	"go.uber.org/zap"
)

// BeginBusinessSignIn starts the business password path for email.
//
// The password is checked against the business policy (when
// Business.EnforcePasswordPolicy is set) and then by the configured
// [PasswordVerifier]. On an untrusted device an email code is issued and the
// attempt continues at StateChallengeIssued exactly like [Engine.BeginSignIn].
// On a trusted device the attempt goes to step-up (Business.StepUpTrustedDevices)
// or straight to Authenticated, without writing the trust record again.
func (e *Engine) BeginBusinessSignIn(ctx context.Context, email, pw string) (Attempt, error) {
	ref := Email(email)
	if err := e.ready(); err != nil {
		return Attempt{Identity: ref, Flow: FlowBusiness}, err
	}
	if err := ref.Validate(); err != nil {
		return Attempt{Identity: ref, Flow: FlowBusiness}, err
	}
	if e.passwords == nil {
		return Attempt{Identity: ref, Flow: FlowBusiness}, fmt.Errorf("%w: no password verifier configured", ErrEngineNotReady)
	}
	if e.config.Business.EnforcePasswordPolicy {
		if err := e.policy.Check(pw); err != nil {
			e.metricInc(MetricPasswordPolicyRejected)
			e.emitAudit(ctx, auditEventPasswordPolicy, session{identity: ref, flow: FlowBusiness}, false, err, nil)
			return e.idle(ref, FlowBusiness), err
		}
	}

	unlock, err := e.lock(ctx, ref)
	if err != nil {
		return Attempt{Identity: ref, Flow: FlowBusiness}, err
	}
	defer unlock()

	e.metricInc(MetricBusinessSignInStarted)
	base := session{identity: ref, flow: FlowBusiness}
	e.emitAudit(ctx, auditEventBusinessSignInStarted, base, true, nil, nil)

	var prev *session
	if s, ok := e.load(ref.Key()); ok {
		prev = &s
	}
	current := func() Attempt {
		if prev != nil {
			return e.snapshot(ctx, *prev)
		}
		return e.idle(ref, FlowBusiness)
	}

	if err := e.passwords.VerifyPassword(ctx, ref, pw); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			e.metricInc(MetricInvalidCredentials)
			e.emitAudit(ctx, auditEventInvalidCredentials, base, false, ErrInvalidCredentials, nil)
			return current(), ErrInvalidCredentials
		}
		e.logger.Warn("password verification failed",
			zap.String("identity", ref.Masked()),
			zap.Error(err),
		)
		if !errors.Is(err, ErrBackendUnavailable) {
			err = fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return current(), err
	}

	if !e.isTrusted(ctx, ref) {
		return e.issue(ctx, ref, FlowBusiness, prev, false)
	}

	if prev != nil && prev.hasChallenge {
		e.challenges.Discard(prev.challenge)
	}
	base.trusted = true
	if e.config.Business.StepUpTrustedDevices {
		return e.enterStepUp(ctx, base)
	}
	return e.complete(ctx, base)
}

// EnrollBusiness creates the password credential for a business account.
//
// The password must satisfy the business policy regardless of
// Business.EnforcePasswordPolicy, and the configured [PasswordVerifier] must
// implement [PasswordEnroller]. No code is issued: the account signs in with
// [Engine.BeginBusinessSignIn], and the first sign-in from a device still
// goes through the email code.
func (e *Engine) EnrollBusiness(ctx context.Context, email, pw string) (Attempt, error) {
	ref := Email(email)
	if err := e.ready(); err != nil {
		return Attempt{Identity: ref, Flow: FlowBusiness}, err
	}
	if err := ref.Validate(); err != nil {
		return Attempt{Identity: ref, Flow: FlowBusiness}, err
	}
	enroller, ok := e.passwords.(PasswordEnroller)
	if !ok {
		return Attempt{Identity: ref, Flow: FlowBusiness}, fmt.Errorf("%w: password verifier cannot enrol accounts", ErrEngineNotReady)
	}
	base := session{identity: ref, flow: FlowBusiness}
	if err := e.policy.Check(pw); err != nil {
		e.metricInc(MetricPasswordPolicyRejected)
		e.emitAudit(ctx, auditEventPasswordPolicy, base, false, err, nil)
		return e.idle(ref, FlowBusiness), err
	}

	unlock, err := e.lock(ctx, ref)
	if err != nil {
		return Attempt{Identity: ref, Flow: FlowBusiness}, err
	}
	defer unlock()

	err = enroller.EnrollPassword(ctx, ref, pw)
	switch {
	case err == nil, errors.Is(err, ErrAlreadyEnrolled), errors.Is(err, ErrPasswordPolicy):
	case errors.Is(err, password.ErrReadOnly):
		err = fmt.Errorf("%w: %v", ErrEngineNotReady, err)
	default:
		e.logger.Warn("business enrolment failed",
			zap.String("identity", ref.Masked()),
			zap.Error(err),
		)
		if !errors.Is(err, ErrBackendUnavailable) {
			err = fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}
	e.emitAudit(ctx, auditEventBusinessEnrolled, base, err == nil, err, nil)
	return e.idle(ref, FlowBusiness), err
}
