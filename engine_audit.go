package goSignIn

import (
	"context"
	"errors"
)

const (
	auditEventSignInStarted         = "signin_started"
	auditEventBusinessSignInStarted = "business_signin_started"
	auditEventChallengeIssued       = "challenge_issued"
	auditEventChallengeResent       = "challenge_resent"
	auditEventIssueFailed           = "challenge_issue_failed"
	auditEventCooldownRejected      = "cooldown_rejected"
	auditEventIssueRateLimited      = "issue_rate_limited"
	auditEventCodeAccepted          = "code_accepted"
	auditEventCodeRejected          = "code_rejected"
	auditEventCodeExpired           = "code_expired"
	auditEventVerifyFailed          = "verify_backend_failed"
	auditEventLockout               = "lockout"
	auditEventLockedOutSubmit       = "locked_out_submit"
	auditEventStepUpRequired        = "step_up_required"
	auditEventStepUpConfirmed       = "step_up_confirmed"
	auditEventStepUpDeclined        = "step_up_declined"
	auditEventStepUpUnavailable     = "step_up_unavailable"
	auditEventDeviceWhitelisted     = "device_whitelisted"
	auditEventWhitelistFailed       = "whitelist_failed"
	auditEventDeviceRevoked         = "device_revoked"
	auditEventAuthenticated         = "authenticated"
	auditEventSignInFailed          = "signin_failed"
	auditEventAbandoned             = "signin_abandoned"
	auditEventInvalidCredentials    = "invalid_credentials"
	auditEventPasswordPolicy        = "password_policy_rejected"
	auditEventBusinessEnrolled      = "business_enrolled"
)

// AuditErrorCode is the stable error label written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidIdentity    AuditErrorCode = "invalid_identity"
	auditErrMalformedCode      AuditErrorCode = "malformed_code"
	auditErrChallengeExpired   AuditErrorCode = "challenge_expired"
	auditErrChallengeConsumed  AuditErrorCode = "challenge_consumed"
	auditErrBackendUnavailable AuditErrorCode = "backend_unavailable"
	auditErrStoreUnavailable   AuditErrorCode = "store_unavailable"
	auditErrRejected           AuditErrorCode = "rejected"
	auditErrLockedOut          AuditErrorCode = "locked_out"
	auditErrStepUpDeclined     AuditErrorCode = "step_up_declined"
	auditErrWhitelistFailed    AuditErrorCode = "whitelist_write_failed"
	auditErrCooldown           AuditErrorCode = "cooldown_active"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrAlreadyEnrolled    AuditErrorCode = "already_enrolled"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	s session,
	success bool,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.clock.Now().UTC(),
		EventType: eventType,
		Identity:  s.identity.Masked(),
		Channel:   s.identity.Channel.String(),
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if s.flow != 0 {
		event.Flow = s.flow.String()
	}
	if s.state != StateIdle {
		event.State = s.state.String()
	}
	if s.hasChallenge {
		event.ChallengeID = s.challenge.ID.String()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidIdentity):
		return auditErrInvalidIdentity
	case errors.Is(err, ErrMalformedCode):
		return auditErrMalformedCode
	case errors.Is(err, ErrChallengeExpired):
		return auditErrChallengeExpired
	case errors.Is(err, ErrChallengeAlreadyConsumed):
		return auditErrChallengeConsumed
	case errors.Is(err, ErrBackendUnavailable):
		return auditErrBackendUnavailable
	case errors.Is(err, ErrWhitelistWriteFailed):
		return auditErrWhitelistFailed
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrRejected):
		return auditErrRejected
	case errors.Is(err, ErrLockedOut):
		return auditErrLockedOut
	case errors.Is(err, ErrStepUpDeclined):
		return auditErrStepUpDeclined
	case errors.Is(err, ErrCooldownActive):
		return auditErrCooldown
	case errors.Is(err, ErrIssueRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrAlreadyEnrolled):
		return auditErrAlreadyEnrolled
	default:
		return auditErrInternal
	}
}
