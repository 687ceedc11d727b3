package httpapi

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	goSignIn "github.com/MrEthical07/goSignIn"
	"go.uber.org/zap"
)

type challengeView struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type outcomeView struct {
	Authenticated bool   `json:"authenticated"`
	Failure       string `json:"failure,omitempty"`
	TrustedDevice bool   `json:"trusted_device"`
	Whitelisted   bool   `json:"whitelisted"`
	Warning       string `json:"warning,omitempty"`
	Receipt       string `json:"receipt,omitempty"`
}

type attemptView struct {
	Channel            string         `json:"channel"`
	Address            string         `json:"address"`
	Flow               string         `json:"flow"`
	State              string         `json:"state"`
	Challenge          *challengeView `json:"challenge,omitempty"`
	AttemptsRemaining  int            `json:"attempts_remaining,omitempty"`
	ResendAfterSeconds int            `json:"resend_after_seconds,omitempty"`
	StepUp             string         `json:"step_up,omitempty"`
	Outcome            *outcomeView   `json:"outcome,omitempty"`
}

type errorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Attempt *attemptView `json:"attempt,omitempty"`
	Error   *errorView   `json:"error,omitempty"`
}

func viewOf(a goSignIn.Attempt) *attemptView {
	v := &attemptView{
		Channel:            a.Identity.Channel.String(),
		Address:            a.Identity.Masked(),
		Flow:               a.Flow.String(),
		State:              a.State.String(),
		AttemptsRemaining:  a.AttemptsRemaining,
		ResendAfterSeconds: ceilSeconds(a.ResendAfter),
	}
	if a.StepUp != 0 {
		v.StepUp = a.StepUp.String()
	}
	if a.Challenge != nil {
		v.Challenge = &challengeView{ID: a.Challenge.ID, ExpiresAt: a.Challenge.ExpiresAt}
	}
	if o := a.Outcome; o != nil {
		v.Outcome = &outcomeView{
			Authenticated: o.Authenticated,
			TrustedDevice: o.TrustedDevice,
			Whitelisted:   o.Whitelisted,
			Receipt:       o.Receipt,
		}
		if o.Failure != goSignIn.FailureNone {
			v.Outcome.Failure = o.Failure.String()
		}
		if o.Warning != nil {
			v.Outcome.Warning = errorCode(o.Warning)
		}
	}
	return v
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func (h *Handlers) writeAttempt(w http.ResponseWriter, r *http.Request, okStatus int, a goSignIn.Attempt, err error) {
	if err != nil {
		h.writeError(w, r, err, viewOf(a))
		return
	}
	writeJSON(w, okStatus, envelope{Attempt: viewOf(a)})
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error, attempt *attemptView) {
	status := statusOf(err)
	code := errorCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("sign-in request failed",
			zap.String("path", r.URL.Path),
			zap.String("code", code),
			zap.Error(err),
		)
	}

	var cd *goSignIn.CooldownError
	if errors.As(err, &cd) {
		w.Header().Set("Retry-After", strconv.Itoa(ceilSeconds(cd.Remaining)))
	}
	writeJSON(w, status, envelope{
		Attempt: attempt,
		Error:   &errorView{Code: code, Message: err.Error()},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorCode maps engine errors to stable response codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, errBadRequest):
		return "bad_request"
	case errors.Is(err, goSignIn.ErrInvalidIdentity):
		return "invalid_identity"
	case errors.Is(err, goSignIn.ErrMalformedCode):
		return "malformed_code"
	case errors.Is(err, goSignIn.ErrChallengeExpired):
		return "challenge_expired"
	case errors.Is(err, goSignIn.ErrChallengeAlreadyConsumed):
		return "challenge_consumed"
	case errors.Is(err, goSignIn.ErrRejected):
		return "rejected"
	case errors.Is(err, goSignIn.ErrLockedOut):
		return "locked_out"
	case errors.Is(err, goSignIn.ErrStepUpDeclined):
		return "step_up_declined"
	case errors.Is(err, goSignIn.ErrWhitelistWriteFailed):
		return "whitelist_write_failed"
	case errors.Is(err, goSignIn.ErrCooldownActive):
		return "cooldown_active"
	case errors.Is(err, goSignIn.ErrIssueRateLimited):
		return "rate_limited"
	case errors.Is(err, goSignIn.ErrNoActiveAttempt):
		return "no_active_attempt"
	case errors.Is(err, goSignIn.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, goSignIn.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, goSignIn.ErrPasswordPolicy):
		return "password_policy"
	case errors.Is(err, goSignIn.ErrAlreadyEnrolled):
		return "already_enrolled"
	case errors.Is(err, goSignIn.ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, goSignIn.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, goSignIn.ErrEngineNotReady):
		return "not_configured"
	default:
		return "internal_error"
	}
}

func statusOf(err error) int {
	switch errorCode(err) {
	case "bad_request", "invalid_identity", "malformed_code":
		return http.StatusBadRequest
	case "rejected", "invalid_credentials":
		return http.StatusUnauthorized
	case "step_up_declined":
		return http.StatusForbidden
	case "no_active_attempt":
		return http.StatusNotFound
	case "invalid_transition", "challenge_consumed", "already_enrolled":
		return http.StatusConflict
	case "challenge_expired":
		return http.StatusGone
	case "password_policy":
		return http.StatusUnprocessableEntity
	case "locked_out":
		return http.StatusLocked
	case "cooldown_active", "rate_limited":
		return http.StatusTooManyRequests
	case "backend_unavailable", "store_unavailable", "whitelist_write_failed":
		return http.StatusServiceUnavailable
	case "not_configured":
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
