package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	goSignIn "github.com/MrEthical07/goSignIn"
	"github.com/MrEthical07/goSignIn/identity"
)

const maxBodyBytes = 4 << 10

type identityRequest struct {
	Channel string `json:"channel"`
	Address string `json:"address"`
}

type codeRequest struct {
	identityRequest
	Code string `json:"code"`
}

type stepUpRequest struct {
	identityRequest
	Result string `json:"result"`
}

type businessRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

var errBadRequest = errors.New("bad request")

func (req identityRequest) ref() (goSignIn.Identity, error) {
	channel, err := identity.ParseChannel(req.Channel)
	if err != nil {
		return goSignIn.Identity{}, fmt.Errorf("%w: unknown channel %q", goSignIn.ErrInvalidIdentity, req.Channel)
	}
	return identity.New(channel, req.Address), nil
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func queryRef(r *http.Request) (goSignIn.Identity, error) {
	q := r.URL.Query()
	return identityRequest{Channel: q.Get("channel"), Address: q.Get("address")}.ref()
}

// BeginSignIn handles POST /v1/signin.
func (h *Handlers) BeginSignIn(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	ref, err := req.ref()
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	a, err := h.engine.BeginSignIn(r.Context(), ref)
	h.writeAttempt(w, r, http.StatusCreated, a, err)
}

// SubmitCode handles POST /v1/signin/code.
func (h *Handlers) SubmitCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	ref, err := req.ref()
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	a, err := h.engine.SubmitCode(r.Context(), ref, req.Code)
	h.writeAttempt(w, r, http.StatusOK, a, err)
}

// Resend handles POST /v1/signin/resend.
func (h *Handlers) Resend(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	ref, err := req.ref()
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	a, err := h.engine.Resend(r.Context(), ref)
	h.writeAttempt(w, r, http.StatusOK, a, err)
}

// StepUp handles POST /v1/signin/stepup.
func (h *Handlers) StepUp(w http.ResponseWriter, r *http.Request) {
	var req stepUpRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	ref, err := req.ref()
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	result, err := parseStepUp(req.Result)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	a, err := h.engine.StepUpRespond(r.Context(), ref, result)
	h.writeAttempt(w, r, http.StatusOK, a, err)
}

// BusinessSignIn handles POST /v1/signin/business.
func (h *Handlers) BusinessSignIn(w http.ResponseWriter, r *http.Request) {
	var req businessRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	a, err := h.engine.BeginBusinessSignIn(r.Context(), req.Email, req.Password)
	h.writeAttempt(w, r, http.StatusOK, a, err)
}

// EnrollBusiness handles POST /v1/business/accounts.
func (h *Handlers) EnrollBusiness(w http.ResponseWriter, r *http.Request) {
	var req businessRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	a, err := h.engine.EnrollBusiness(r.Context(), req.Email, req.Password)
	h.writeAttempt(w, r, http.StatusCreated, a, err)
}

// GetAttempt handles GET /v1/signin.
func (h *Handlers) GetAttempt(w http.ResponseWriter, r *http.Request) {
	ref, err := queryRef(r)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	a, err := h.engine.Attempt(r.Context(), ref)
	h.writeAttempt(w, r, http.StatusOK, a, err)
}

// Abandon handles DELETE /v1/signin.
func (h *Handlers) Abandon(w http.ResponseWriter, r *http.Request) {
	ref, err := queryRef(r)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	if err := h.engine.Abandon(r.Context(), ref); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeDevice handles DELETE /v1/devices.
func (h *Handlers) RevokeDevice(w http.ResponseWriter, r *http.Request) {
	ref, err := queryRef(r)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	if err := h.engine.RevokeDevice(r.Context(), ref); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseStepUp(s string) (goSignIn.StepUpResult, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "confirmed":
		return goSignIn.StepUpConfirmed, nil
	case "declined":
		return goSignIn.StepUpDeclined, nil
	case "unavailable":
		return goSignIn.StepUpUnavailable, nil
	default:
		return 0, fmt.Errorf("%w: unknown step-up result %q", errBadRequest, s)
	}
}
