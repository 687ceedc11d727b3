package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goSignIn "github.com/MrEthical07/goSignIn"
	"github.com/MrEthical07/goSignIn/password"
)

const testCode = "271828"

type codeBackend struct{}

func (codeBackend) SendCode(context.Context, goSignIn.Identity) error { return nil }
func (codeBackend) VerifyCode(_ context.Context, _ goSignIn.Identity, code string) (bool, error) {
	return code == testCode, nil
}

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newServer(t *testing.T, mutate func(*goSignIn.Config)) (*httptest.Server, *stepClock) {
	t.Helper()
	cfg := goSignIn.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	clock := &stepClock{t: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)}
	engine, err := goSignIn.New().
		WithConfig(cfg).
		WithBackend(codeBackend{}).
		WithClock(clock).
		Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	srv := httptest.NewServer(NewRouter(engine, nil))
	t.Cleanup(func() {
		srv.Close()
		engine.Close()
	})
	return srv, clock
}

func call(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp, env
}

func TestPhoneSignInOverHTTP(t *testing.T) {
	srv, _ := newServer(t, nil)
	ident := `"channel":"phone","address":"+2348011111111"`

	resp, env := call(t, srv, http.MethodPost, "/v1/signin", "{"+ident+"}")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%+v)", resp.StatusCode, env.Error)
	}
	if env.Attempt.State != "challenge_issued" || env.Attempt.Challenge == nil || env.Attempt.AttemptsRemaining != 3 {
		t.Fatalf("unexpected attempt %+v", env.Attempt)
	}
	if env.Attempt.Address == "+2348011111111" {
		t.Fatal("full address leaked in response")
	}

	resp, env = call(t, srv, http.MethodPost, "/v1/signin/code", "{"+ident+`,"code":"000000"}`)
	if resp.StatusCode != http.StatusUnauthorized || env.Error.Code != "rejected" || env.Attempt.AttemptsRemaining != 2 {
		t.Fatalf("unexpected rejection response %d %+v %+v", resp.StatusCode, env.Error, env.Attempt)
	}

	resp, env = call(t, srv, http.MethodPost, "/v1/signin/code", "{"+ident+`,"code":"`+testCode+`"}`)
	if resp.StatusCode != http.StatusOK || env.Attempt.State != "authenticated" {
		t.Fatalf("unexpected success response %d %+v", resp.StatusCode, env.Attempt)
	}
	if env.Attempt.Outcome == nil || !env.Attempt.Outcome.Authenticated || !env.Attempt.Outcome.Whitelisted {
		t.Fatalf("unexpected outcome %+v", env.Attempt.Outcome)
	}

	resp, env = call(t, srv, http.MethodGet, "/v1/signin?channel=phone&address=%2B2348011111111", "")
	if resp.StatusCode != http.StatusOK || env.Attempt.State != "authenticated" {
		t.Fatalf("GET attempt: %d %+v", resp.StatusCode, env.Attempt)
	}

	resp, _ = call(t, srv, http.MethodDelete, "/v1/signin?channel=phone&address=%2B2348011111111", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE attempt: %d", resp.StatusCode)
	}
	resp, env = call(t, srv, http.MethodGet, "/v1/signin?channel=phone&address=%2B2348011111111", "")
	if resp.StatusCode != http.StatusNotFound || env.Error.Code != "no_active_attempt" {
		t.Fatalf("GET after delete: %d %+v", resp.StatusCode, env.Error)
	}
}

func TestCooldownSetsRetryAfter(t *testing.T) {
	srv, clock := newServer(t, nil)
	body := `{"channel":"email","address":"user@example.com"}`

	if resp, _ := call(t, srv, http.MethodPost, "/v1/signin", body); resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	clock.Advance(15 * time.Second)

	resp, env := call(t, srv, http.MethodPost, "/v1/signin/resend", body)
	if resp.StatusCode != http.StatusTooManyRequests || env.Error.Code != "cooldown_active" {
		t.Fatalf("expected 429 cooldown, got %d %+v", resp.StatusCode, env.Error)
	}
	if got := resp.Header.Get("Retry-After"); got != "45" {
		t.Fatalf("expected Retry-After 45, got %q", got)
	}
}

func TestLockoutStatus(t *testing.T) {
	srv, _ := newServer(t, nil)
	ident := `"channel":"email","address":"user@example.com"`
	call(t, srv, http.MethodPost, "/v1/signin", "{"+ident+"}")

	var resp *http.Response
	var env envelope
	for i := 0; i < 4; i++ {
		resp, env = call(t, srv, http.MethodPost, "/v1/signin/code", "{"+ident+`,"code":"999999"}`)
	}
	if resp.StatusCode != http.StatusLocked || env.Error.Code != "locked_out" || env.Attempt.State != "locked_out" {
		t.Fatalf("expected 423 locked out, got %d %+v %+v", resp.StatusCode, env.Error, env.Attempt)
	}
}

func TestInteractiveStepUpOverHTTP(t *testing.T) {
	srv, _ := newServer(t, func(c *goSignIn.Config) { c.StepUp.Interactive = true })
	ident := `"channel":"email","address":"user@example.com"`
	call(t, srv, http.MethodPost, "/v1/signin", "{"+ident+"}")

	_, env := call(t, srv, http.MethodPost, "/v1/signin/code", "{"+ident+`,"code":"`+testCode+`"}`)
	if env.Attempt.State != "step_up" {
		t.Fatalf("expected step_up, got %+v", env.Attempt)
	}

	resp, env := call(t, srv, http.MethodPost, "/v1/signin/stepup", "{"+ident+`,"result":"maybe"}`)
	if resp.StatusCode != http.StatusBadRequest || env.Error.Code != "bad_request" {
		t.Fatalf("expected 400 for unknown result, got %d %+v", resp.StatusCode, env.Error)
	}

	resp, env = call(t, srv, http.MethodPost, "/v1/signin/stepup", "{"+ident+`,"result":"confirmed"}`)
	if resp.StatusCode != http.StatusOK || env.Attempt.State != "authenticated" || env.Attempt.StepUp != "confirmed" {
		t.Fatalf("unexpected step-up response %d %+v", resp.StatusCode, env.Attempt)
	}

	resp, _ = call(t, srv, http.MethodDelete, "/v1/devices?channel=email&address=user@example.com", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("revoke: expected 204, got %d", resp.StatusCode)
	}
}

func TestBadRequests(t *testing.T) {
	srv, _ := newServer(t, nil)
	cases := []struct {
		method, path, body string
		status             int
		code               string
	}{
		{http.MethodPost, "/v1/signin", `{"channel":"fax","address":"123"}`, http.StatusBadRequest, "invalid_identity"},
		{http.MethodPost, "/v1/signin", `{"channel":"phone","address":"12"}`, http.StatusBadRequest, "invalid_identity"},
		{http.MethodPost, "/v1/signin", `{"channel":"phone"`, http.StatusBadRequest, "bad_request"},
		{http.MethodPost, "/v1/signin", `{"channel":"phone","address":"+2348011111111","extra":1}`, http.StatusBadRequest, "bad_request"},
		{http.MethodPost, "/v1/signin/code", `{"channel":"email","address":"a@b.co","code":"123456"}`, http.StatusNotFound, "no_active_attempt"},
		{http.MethodPost, "/v1/signin/business", `{"email":"a@b.co","password":"SufficientlyLong1!"}`, http.StatusNotImplemented, "not_configured"},
	}
	for _, tc := range cases {
		resp, env := call(t, srv, tc.method, tc.path, tc.body)
		if resp.StatusCode != tc.status || env.Error == nil || env.Error.Code != tc.code {
			t.Fatalf("%s %s %s: expected %d/%s, got %d %+v", tc.method, tc.path, tc.body, tc.status, tc.code, resp.StatusCode, env.Error)
		}
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t, nil)
	resp, err := srv.Client().Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestBusinessEnrolmentOverHTTP(t *testing.T) {
	hasher, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	verifier, err := password.NewLocalVerifier(hasher, password.NewMemoryCredentials())
	if err != nil {
		t.Fatalf("NewLocalVerifier error: %v", err)
	}
	engine, err := goSignIn.New().
		WithBackend(codeBackend{}).
		WithPasswordVerifier(verifier).
		Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	srv := httptest.NewServer(NewRouter(engine, nil))
	t.Cleanup(func() {
		srv.Close()
		engine.Close()
	})

	body := `{"email":"payroll@example.com","password":"PayrollDesk2026!"}`
	resp, env := call(t, srv, http.MethodPost, "/v1/business/accounts", body)
	if resp.StatusCode != http.StatusCreated || env.Attempt.State != "idle" || env.Attempt.Flow != "business" {
		t.Fatalf("enrol: unexpected %d %+v %+v", resp.StatusCode, env.Attempt, env.Error)
	}

	resp, env = call(t, srv, http.MethodPost, "/v1/business/accounts", body)
	if resp.StatusCode != http.StatusConflict || env.Error.Code != "already_enrolled" {
		t.Fatalf("second enrol: expected 409 already_enrolled, got %d %+v", resp.StatusCode, env.Error)
	}

	resp, env = call(t, srv, http.MethodPost, "/v1/business/accounts", `{"email":"ops@example.com","password":"Payroll Desk 2026!"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity || env.Error.Code != "password_policy" {
		t.Fatalf("policy: expected 422 password_policy, got %d %+v", resp.StatusCode, env.Error)
	}

	resp, env = call(t, srv, http.MethodPost, "/v1/signin/business", body)
	if resp.StatusCode != http.StatusOK || env.Attempt.State != "challenge_issued" {
		t.Fatalf("sign-in after enrolment: %d %+v %+v", resp.StatusCode, env.Attempt, env.Error)
	}
}
