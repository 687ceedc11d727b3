package goSignIn

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goSignIn/truststore"
)

func TestTrustedDeviceSkipsStepUp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := Email("user@example.com")
	env.bio.available = true
	env.bio.confirm = true

	if err := env.trust.Whitelist(ctx, ref); err != nil {
		t.Fatalf("Whitelist error: %v", err)
	}

	mustBegin(t, env.engine, ref)
	a, err := env.engine.SubmitCode(ctx, ref, goodCode)
	if err != nil {
		t.Fatalf("SubmitCode error: %v", err)
	}
	if a.State != StateAuthenticated || !a.Outcome.TrustedDevice {
		t.Fatalf("expected trusted authentication, got %+v", a)
	}
	if a.Outcome.Whitelisted {
		t.Fatal("trusted device should not be whitelisted again")
	}
	if env.bio.promptCount() != 0 {
		t.Fatalf("trusted device was prompted %d times", env.bio.promptCount())
	}
}

func TestStepUpConfirmedWhitelistsDevice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := Phone("+2348011111111")
	env.bio.available = true
	env.bio.confirm = true

	mustBegin(t, env.engine, ref)
	a, err := env.engine.SubmitCode(ctx, ref, goodCode)
	if err != nil {
		t.Fatalf("SubmitCode error: %v", err)
	}
	if a.StepUp != StepUpConfirmed || !a.Outcome.Whitelisted {
		t.Fatalf("unexpected outcome %+v", a.Outcome)
	}
	if env.bio.promptCount() != 1 {
		t.Fatalf("expected one prompt, got %d", env.bio.promptCount())
	}

	// The next sign-in from the same identity is trusted.
	env.clock.Advance(61 * time.Second)
	mustBegin(t, env.engine, ref)
	a, err = env.engine.SubmitCode(ctx, ref, goodCode)
	if err != nil || !a.Outcome.TrustedDevice {
		t.Fatalf("expected trusted second sign-in, got %+v, %v", a.Outcome, err)
	}
	if env.bio.promptCount() != 1 {
		t.Fatal("trusted second sign-in prompted again")
	}
}

func TestStepUpDeclinedLeavesDeviceUntrusted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := Email("user@example.com")
	env.bio.available = true
	env.bio.confirm = false

	mustBegin(t, env.engine, ref)
	a, err := env.engine.SubmitCode(ctx, ref, goodCode)
	if !errors.Is(err, ErrStepUpDeclined) {
		t.Fatalf("expected ErrStepUpDeclined, got %v", err)
	}
	if a.State != StateFailed || a.Outcome.Failure != FailureStepUpDeclined || a.Outcome.Authenticated {
		t.Fatalf("unexpected snapshot %+v", a)
	}

	trusted, err := env.trust.IsTrusted(ctx, ref)
	if err != nil || trusted {
		t.Fatalf("declined step-up must not whitelist, got %v, %v", trusted, err)
	}
}

func TestStepUpPromptErrorCountsAsDeclined(t *testing.T) {
	env := newTestEnv(t)
	env.bio.available = true
	env.bio.err = errors.New("sensor timeout")
	ref := Email("user@example.com")

	mustBegin(t, env.engine, ref)
	if _, err := env.engine.SubmitCode(context.Background(), ref, goodCode); !errors.Is(err, ErrStepUpDeclined) {
		t.Fatalf("expected ErrStepUpDeclined, got %v", err)
	}
}

func TestTrustReadFailureForcesStepUp(t *testing.T) {
	store := &flakyTrustStore{
		Memory:  truststore.NewMemory(nil),
		readErr: errConnRefused,
	}
	env := newTestEnv(t, withTrustStore(store))
	ctx := context.Background()
	ref := Email("user@example.com")
	env.bio.available = true
	env.bio.confirm = true

	// Even a previously trusted device is treated as untrusted.
	if err := store.Memory.Whitelist(ctx, ref); err != nil {
		t.Fatalf("Whitelist error: %v", err)
	}

	mustBegin(t, env.engine, ref)
	a, err := env.engine.SubmitCode(ctx, ref, goodCode)
	if err != nil {
		t.Fatalf("SubmitCode error: %v", err)
	}
	if env.bio.promptCount() != 1 {
		t.Fatalf("expected step-up prompt on trust read failure, got %d", env.bio.promptCount())
	}
	if a.Outcome.TrustedDevice {
		t.Fatal("device reported trusted despite read failure")
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricTrustReadFailure]; got != 1 {
		t.Fatalf("expected one trust read failure, got %d", got)
	}
}

func TestWhitelistFailureIsWarningByDefault(t *testing.T) {
	store := &flakyTrustStore{
		Memory:   truststore.NewMemory(nil),
		writeErr: errConnRefused,
	}
	env := newTestEnv(t, withTrustStore(store))
	ref := Email("user@example.com")

	mustBegin(t, env.engine, ref)
	a, err := env.engine.SubmitCode(context.Background(), ref, goodCode)
	if err != nil {
		t.Fatalf("SubmitCode error: %v", err)
	}
	if a.State != StateAuthenticated || !a.Outcome.Authenticated {
		t.Fatalf("expected authentication despite whitelist failure, got %+v", a)
	}
	if a.Outcome.Whitelisted || !errors.Is(a.Outcome.Warning, ErrWhitelistWriteFailed) {
		t.Fatalf("expected whitelist warning, got %+v", a.Outcome)
	}
}

func TestWhitelistFailureFatalWhenConfigured(t *testing.T) {
	store := &flakyTrustStore{
		Memory:   truststore.NewMemory(nil),
		writeErr: errConnRefused,
	}
	env := newTestEnv(t,
		withConfig(func(c *Config) { c.Trust.WhitelistFailureFatal = true }),
		withTrustStore(store),
	)
	ref := Email("user@example.com")

	mustBegin(t, env.engine, ref)
	a, err := env.engine.SubmitCode(context.Background(), ref, goodCode)
	if !errors.Is(err, ErrWhitelistWriteFailed) {
		t.Fatalf("expected ErrWhitelistWriteFailed, got %v", err)
	}
	if a.State != StateFailed || a.Outcome.Failure != FailureWhitelistWriteFailed {
		t.Fatalf("unexpected snapshot %+v", a)
	}
}

func TestInteractiveStepUp(t *testing.T) {
	env := newTestEnv(t, withConfig(func(c *Config) { c.StepUp.Interactive = true }))
	ctx := context.Background()
	ref := Phone("+2348011111111")

	if _, err := env.engine.StepUpRespond(ctx, ref, StepUpConfirmed); !errors.Is(err, ErrNoActiveAttempt) {
		t.Fatalf("expected ErrNoActiveAttempt, got %v", err)
	}

	mustBegin(t, env.engine, ref)
	if _, err := env.engine.StepUpRespond(ctx, ref, StepUpConfirmed); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition before code, got %v", err)
	}

	a, err := env.engine.SubmitCode(ctx, ref, goodCode)
	if err != nil {
		t.Fatalf("SubmitCode error: %v", err)
	}
	if a.State != StateStepUp {
		t.Fatalf("expected parked step-up, got %s", a.State)
	}
	if env.bio.promptCount() != 0 {
		t.Fatal("interactive mode must not prompt the built-in biometric")
	}

	if _, err := env.engine.StepUpRespond(ctx, ref, StepUpResult(42)); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected unknown result to be refused, got %v", err)
	}

	a, err = env.engine.StepUpRespond(ctx, ref, StepUpConfirmed)
	if err != nil {
		t.Fatalf("StepUpRespond error: %v", err)
	}
	if a.State != StateAuthenticated || a.StepUp != StepUpConfirmed || !a.Outcome.Whitelisted {
		t.Fatalf("unexpected snapshot %+v", a)
	}
}

func TestInteractiveStepUpDeclined(t *testing.T) {
	env := newTestEnv(t, withConfig(func(c *Config) { c.StepUp.Interactive = true }))
	ctx := context.Background()
	ref := Email("user@example.com")

	mustBegin(t, env.engine, ref)
	if _, err := env.engine.SubmitCode(ctx, ref, goodCode); err != nil {
		t.Fatalf("SubmitCode error: %v", err)
	}
	a, err := env.engine.StepUpRespond(ctx, ref, StepUpDeclined)
	if !errors.Is(err, ErrStepUpDeclined) || a.State != StateFailed {
		t.Fatalf("expected declined failure, got %s, %v", a.State, err)
	}
}

func TestRevokeDeviceRequiresStepUpAgain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := Email("user@example.com")
	env.bio.available = true
	env.bio.confirm = true

	if err := env.trust.Whitelist(ctx, ref); err != nil {
		t.Fatalf("Whitelist error: %v", err)
	}
	if err := env.engine.RevokeDevice(ctx, ref); err != nil {
		t.Fatalf("RevokeDevice error: %v", err)
	}

	mustBegin(t, env.engine, ref)
	if _, err := env.engine.SubmitCode(ctx, ref, goodCode); err != nil {
		t.Fatalf("SubmitCode error: %v", err)
	}
	if env.bio.promptCount() != 1 {
		t.Fatalf("expected step-up after revoke, got %d prompts", env.bio.promptCount())
	}
}

func TestReceiptIssuedAndVerified(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}
	env := newTestEnv(t, withConfig(func(c *Config) {
		c.Receipt.PrivateKey = priv
		c.Receipt.PublicKey = pub
		c.Receipt.Audience = "mobile-app"
	}))
	ctx := context.Background()
	ref := Phone("+2348011111111")

	mustBegin(t, env.engine, ref)
	a, err := env.engine.SubmitCode(ctx, ref, goodCode)
	if err != nil {
		t.Fatalf("SubmitCode error: %v", err)
	}
	if a.Outcome.Receipt == "" {
		t.Fatal("expected a signed receipt")
	}

	claims, err := env.engine.VerifyReceipt(a.Outcome.Receipt)
	if err != nil {
		t.Fatalf("VerifyReceipt error: %v", err)
	}
	if claims.Subject != ref.Key() || claims.Flow != "phone" || claims.Channel != "phone" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.Trusted || claims.StepUp != StepUpUnavailable.String() {
		t.Fatalf("unexpected trust claims %+v", claims)
	}

	tampered := a.Outcome.Receipt[:len(a.Outcome.Receipt)-2] + "xx"
	if _, err := env.engine.VerifyReceipt(tampered); !errors.Is(err, ErrReceiptInvalid) {
		t.Fatalf("expected ErrReceiptInvalid for tampered receipt, got %v", err)
	}

	env.clock.Advance(6 * time.Minute)
	if _, err := env.engine.VerifyReceipt(a.Outcome.Receipt); !errors.Is(err, ErrReceiptInvalid) {
		t.Fatalf("expected expired receipt to be invalid, got %v", err)
	}
}

func TestNoReceiptWithoutKeys(t *testing.T) {
	env := newTestEnv(t)
	ref := Email("user@example.com")
	mustBegin(t, env.engine, ref)

	a, err := env.engine.SubmitCode(context.Background(), ref, goodCode)
	if err != nil {
		t.Fatalf("SubmitCode error: %v", err)
	}
	if a.Outcome.Receipt != "" {
		t.Fatal("receipt minted without a signing key")
	}
	if _, err := env.engine.VerifyReceipt("a.b.c"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

func TestReceiptHS256(t *testing.T) {
	secret := []byte(strings.Repeat("k", 32))
	env := newTestEnv(t, withConfig(func(c *Config) {
		c.Receipt.SigningMethod = "hs256"
		c.Receipt.PrivateKey = secret
	}))
	ref := Email("user@example.com")
	mustBegin(t, env.engine, ref)

	a, err := env.engine.SubmitCode(context.Background(), ref, goodCode)
	if err != nil {
		t.Fatalf("SubmitCode error: %v", err)
	}
	claims, err := env.engine.VerifyReceipt(a.Outcome.Receipt)
	if err != nil || claims.Subject != ref.Key() {
		t.Fatalf("VerifyReceipt: %+v, %v", claims, err)
	}
}
