package goSignIn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSignIn/truststore"
)

const goodCode = "482913"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeBackend accepts goodCode for every identity.
type fakeBackend struct {
	mu        sync.Mutex
	sendErr   error
	verifyErr error
	sends     int
	verifies  int
	sendGate  chan struct{}
}

func (b *fakeBackend) SendCode(ctx context.Context, _ Identity) error {
	b.mu.Lock()
	gate := b.sendGate
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.sends++
	return b.sendErr
}

func (b *fakeBackend) VerifyCode(_ context.Context, _ Identity, code string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.verifies++
	if b.verifyErr != nil {
		return false, b.verifyErr
	}
	return code == goodCode, nil
}

func (b *fakeBackend) setSendErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sendErr = err
}

func (b *fakeBackend) setVerifyErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.verifyErr = err
}

func (b *fakeBackend) counts() (sends, verifies int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sends, b.verifies
}

type fakeBiometric struct {
	mu        sync.Mutex
	available bool
	confirm   bool
	err       error
	prompts   int
}

func (f *fakeBiometric) IsAvailable(context.Context) bool {
	return f.available
}

func (f *fakeBiometric) Confirm(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts++
	return f.confirm, f.err
}

func (f *fakeBiometric) promptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts
}

// flakyTrustStore wraps a Memory store and fails reads or writes on demand.
type flakyTrustStore struct {
	*truststore.Memory
	readErr  error
	writeErr error
}

func (s *flakyTrustStore) IsTrusted(ctx context.Context, ref Identity) (bool, error) {
	if s.readErr != nil {
		return false, s.readErr
	}
	return s.Memory.IsTrusted(ctx, ref)
}

func (s *flakyTrustStore) Whitelist(ctx context.Context, ref Identity) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	return s.Memory.Whitelist(ctx, ref)
}

var errConnRefused = errors.New("dial tcp 10.0.0.7:443: connection refused")

type testEnv struct {
	engine  *Engine
	clock   *fakeClock
	backend *fakeBackend
	bio     *fakeBiometric
	trust   *truststore.Memory
}

type envOption func(*Builder, *testEnv)

func withConfig(mutate func(*Config)) envOption {
	return func(b *Builder, _ *testEnv) {
		cfg := DefaultConfig()
		mutate(&cfg)
		b.WithConfig(cfg)
	}
}

func withTrustStore(store TrustStore) envOption {
	return func(b *Builder, _ *testEnv) {
		b.WithTrustStore(store)
	}
}

func withBuilder(fn func(*Builder)) envOption {
	return func(b *Builder, _ *testEnv) {
		fn(b)
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:   newFakeClock(),
		backend: &fakeBackend{},
		bio:     &fakeBiometric{},
	}
	env.trust = truststore.NewMemory(env.clock.Now)

	b := New().
		WithBackend(env.backend).
		WithBiometric(env.bio).
		WithClock(env.clock).
		WithTrustStore(env.trust)
	for _, opt := range opts {
		opt(b, env)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func mustBegin(t *testing.T, e *Engine, ref Identity) Attempt {
	t.Helper()
	a, err := e.BeginSignIn(context.Background(), ref)
	if err != nil {
		t.Fatalf("BeginSignIn(%s) error: %v", ref.Masked(), err)
	}
	if a.State != StateChallengeIssued {
		t.Fatalf("expected %s, got %s", StateChallengeIssued, a.State)
	}
	return a
}
