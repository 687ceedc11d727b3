package cooldown

import (
	"sync"
	"time"
)

// DefaultWindow is the resend wait applied when Start is given a non-positive duration.
const DefaultWindow = 60 * time.Second

// Timer tracks one resend deadline per key.
//
// Timer is pure state over the injected clock: it owns no goroutines or
// runtime timers, and expired windows are dropped on the next read.
type Timer struct {
	mu        sync.Mutex
	deadlines map[string]time.Time
	now       func() time.Time
}

// New returns a Timer reading time from now. A nil now uses time.Now.
func New(now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{
		deadlines: make(map[string]time.Time),
		now:       now,
	}
}

// Start opens (or restarts) the window for key.
func (t *Timer) Start(key string, d time.Duration) time.Time {
	if d <= 0 {
		d = DefaultWindow
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	deadline := t.now().Add(d)
	t.deadlines[key] = deadline
	return deadline
}

// Remaining returns how long until key may be issued again. Zero means the
// window expired or was never started.
func (t *Timer) Remaining(key string) time.Duration {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	deadline, ok := t.deadlines[key]
	if !ok {
		return 0
	}
	left := deadline.Sub(t.now())
	if left <= 0 {
		delete(t.deadlines, key)
		return 0
	}
	return left
}

// Eligible reports whether the window for key has closed.
func (t *Timer) Eligible(key string) bool {
	return t.Remaining(key) == 0
}

// Clear drops any window for key.
func (t *Timer) Clear(key string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	delete(t.deadlines, key)
	t.mu.Unlock()
}

// Len returns the number of windows currently held, expired or not.
func (t *Timer) Len() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.deadlines)
}
