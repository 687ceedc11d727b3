package limiters

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultAttemptThreshold is the number of rejected codes that triggers lockout.
const DefaultAttemptThreshold = 3

var (
	// ErrCounterUnavailable indicates the attempt counter backend is unreachable.
	ErrCounterUnavailable = errors.New("attempt counter unavailable")
)

// Decision is the policy verdict after a rejected code.
type Decision uint8

const (
	// Retry means the caller may submit another code for the same challenge.
	Retry Decision = iota + 1
	// Lockout means the threshold was reached; a fresh challenge is required.
	Lockout
)

func (d Decision) String() string {
	switch d {
	case Retry:
		return "retry"
	case Lockout:
		return "lockout"
	default:
		return "unknown"
	}
}

// AttemptConfig holds the lockout threshold and the counter window.
type AttemptConfig struct {
	Threshold int
	Window    time.Duration // 0 = counter never expires on its own
}

// AttemptCounter stores failure counts per identity key.
type AttemptCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int, error)
	Get(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
}

// AttemptPolicy decides Retry or Lockout from a failure counter.
type AttemptPolicy struct {
	counter AttemptCounter
	config  AttemptConfig
}

// NewAttemptPolicy builds a policy over counter. A nil counter falls back to
// an in-process MemoryCounter.
func NewAttemptPolicy(counter AttemptCounter, cfg AttemptConfig) *AttemptPolicy {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultAttemptThreshold
	}
	if counter == nil {
		counter = NewMemoryCounter(nil)
	}
	return &AttemptPolicy{counter: counter, config: cfg}
}

// Threshold returns the configured lockout threshold.
func (p *AttemptPolicy) Threshold() int {
	if p == nil {
		return DefaultAttemptThreshold
	}
	return p.config.Threshold
}

// RecordFailure counts one rejected code for key.
func (p *AttemptPolicy) RecordFailure(ctx context.Context, key string) (Decision, error) {
	if p == nil {
		return Retry, nil
	}
	count, err := p.counter.Incr(ctx, key, p.config.Window)
	if err != nil {
		return Lockout, err
	}
	if count >= p.config.Threshold {
		return Lockout, nil
	}
	return Retry, nil
}

// Reset clears the failure count for key.
func (p *AttemptPolicy) Reset(ctx context.Context, key string) error {
	if p == nil {
		return nil
	}
	return p.counter.Reset(ctx, key)
}

// Failures returns the current failure count for key.
func (p *AttemptPolicy) Failures(ctx context.Context, key string) (int, error) {
	if p == nil {
		return 0, nil
	}
	return p.counter.Get(ctx, key)
}

// Remaining returns how many more rejected codes key may submit before lockout.
func (p *AttemptPolicy) Remaining(ctx context.Context, key string) (int, error) {
	failures, err := p.Failures(ctx, key)
	if err != nil {
		return 0, err
	}
	left := p.Threshold() - failures
	if left < 0 {
		left = 0
	}
	return left, nil
}

type memoryEntry struct {
	count       int
	windowStart time.Time
	window      time.Duration
}

// MemoryCounter is an in-process AttemptCounter.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCounter returns an empty MemoryCounter. A nil now uses time.Now.
func NewMemoryCounter(now func() time.Time) *MemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{entries: make(map[string]memoryEntry), now: now}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.entries[key]
	if !ok || e.expired(now) {
		e = memoryEntry{windowStart: now, window: window}
	}
	e.count++
	c.entries[key] = e
	return e.count, nil
}

func (c *MemoryCounter) Get(_ context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return 0, nil
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		return 0, nil
	}
	return e.count, nil
}

func (c *MemoryCounter) Reset(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (e memoryEntry) expired(now time.Time) bool {
	return e.window > 0 && !now.Before(e.windowStart.Add(e.window))
}

// RedisCounter keeps failure counts in Redis so every engine replica sees
// the same attempts.
type RedisCounter struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisCounter creates a Redis-backed counter. An empty prefix uses "sia:".
func NewRedisCounter(client redis.UniversalClient, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "sia:"
	}
	return &RedisCounter{redis: client, prefix: prefix}
}

func (c *RedisCounter) key(k string) string {
	return c.prefix + k
}

// Incr increments the counter for key. The window TTL is set on the first
// failure so the count rolls off after the window.
func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int, error) {
	count, err := c.redis.Incr(ctx, c.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}

	if count == 1 && window > 0 {
		if err := c.redis.Expire(ctx, c.key(key), window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
		}
	}
	return int(count), nil
}

func (c *RedisCounter) Get(ctx context.Context, key string) (int, error) {
	count, err := c.redis.Get(ctx, c.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	return int(count), nil
}

func (c *RedisCounter) Reset(ctx context.Context, key string) error {
	if err := c.redis.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	return nil
}
