package truststore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goSignIn/identity"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces trust records in a shared Redis.
const DefaultRedisPrefix = "sitrust:"

// Redis stores one key per trusted identity; the value is the whitelist
// time in unix nanoseconds.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
	nowF   func() time.Time
}

// NewRedis builds a Redis-backed Store. An empty prefix uses DefaultRedisPrefix.
func NewRedis(client redis.UniversalClient, prefix string, now func() time.Time) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{redis: client, prefix: prefix, nowF: nowOrDefault(now)}
}

func (r *Redis) key(ref identity.Ref) string {
	return r.prefix + ref.Key()
}

func (r *Redis) IsTrusted(ctx context.Context, ref identity.Ref) (bool, error) {
	n, err := r.redis.Exists(ctx, r.key(ref)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// Whitelist writes ref with SET NX so the first timestamp survives repeats.
func (r *Redis) Whitelist(ctx context.Context, ref identity.Ref) error {
	ts := strconv.FormatInt(r.nowF().UnixNano(), 10)
	if err := r.redis.SetNX(ctx, r.key(ref), ts, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Revoke(ctx context.Context, ref identity.Ref) error {
	if err := r.redis.Del(ctx, r.key(ref)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Record returns the whitelist entry for ref.
func (r *Redis) Record(ctx context.Context, ref identity.Ref) (Record, bool, error) {
	raw, err := r.redis.Get(ctx, r.key(ref)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: corrupt record: %v", ErrUnavailable, err)
	}
	return Record{Identity: ref, WhitelistedAt: time.Unix(0, nanos)}, true, nil
}
