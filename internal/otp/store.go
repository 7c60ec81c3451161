package otp

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Store.Get when the key does not exist or expired.
var ErrMiss = errors.New("otp: key not found")

// errNoClient is returned by every RedisStore call when no client is configured.
var errNoClient = errors.New("otp: redis client not configured")

// Store is the expiring key-value store holding challenges and counters.
// Every method is a single atomic operation against the backend.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Incr increments key and applies ttl only when the key was just created.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// TTL returns the remaining lifetime, or a non-positive value when unknown.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Del removes keys and reports how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)
}

var incrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisStore implements Store on top of go-redis. A nil client makes every
// call fail, which the OTP service treats as an unreachable store.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps client; client may be nil.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	if s.client == nil {
		return "", errNoClient
	}
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if s.client == nil {
		return errNoClient
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if s.client == nil {
		return 0, errNoClient
	}
	ms := ttl.Milliseconds()
	if ms <= 0 {
		return 0, errors.New("otp: invalid counter ttl")
	}
	return incrScript.Run(ctx, s.client, []string{key}, ms).Int64()
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if s.client == nil {
		return 0, errNoClient
	}
	d, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// PTTL reports -1/-2 for "no expiry"/"missing".
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if s.client == nil {
		return 0, errNoClient
	}
	return s.client.Del(ctx, keys...).Result()
}
