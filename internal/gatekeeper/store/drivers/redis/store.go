// Package redis keeps revocations and brute-force counters in Redis so that
// every gatekeeper instance observes the same state. Keys expire natively.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	goredis "github.com/redis/go-redis/v9"
)

type Config struct {
	Addr      string
	Password  string
	DB        int
	Namespace string // key prefix, default "gatekeeper"
}

type Store struct {
	client    *goredis.Client
	namespace string
	now       func() time.Time
}

var _ store.State = (*Store)(nil)

// hitScript starts a new window when none is live and otherwise increments.
// KEYS[1] counter hash; ARGV now ms, window ms, ttl ms.
var hitScript = goredis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local start = tonumber(redis.call('HGET', KEYS[1], 'start'))
if (not start) or (start + window <= now) then
  redis.call('HSET', KEYS[1], 'start', ARGV[1], 'count', '1')
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
  return {1, now}
end
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {count, start}
`)

// failureScript bumps consecutive failures and slides the expiry.
// KEYS[1] failure hash; ARGV now ms, ttl ms.
var failureScript = goredis.NewScript(`
local failures = redis.call('HINCRBY', KEYS[1], 'failures', 1)
redis.call('HSET', KEYS[1], 'last', ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return {failures, tonumber(ARGV[1])}
`)

// New connects using cfg. now may be nil.
func New(cfg Config, now func() time.Time) *Store {
	return NewWithClient(goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg.Namespace, now)
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, namespace string, now func() time.Time) *Store {
	if namespace == "" {
		namespace = "gatekeeper"
	}
	if now == nil {
		now = time.Now
	}
	return &Store{client: client, namespace: namespace, now: now}
}

func (s *Store) key(kind, id string) string {
	return s.namespace + ":" + kind + ":" + id
}

func (s *Store) Ping(ctx context.Context) error {
	return store.Unavailable(s.client.Ping(ctx).Err())
}

func (s *Store) Close() error { return s.client.Close() }

// Sweep is a no-op; Redis expires keys itself.
func (s *Store) Sweep(context.Context) (int64, error) { return 0, nil }

func (s *Store) Blacklist(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, store.ErrInvalidTTL
	}
	ok, err := s.client.SetNX(ctx, s.key("revoked", fingerprint), 1, ttl).Result()
	if err != nil {
		return false, store.Unavailable(err)
	}
	return ok, nil
}

func (s *Store) IsRevoked(ctx context.Context, fingerprint string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key("revoked", fingerprint)).Result()
	if err != nil {
		return false, store.Unavailable(err)
	}
	return n > 0, nil
}

func (s *Store) Hit(ctx context.Context, key string, window, ttl time.Duration) (domain.AttemptCounter, error) {
	if window <= 0 || ttl <= 0 {
		return domain.AttemptCounter{}, store.ErrInvalidTTL
	}
	ttl = max(ttl, window)

	res, err := hitScript.Run(ctx, s.client,
		[]string{s.key("attempts", key)},
		s.now().UnixMilli(), window.Milliseconds(), ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return domain.AttemptCounter{}, store.Unavailable(err)
	}
	if len(res) != 2 {
		return domain.AttemptCounter{}, store.Unavailable(fmt.Errorf("redis: unexpected hit reply %v", res))
	}

	return domain.AttemptCounter{
		Key:         key,
		Count:       int(res[0]),
		WindowStart: time.UnixMilli(res[1]).UTC(),
	}, nil
}

func (s *Store) Counter(ctx context.Context, key string) (domain.AttemptCounter, error) {
	c := domain.AttemptCounter{Key: key}

	vals, err := s.client.HMGet(ctx, s.key("attempts", key), "count", "start").Result()
	if err != nil {
		return c, store.Unavailable(err)
	}
	count, start, err := parsePair(vals)
	if err != nil {
		return c, store.Unavailable(err)
	}
	if count > 0 {
		c.Count = int(count)
		c.WindowStart = time.UnixMilli(start).UTC()
	}
	return c, nil
}

func (s *Store) RecordFailure(ctx context.Context, key string, ttl time.Duration) (domain.LockoutState, error) {
	st := domain.LockoutState{Key: key}
	if ttl <= 0 {
		return st, store.ErrInvalidTTL
	}

	res, err := failureScript.Run(ctx, s.client,
		[]string{s.key("failures", key)},
		s.now().UnixMilli(), ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return st, store.Unavailable(err)
	}
	if len(res) != 2 {
		return st, store.Unavailable(fmt.Errorf("redis: unexpected failure reply %v", res))
	}

	st.ConsecutiveFailures = int(res[0])
	st.LastFailureAt = time.UnixMilli(res[1]).UTC()
	return st, nil
}

func (s *Store) Lockout(ctx context.Context, key string) (domain.LockoutState, error) {
	st := domain.LockoutState{Key: key}

	vals, err := s.client.HMGet(ctx, s.key("failures", key), "failures", "last").Result()
	if err != nil {
		return st, store.Unavailable(err)
	}
	failures, last, err := parsePair(vals)
	if err != nil {
		return st, store.Unavailable(err)
	}
	if failures > 0 {
		st.ConsecutiveFailures = int(failures)
		st.LastFailureAt = time.UnixMilli(last).UTC()
	}
	return st, nil
}

func (s *Store) Clear(ctx context.Context, key string) error {
	return store.Unavailable(s.client.Del(ctx, s.key("attempts", key), s.key("failures", key)).Err())
}

// parsePair reads two integer fields from an HMGET reply. Missing fields read
// as zero.
func parsePair(vals []any) (int64, int64, error) {
	if len(vals) != 2 {
		return 0, 0, errors.New("redis: short HMGET reply")
	}
	var out [2]int64
	for i, v := range vals {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return 0, 0, fmt.Errorf("redis: unexpected field type %T", v)
		}
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return 0, 0, err
		}
		out[i] = n
	}
	return out[0], out[1], nil
}
