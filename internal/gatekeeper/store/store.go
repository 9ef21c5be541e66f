package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrUnavailable wraps any backend failure. Callers treat it as a reason
	// to deny, never to allow.
	ErrUnavailable = errors.New("store: unavailable")

	ErrInvalidTTL = errors.New("store: ttl must be greater than zero")
)

// State is the shared mutable security state: revocations plus brute-force
// counters. Drivers: memory (single instance), sqlite, redis.
type State interface {
	Revocations
	Attempts

	// Sweep deletes expired entries and returns how many were removed.
	// Drivers whose backend expires keys natively return 0.
	Sweep(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

type Revocations interface {
	// Blacklist records fingerprint for ttl. It is an atomic set-if-absent:
	// inserted is false when a live entry already existed, which is how
	// concurrent rotations of the same refresh token detect each other.
	Blacklist(ctx context.Context, fingerprint string, ttl time.Duration) (inserted bool, err error)

	// IsRevoked reports whether a live entry exists for fingerprint.
	IsRevoked(ctx context.Context, fingerprint string) (bool, error)
}

type Attempts interface {
	// Hit counts one attempt for key in a fixed window. A new window starts
	// when none is live. The counter itself lives for ttl from window start.
	Hit(ctx context.Context, key string, window, ttl time.Duration) (domain.AttemptCounter, error)

	// Counter returns the live counter for key, or a zero counter.
	Counter(ctx context.Context, key string) (domain.AttemptCounter, error)

	// RecordFailure bumps the consecutive-failure count for key and stamps the
	// failure time. The state expires ttl after the last failure.
	RecordFailure(ctx context.Context, key string, ttl time.Duration) (domain.LockoutState, error)

	// Lockout returns the failure state for key, or a zero state.
	Lockout(ctx context.Context, key string) (domain.LockoutState, error)

	// Clear drops both the counter and the failure state for key.
	Clear(ctx context.Context, key string) error
}

// Principals is the credential and identity store.
type Principals interface {
	GetPrincipal(ctx context.Context, id string) (domain.Principal, error)

	// GetCredential looks up login material by normalized account name.
	GetCredential(ctx context.Context, account string) (domain.Credential, error)

	// CreatePrincipal inserts p with the given argon2id hash. Account must be
	// unique.
	CreatePrincipal(ctx context.Context, p domain.Principal, passwordHash string) error

	SetActive(ctx context.Context, id string, active bool) error

	Ping(ctx context.Context) error
}

// Unavailable wraps err as ErrUnavailable unless it already is one.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	return errors.Join(ErrUnavailable, err)
}
