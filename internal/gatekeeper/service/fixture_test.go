package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/memory"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/storetest"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fixture struct {
	clock    *storetest.Clock
	store    *memory.Store
	tokens   *TokenService
	refresh  *RefreshCoordinator
	guard    *Guard
	sessions *SessionService
	slept    []time.Duration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := storetest.NewClock()
	st := memory.New(clock.Now)

	codec, err := jwtx.NewCodec(jwtx.CodecOptions{
		Secret: testSecret,
		Issuer: "gatekeeper",
		Now:    clock.Now,
	})
	require.NoError(t, err)

	f := &fixture{clock: clock, store: st}
	f.tokens = &TokenService{Codec: codec, Revocations: st, Principals: st, Now: clock.Now}
	f.refresh = &RefreshCoordinator{Tokens: f.tokens}

	f.guard = NewGuard(st, GuardConfig{})
	f.guard.Now = clock.Now
	f.guard.Sleep = func(_ context.Context, d time.Duration) error {
		f.slept = append(f.slept, d)
		return nil
	}

	f.sessions = &SessionService{
		Principals: st,
		Tokens:     f.tokens,
		Guard:      f.guard,
		Hasher:     cryptox.Hasher{Pepper: "pepper"},
	}
	return f
}

func (f *fixture) addPrincipal(t *testing.T, account, password, role string, perms ...string) domain.Principal {
	t.Helper()

	hash, err := f.sessions.Hasher.Hash(password)
	require.NoError(t, err)

	p := domain.Principal{
		ID:          idx.New().String(),
		Account:     account,
		Role:        role,
		Permissions: perms,
		Active:      true,
	}
	require.NoError(t, f.store.CreatePrincipal(context.Background(), p, hash))
	return p
}

// brokenRevocations fails every call as an unreachable backend would.
type brokenRevocations struct{}

func (brokenRevocations) Blacklist(context.Context, string, time.Duration) (bool, error) {
	return false, store.Unavailable(errors.New("connection refused"))
}

func (brokenRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, store.Unavailable(errors.New("connection refused"))
}

// brokenAttempts embeds a working store and fails the counter calls.
type brokenAttempts struct {
	store.Attempts
}

func (brokenAttempts) Hit(context.Context, string, time.Duration, time.Duration) (domain.AttemptCounter, error) {
	return domain.AttemptCounter{}, store.Unavailable(errors.New("connection refused"))
}

func (brokenAttempts) Lockout(context.Context, string) (domain.LockoutState, error) {
	return domain.LockoutState{}, store.Unavailable(errors.New("connection refused"))
}
