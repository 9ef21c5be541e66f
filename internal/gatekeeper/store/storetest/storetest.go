// Package storetest is the conformance suite every state driver must pass.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/stretchr/testify/require"
)

// Clock is a manually advanced clock shared by a driver and the suite.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Harness is one driver instance under test.
type Harness struct {
	State      store.State
	Principals store.Principals // nil if the driver keeps no principals

	// Advance moves the driver's notion of time forward, including any
	// server-side expiry.
	Advance func(time.Duration)
	Now     func() time.Time
}

// Run executes the suite. newHarness is called once per subtest.
func Run(t *testing.T, newHarness func(t *testing.T) Harness) {
	t.Run("Revocations", func(t *testing.T) { testRevocations(t, newHarness(t)) })
	t.Run("RevocationExpiry", func(t *testing.T) { testRevocationExpiry(t, newHarness(t)) })
	t.Run("ConcurrentBlacklist", func(t *testing.T) { testConcurrentBlacklist(t, newHarness(t)) })
	t.Run("AttemptWindow", func(t *testing.T) { testAttemptWindow(t, newHarness(t)) })
	t.Run("ConcurrentHits", func(t *testing.T) { testConcurrentHits(t, newHarness(t)) })
	t.Run("Failures", func(t *testing.T) { testFailures(t, newHarness(t)) })
	t.Run("Clear", func(t *testing.T) { testClear(t, newHarness(t)) })
	t.Run("Sweep", func(t *testing.T) { testSweep(t, newHarness(t)) })
	t.Run("Principals", func(t *testing.T) {
		h := newHarness(t)
		if h.Principals == nil {
			t.Skip("driver keeps no principals")
		}
		testPrincipals(t, h.Principals)
	})
}

func testRevocations(t *testing.T, h Harness) {
	ctx := context.Background()

	revoked, err := h.State.IsRevoked(ctx, "fp-unknown")
	require.NoError(t, err)
	require.False(t, revoked)

	inserted, err := h.State.Blacklist(ctx, "fp-1", time.Hour)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = h.State.Blacklist(ctx, "fp-1", time.Hour)
	require.NoError(t, err)
	require.False(t, inserted, "second blacklist of a live entry must report not inserted")

	revoked, err = h.State.IsRevoked(ctx, "fp-1")
	require.NoError(t, err)
	require.True(t, revoked)

	_, err = h.State.Blacklist(ctx, "fp-2", 0)
	require.ErrorIs(t, err, store.ErrInvalidTTL)
}

func testRevocationExpiry(t *testing.T, h Harness) {
	ctx := context.Background()

	_, err := h.State.Blacklist(ctx, "fp-short", time.Minute)
	require.NoError(t, err)

	h.Advance(59 * time.Second)
	revoked, err := h.State.IsRevoked(ctx, "fp-short")
	require.NoError(t, err)
	require.True(t, revoked)

	h.Advance(2 * time.Second)
	revoked, err = h.State.IsRevoked(ctx, "fp-short")
	require.NoError(t, err)
	require.False(t, revoked, "entry must not outlive its ttl")

	inserted, err := h.State.Blacklist(ctx, "fp-short", time.Minute)
	require.NoError(t, err)
	require.True(t, inserted, "an expired entry can be written again")
}

func testConcurrentBlacklist(t *testing.T, h Harness) {
	ctx := context.Background()

	var wg sync.WaitGroup
	var wins atomic.Int32
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := h.State.Blacklist(ctx, "fp-race", time.Hour)
			if err == nil && inserted {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
}

func testAttemptWindow(t *testing.T, h Harness) {
	ctx := context.Background()
	const window = 15 * time.Minute
	start := h.Now()

	c, err := h.State.Counter(ctx, "1.2.3.4:alice")
	require.NoError(t, err)
	require.Zero(t, c.Count)

	for i := 1; i <= 3; i++ {
		c, err := h.State.Hit(ctx, "1.2.3.4:alice", window, 2*window)
		require.NoError(t, err)
		require.Equal(t, i, c.Count)
		require.True(t, c.WindowStart.Equal(start), "window start %v want %v", c.WindowStart, start)
		h.Advance(time.Minute)
	}

	c, err = h.State.Counter(ctx, "1.2.3.4:alice")
	require.NoError(t, err)
	require.Equal(t, 3, c.Count)

	other, err := h.State.Counter(ctx, "1.2.3.4:bob")
	require.NoError(t, err)
	require.Zero(t, other.Count)

	h.Advance(window)
	c, err = h.State.Hit(ctx, "1.2.3.4:alice", window, 2*window)
	require.NoError(t, err)
	require.Equal(t, 1, c.Count, "a new window starts once the old one has passed")
	require.True(t, c.WindowStart.Equal(h.Now()))
}

func testConcurrentHits(t *testing.T, h Harness) {
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 25)
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.State.Hit(ctx, "k", time.Hour, 2*time.Hour)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	c, err := h.State.Counter(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, 25, c.Count)
}

func testFailures(t *testing.T, h Harness) {
	ctx := context.Background()

	s, err := h.State.Lockout(ctx, "k")
	require.NoError(t, err)
	require.Zero(t, s.ConsecutiveFailures)

	for i := 1; i <= 3; i++ {
		s, err := h.State.RecordFailure(ctx, "k", 30*time.Minute)
		require.NoError(t, err)
		require.Equal(t, i, s.ConsecutiveFailures)
		require.True(t, s.LastFailureAt.Equal(h.Now()))
		h.Advance(time.Second)
	}

	s, err = h.State.Lockout(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, 3, s.ConsecutiveFailures)
	require.True(t, s.LastFailureAt.Equal(h.Now().Add(-time.Second)))

	h.Advance(31 * time.Minute)
	s, err = h.State.Lockout(ctx, "k")
	require.NoError(t, err)
	require.Zero(t, s.ConsecutiveFailures, "failure state expires after ttl")
}

func testClear(t *testing.T, h Harness) {
	ctx := context.Background()

	_, err := h.State.Hit(ctx, "k", time.Hour, 2*time.Hour)
	require.NoError(t, err)
	_, err = h.State.RecordFailure(ctx, "k", time.Hour)
	require.NoError(t, err)

	require.NoError(t, h.State.Clear(ctx, "k"))
	require.NoError(t, h.State.Clear(ctx, "never-seen"))

	c, err := h.State.Counter(ctx, "k")
	require.NoError(t, err)
	require.Zero(t, c.Count)

	s, err := h.State.Lockout(ctx, "k")
	require.NoError(t, err)
	require.Zero(t, s.ConsecutiveFailures)

	c, err = h.State.Hit(ctx, "k", time.Hour, 2*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, c.Count)
}

func testSweep(t *testing.T, h Harness) {
	ctx := context.Background()

	_, err := h.State.Blacklist(ctx, "fp", time.Minute)
	require.NoError(t, err)
	_, err = h.State.Blacklist(ctx, "fp-long", time.Hour)
	require.NoError(t, err)
	_, err = h.State.Hit(ctx, "k", time.Minute, 2*time.Minute)
	require.NoError(t, err)

	h.Advance(5 * time.Minute)
	n, err := h.State.Sweep(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(0))

	revoked, err := h.State.IsRevoked(ctx, "fp")
	require.NoError(t, err)
	require.False(t, revoked)

	revoked, err = h.State.IsRevoked(ctx, "fp-long")
	require.NoError(t, err)
	require.True(t, revoked, "sweep must keep live entries")
}

func testPrincipals(t *testing.T, ps store.Principals) {
	ctx := context.Background()

	p := domain.Principal{
		ID:          "01HZX0000000000000000000AA",
		Account:     "Alice",
		Role:        domain.RoleAdmin,
		Permissions: []string{"workflows:write", "workflows:read"},
		Active:      true,
	}
	require.NoError(t, ps.CreatePrincipal(ctx, p, "$argon2id$hash"))

	dup := p
	dup.ID = "01HZX0000000000000000000BB"
	require.ErrorIs(t, ps.CreatePrincipal(ctx, dup, "x"), store.ErrAlreadyExists)

	got, err := ps.GetPrincipal(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Account)
	require.Equal(t, domain.RoleAdmin, got.Role)
	require.ElementsMatch(t, p.Permissions, got.Permissions)
	require.True(t, got.Active)

	cred, err := ps.GetCredential(ctx, "  ALICE ")
	require.NoError(t, err)
	require.Equal(t, p.ID, cred.PrincipalID)
	require.Equal(t, "$argon2id$hash", cred.PasswordHash)

	_, err = ps.GetCredential(ctx, "mallory")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = ps.GetPrincipal(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, ps.SetActive(ctx, p.ID, false))
	got, err = ps.GetPrincipal(ctx, p.ID)
	require.NoError(t, err)
	require.False(t, got.Active)

	require.ErrorIs(t, ps.SetActive(ctx, "missing", true), store.ErrNotFound)
	require.NoError(t, ps.Ping(ctx))
}
