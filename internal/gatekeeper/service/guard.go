package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// GuardConfig tunes the brute-force guard. Zero fields take the defaults.
type GuardConfig struct {
	MaxAttempts      int           // attempts allowed per window, default 5
	Window           time.Duration // default 15m
	LockoutThreshold int           // consecutive failures before lockout, default 10
	LockoutDuration  time.Duration // default 15m
	BaseDelay        time.Duration // default 1s
	MaxDelay         time.Duration // default 30s
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		MaxAttempts:      5,
		Window:           15 * time.Minute,
		LockoutThreshold: 10,
		LockoutDuration:  15 * time.Minute,
		BaseDelay:        time.Second,
		MaxDelay:         30 * time.Second,
	}
}

func (c GuardConfig) withDefaults() GuardConfig {
	d := DefaultGuardConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.LockoutThreshold <= 0 {
		c.LockoutThreshold = d.LockoutThreshold
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = d.LockoutDuration
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	return c
}

// Guard throttles login attempts per ip+account key. It has three independent
// mechanisms: a hard attempt ceiling per window, a lockout after consecutive
// failures, and a progressive delay driven by the failure count. All state
// lives in the attempts store so every instance sharing it sees the same
// counters.
type Guard struct {
	Attempts store.Attempts
	Config   GuardConfig
	Now      func() time.Time

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewGuard returns a guard over attempts with cfg's zero fields defaulted.
func NewGuard(attempts store.Attempts, cfg GuardConfig) *Guard {
	return &Guard{
		Attempts: attempts,
		Config:   cfg.withDefaults(),
		Now:      time.Now,
		Sleep:    sleepContext,
	}
}

// CheckAndIncrement counts one attempt for key and refuses it once the window
// holds more than MaxAttempts. The error carries the time until the window
// resets.
func (g *Guard) CheckAndIncrement(ctx context.Context, key string) error {
	cfg := g.Config
	counter, err := g.Attempts.Hit(ctx, key, cfg.Window, 2*cfg.Window)
	if err != nil {
		return g.storeError(ctx, "attempt counter unavailable", err)
	}

	if counter.Count <= cfg.MaxAttempts {
		return nil
	}

	retry := max(counter.WindowStart.Add(cfg.Window).Sub(g.Now()), time.Second)
	return &domain.Error{Kind: domain.KindRateLimitExceeded, RetryAfter: retry}
}

// Remaining reports how many attempts key has left in its current window.
// Once the window has passed the whole budget is available again.
func (g *Guard) Remaining(ctx context.Context, key string) (int, error) {
	counter, err := g.Attempts.Counter(ctx, key)
	if err != nil {
		return 0, g.storeError(ctx, "attempt counter unavailable", err)
	}
	if counter.Count == 0 || !g.Now().Before(counter.WindowStart.Add(g.Config.Window)) {
		return g.Config.MaxAttempts, nil
	}
	return max(g.Config.MaxAttempts-counter.Count, 0), nil
}

// ComputeDelay returns the pause applied before evaluating the next attempt
// for key.
func (g *Guard) ComputeDelay(ctx context.Context, key string) (time.Duration, error) {
	state, err := g.Attempts.Lockout(ctx, key)
	if err != nil {
		return 0, g.storeError(ctx, "lockout state unavailable", err)
	}
	return ProgressiveDelay(state.ConsecutiveFailures, g.Config.BaseDelay, g.Config.MaxDelay), nil
}

// Delay computes and then sleeps the progressive delay for key. A cancelled
// context aborts the wait and the attempt.
func (g *Guard) Delay(ctx context.Context, key string) error {
	d, err := g.ComputeDelay(ctx, key)
	if err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	slogx.FromContext(ctx).Debug("applying progressive delay", "key", key, "delay", d)
	if err := g.Sleep(ctx, d); err != nil {
		return domain.E(domain.KindInternal, err)
	}
	return nil
}

// CheckLockout refuses key while it is locked out.
func (g *Guard) CheckLockout(ctx context.Context, key string) error {
	state, err := g.Lockout(ctx, key)
	if err != nil {
		return err
	}

	now := g.Now()
	if !state.Locked(now) {
		return nil
	}
	return &domain.Error{Kind: domain.KindAccountLocked, RetryAfter: state.NextAllowedAt.Sub(now)}
}

// Lockout returns the failure state for key with NextAllowedAt filled in when
// the threshold has been reached.
func (g *Guard) Lockout(ctx context.Context, key string) (domain.LockoutState, error) {
	state, err := g.Attempts.Lockout(ctx, key)
	if err != nil {
		return domain.LockoutState{}, g.storeError(ctx, "lockout state unavailable", err)
	}
	return g.withNextAllowed(state), nil
}

// RecordFailure bumps the consecutive failure count for key.
func (g *Guard) RecordFailure(ctx context.Context, key string) (domain.LockoutState, error) {
	state, err := g.Attempts.RecordFailure(ctx, key, g.failureTTL())
	if err != nil {
		return domain.LockoutState{}, g.storeError(ctx, "failed to record login failure", err)
	}

	state = g.withNextAllowed(state)
	if !state.NextAllowedAt.IsZero() {
		slogx.FromContext(ctx).Warn("login key locked out",
			"key", key,
			"failures", state.ConsecutiveFailures,
			"until", state.NextAllowedAt,
		)
	}
	return state, nil
}

// Clear forgets everything about key. Called after a successful login.
func (g *Guard) Clear(ctx context.Context, key string) error {
	if err := g.Attempts.Clear(ctx, key); err != nil {
		return g.storeError(ctx, "failed to clear login attempts", err)
	}
	return nil
}

func (g *Guard) withNextAllowed(state domain.LockoutState) domain.LockoutState {
	if state.ConsecutiveFailures >= g.Config.LockoutThreshold && !state.LastFailureAt.IsZero() {
		state.NextAllowedAt = state.LastFailureAt.Add(g.Config.LockoutDuration)
	}
	return state
}

// failureTTL keeps failure state long enough to span both the lockout and
// several windows of attempts.
func (g *Guard) failureTTL() time.Duration {
	return max(2*g.Config.Window, g.Config.LockoutDuration)
}

func (g *Guard) storeError(ctx context.Context, msg string, err error) error {
	slogx.FromContext(ctx).Error(msg, "error", err)
	return domain.E(domain.KindDatabase, err)
}

// ProgressiveDelay is min(2^(failures-1) * base, limit), and zero with no
// recorded failures.
func ProgressiveDelay(failures int, base, limit time.Duration) time.Duration {
	if failures <= 0 {
		return 0
	}

	d := base
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return min(d, limit)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
