package domain

import (
	"strings"
	"time"
)

// AttemptCounter counts login attempts for one key inside a fixed window.
type AttemptCounter struct {
	Key         string
	Count       int
	WindowStart time.Time
}

// LockoutState tracks consecutive failures for one key independent of the
// window counter.
type LockoutState struct {
	Key                 string
	ConsecutiveFailures int
	LastFailureAt       time.Time
	NextAllowedAt       time.Time // zero unless locked
}

// Locked reports whether the key is refused at now.
func (s LockoutState) Locked(now time.Time) bool {
	return !s.NextAllowedAt.IsZero() && now.Before(s.NextAllowedAt)
}

// NormalizeAccount folds an account name for use in keys.
func NormalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}

// AttemptKey is the brute-force key for ip and account.
func AttemptKey(ip, account string) string {
	return ip + ":" + NormalizeAccount(account)
}
