package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
)

const (
	// A row whose window has closed restarts at count 1. All CASE arms read
	// the pre-update row.
	hitSQL = `
INSERT INTO login_attempts (key, count, window_start, window_end, expires_at)
VALUES (?, 1, ?, ?, ?)
ON CONFLICT (key) DO UPDATE SET
    count = CASE WHEN login_attempts.window_end <= excluded.window_start
        THEN 1 ELSE login_attempts.count + 1 END,
    window_start = CASE WHEN login_attempts.window_end <= excluded.window_start
        THEN excluded.window_start ELSE login_attempts.window_start END,
    window_end = CASE WHEN login_attempts.window_end <= excluded.window_start
        THEN excluded.window_end ELSE login_attempts.window_end END,
    expires_at = CASE WHEN login_attempts.window_end <= excluded.window_start
        THEN excluded.expires_at ELSE login_attempts.expires_at END
RETURNING count, window_start`

	counterSQL = `
SELECT count, window_start FROM login_attempts WHERE key = ? AND expires_at > ?`

	recordFailureSQL = `
INSERT INTO login_failures (key, failures, last_failure_at, expires_at)
VALUES (?, 1, ?, ?)
ON CONFLICT (key) DO UPDATE SET
    failures = CASE WHEN login_failures.expires_at <= excluded.last_failure_at
        THEN 1 ELSE login_failures.failures + 1 END,
    last_failure_at = excluded.last_failure_at,
    expires_at = excluded.expires_at
RETURNING failures, last_failure_at`

	lockoutSQL = `
SELECT failures, last_failure_at FROM login_failures WHERE key = ? AND expires_at > ?`

	clearAttemptsSQL = `DELETE FROM login_attempts WHERE key = ?`
	clearFailuresSQL = `DELETE FROM login_failures WHERE key = ?`

	deleteExpiredAttemptsSQL = `DELETE FROM login_attempts WHERE expires_at <= ?`
	deleteExpiredFailuresSQL = `DELETE FROM login_failures WHERE expires_at <= ?`
)

func (s *Store) Hit(ctx context.Context, key string, window, ttl time.Duration) (domain.AttemptCounter, error) {
	if window <= 0 || ttl <= 0 {
		return domain.AttemptCounter{}, store.ErrInvalidTTL
	}
	now := s.now()
	ttl = max(ttl, window)

	var count int
	var start int64
	err := s.db.QueryRowContext(ctx, hitSQL,
		key,
		now.UnixMilli(),
		now.Add(window).UnixMilli(),
		now.Add(ttl).UnixMilli(),
	).Scan(&count, &start)
	if err != nil {
		return domain.AttemptCounter{}, store.Unavailable(err)
	}

	return domain.AttemptCounter{Key: key, Count: count, WindowStart: fromMillis(start)}, nil
}

func (s *Store) Counter(ctx context.Context, key string) (domain.AttemptCounter, error) {
	c := domain.AttemptCounter{Key: key}

	var start int64
	err := s.db.QueryRowContext(ctx, counterSQL, key, s.nowMillis()).Scan(&c.Count, &start)
	if errors.Is(err, sql.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return c, store.Unavailable(err)
	}

	c.WindowStart = fromMillis(start)
	return c, nil
}

func (s *Store) RecordFailure(ctx context.Context, key string, ttl time.Duration) (domain.LockoutState, error) {
	if ttl <= 0 {
		return domain.LockoutState{}, store.ErrInvalidTTL
	}
	now := s.now()

	st := domain.LockoutState{Key: key}
	var last int64
	err := s.db.QueryRowContext(ctx, recordFailureSQL, key, now.UnixMilli(), now.Add(ttl).UnixMilli()).
		Scan(&st.ConsecutiveFailures, &last)
	if err != nil {
		return st, store.Unavailable(err)
	}

	st.LastFailureAt = fromMillis(last)
	return st, nil
}

func (s *Store) Lockout(ctx context.Context, key string) (domain.LockoutState, error) {
	st := domain.LockoutState{Key: key}

	var last int64
	err := s.db.QueryRowContext(ctx, lockoutSQL, key, s.nowMillis()).Scan(&st.ConsecutiveFailures, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return st, store.Unavailable(err)
	}

	st.LastFailureAt = fromMillis(last)
	return st, nil
}

func (s *Store) Clear(ctx context.Context, key string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, clearAttemptsSQL, key); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, clearFailuresSQL, key)
		return err
	})
	return store.Unavailable(err)
}

// Sweep deletes every expired revocation, counter and failure record.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	now := s.nowMillis()

	var total int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{deleteExpiredRevocationsSQL, deleteExpiredAttemptsSQL, deleteExpiredFailuresSQL} {
			res, err := tx.ExecContext(ctx, q, now)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, store.Unavailable(err)
	}
	return total, nil
}
