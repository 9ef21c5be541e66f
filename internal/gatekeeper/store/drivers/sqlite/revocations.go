package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
)

const (
	// The conditional upsert only overwrites an entry that has already
	// expired, so exactly one concurrent writer sees a changed row.
	blacklistSQL = `
INSERT INTO revoked_tokens (fingerprint, expires_at) VALUES (?, ?)
ON CONFLICT (fingerprint) DO UPDATE SET expires_at = excluded.expires_at
WHERE revoked_tokens.expires_at <= ?`

	isRevokedSQL = `
SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE fingerprint = ? AND expires_at > ?)`

	deleteExpiredRevocationsSQL = `DELETE FROM revoked_tokens WHERE expires_at <= ?`
)

func (s *Store) Blacklist(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, store.ErrInvalidTTL
	}
	now := s.now()

	res, err := s.db.ExecContext(ctx, blacklistSQL, fingerprint, now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, store.Unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, store.Unavailable(err)
	}
	return n == 1, nil
}

func (s *Store) IsRevoked(ctx context.Context, fingerprint string) (bool, error) {
	var revoked bool
	if err := s.db.QueryRowContext(ctx, isRevokedSQL, fingerprint, s.nowMillis()).Scan(&revoked); err != nil {
		return false, store.Unavailable(err)
	}
	return revoked, nil
}
