package service

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// RefreshCoordinator rotates refresh tokens. The presented token is
// blacklisted with an atomic set-if-absent before a new pair is signed, so of
// two concurrent calls with the same token exactly one wins and the other
// gets TOKEN_REVOKED.
type RefreshCoordinator struct {
	Tokens *TokenService
}

// Refresh exchanges refreshToken for a new pair and returns the principal it
// was issued to. Errors carry TOKEN_INVALID, TOKEN_EXPIRED, TOKEN_REVOKED,
// ACCOUNT_INACTIVE or DATABASE_ERROR.
func (c *RefreshCoordinator) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, domain.Principal, error) {
	log := slogx.FromContext(ctx)

	claims, err := c.Tokens.Verify(refreshToken, jwtx.TypeRefresh)
	if err != nil {
		return domain.TokenPair{}, domain.Principal{}, err
	}

	if err := c.Tokens.ensureNotRevoked(ctx, refreshToken); err != nil {
		return domain.TokenPair{}, domain.Principal{}, err
	}

	principal, err := c.Tokens.Principals.GetPrincipal(ctx, claims.Subject)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.TokenPair{}, domain.Principal{}, domain.ErrAccountInactive
	case err != nil:
		return domain.TokenPair{}, domain.Principal{}, domain.E(domain.KindDatabase, err)
	case !principal.Active:
		return domain.TokenPair{}, domain.Principal{}, domain.ErrAccountInactive
	}

	inserted, err := c.Tokens.blacklist(ctx, refreshToken, claims)
	if err != nil {
		return domain.TokenPair{}, domain.Principal{}, err
	}
	if !inserted {
		log.Warn("refresh token replayed", "subject", claims.Subject)
		return domain.TokenPair{}, domain.Principal{}, domain.ErrTokenRevoked
	}

	pair, err := c.Tokens.Issue(principal)
	if err != nil {
		return domain.TokenPair{}, domain.Principal{}, err
	}

	log.Debug("refresh token rotated", "subject", claims.Subject)
	return pair, principal, nil
}
