package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// MinRevocationTTL keeps a revocation entry alive for at least this long even
// when the token is about to expire, so a token verified a moment ago can
// still be blacklisted.
const MinRevocationTTL = time.Second

// TokenService issues token pairs and authenticates access tokens against the
// revocation store and the principal store. Every store failure surfaces as
// DATABASE_ERROR; nothing here ever treats an unreachable store as "not
// revoked".
type TokenService struct {
	Codec       *jwtx.Codec
	Revocations store.Revocations
	Principals  store.Principals
	Now         func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Issue signs a new pair for p.
func (s *TokenService) Issue(p domain.Principal) (domain.TokenPair, error) {
	pair, err := s.Codec.Issue(jwtx.Subject{
		ID:          p.ID,
		Role:        p.Role,
		Permissions: p.Permissions,
	})
	if err != nil {
		return domain.TokenPair{}, domain.E(domain.KindInternal, err)
	}

	return domain.TokenPair{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int(s.Codec.AccessTTL().Seconds()),
		AccessExpiresAt:  pair.AccessClaims.ExpiresAtTime(),
		RefreshExpiresAt: pair.RefreshClaims.ExpiresAtTime(),
	}, nil
}

// Verify checks a token of the given type and maps codec errors onto the
// taxonomy: TOKEN_EXPIRED or TOKEN_INVALID.
func (s *TokenService) Verify(token string, typ jwtx.TokenType) (jwtx.Claims, error) {
	claims, err := s.Codec.Verify(token, typ)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwtx.ErrExpired):
		return jwtx.Claims{}, domain.E(domain.KindTokenExpired, err)
	default:
		return jwtx.Claims{}, domain.E(domain.KindTokenInvalid, err)
	}
}

// Authenticate resolves an access token to a principal. Role and permissions
// come from the claims; the active flag is re-checked against the store.
func (s *TokenService) Authenticate(ctx context.Context, token string) (domain.Principal, error) {
	claims, err := s.Verify(token, jwtx.TypeAccess)
	if err != nil {
		return domain.Principal{}, err
	}

	if err := s.ensureNotRevoked(ctx, token); err != nil {
		return domain.Principal{}, err
	}

	active, err := s.isActive(ctx, claims.Subject)
	if err != nil {
		return domain.Principal{}, err
	}
	if !active {
		return domain.Principal{}, domain.ErrAccountInactive
	}

	return domain.Principal{
		ID:          claims.Subject,
		Role:        claims.Role,
		Permissions: claims.Permissions,
		Active:      true,
	}, nil
}

// Revoke blacklists token for the rest of its life. Tokens that are already
// expired or not ours are ignored.
func (s *TokenService) Revoke(ctx context.Context, token string, typ jwtx.TokenType) error {
	if token == "" {
		return nil
	}

	claims, err := s.Codec.Verify(token, typ)
	if err != nil {
		slogx.FromContext(ctx).Debug("skip revoking unusable token", slog.String("type", string(typ)), slog.Any("error", err))
		return nil
	}

	_, err = s.blacklist(ctx, token, claims)
	return err
}

func (s *TokenService) blacklist(ctx context.Context, token string, claims jwtx.Claims) (bool, error) {
	ttl := max(claims.Remaining(s.now()), MinRevocationTTL)

	inserted, err := s.Revocations.Blacklist(ctx, cryptox.FingerprintToken(token), ttl)
	if err != nil {
		return false, domain.E(domain.KindDatabase, err)
	}
	return inserted, nil
}

func (s *TokenService) ensureNotRevoked(ctx context.Context, token string) error {
	revoked, err := s.Revocations.IsRevoked(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		return domain.E(domain.KindDatabase, err)
	}
	if revoked {
		return domain.ErrTokenRevoked
	}
	return nil
}

func (s *TokenService) isActive(ctx context.Context, id string) (bool, error) {
	p, err := s.Principals.GetPrincipal(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, domain.E(domain.KindDatabase, err)
	}
	return p.Active, nil
}
