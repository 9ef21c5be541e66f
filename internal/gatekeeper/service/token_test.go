package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		f := newFixture(t)
		p := f.addPrincipal(t, "ada", "pw", "user", "workflows:read")

		pair, err := f.tokens.Issue(p)
		require.NoError(t, err)
		require.Equal(t, "Bearer", pair.TokenType)
		require.Equal(t, 900, pair.ExpiresIn)

		got, err := f.tokens.Authenticate(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, p.ID, got.ID)
		require.Equal(t, "user", got.Role)
		require.Equal(t, []string{"workflows:read"}, got.Permissions)
		require.True(t, got.Active)
		require.False(t, got.IsService)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.tokens.Issue(f.addPrincipal(t, "ada", "pw", "user"))
		require.NoError(t, err)

		_, err = f.tokens.Authenticate(ctx, pair.RefreshToken)
		require.Equal(t, domain.KindTokenInvalid, domain.KindOf(err))
	})

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.tokens.Issue(f.addPrincipal(t, "ada", "pw", "user"))
		require.NoError(t, err)

		f.clock.Advance(16 * time.Minute)
		_, err = f.tokens.Authenticate(ctx, pair.AccessToken)
		require.ErrorIs(t, err, domain.ErrTokenExpired)
	})

	t.Run("revoked", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.tokens.Issue(f.addPrincipal(t, "ada", "pw", "user"))
		require.NoError(t, err)

		require.NoError(t, f.tokens.Revoke(ctx, pair.AccessToken, jwtx.TypeAccess))
		_, err = f.tokens.Authenticate(ctx, pair.AccessToken)
		require.ErrorIs(t, err, domain.ErrTokenRevoked)
	})

	t.Run("deactivated principal", func(t *testing.T) {
		f := newFixture(t)
		p := f.addPrincipal(t, "ada", "pw", "user")
		pair, err := f.tokens.Issue(p)
		require.NoError(t, err)

		require.NoError(t, f.store.SetActive(ctx, p.ID, false))
		_, err = f.tokens.Authenticate(ctx, pair.AccessToken)
		require.ErrorIs(t, err, domain.ErrAccountInactive)
	})

	t.Run("store outage fails closed", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.tokens.Issue(f.addPrincipal(t, "ada", "pw", "user"))
		require.NoError(t, err)

		f.tokens.Revocations = brokenRevocations{}
		_, err = f.tokens.Authenticate(ctx, pair.AccessToken)
		require.ErrorIs(t, err, domain.ErrDatabase)
		require.ErrorIs(t, err, store.ErrUnavailable)
	})
}

func TestRevokeTTLMatchesRemainingLife(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pair, err := f.tokens.Issue(f.addPrincipal(t, "ada", "pw", "user"))
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.tokens.Revoke(ctx, pair.AccessToken, jwtx.TypeAccess))

	fp := cryptox.FingerprintToken(pair.AccessToken)
	f.clock.Advance(5*time.Minute - time.Second)
	revoked, err := f.store.IsRevoked(ctx, fp)
	require.NoError(t, err)
	require.True(t, revoked)

	// Gone once the token itself would have expired.
	f.clock.Advance(time.Second)
	revoked, err = f.store.IsRevoked(ctx, fp)
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRevokeIgnoresUnusableTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.tokens.Revoke(ctx, "", jwtx.TypeAccess))
	require.NoError(t, f.tokens.Revoke(ctx, "garbage", jwtx.TypeAccess))

	pair, err := f.tokens.Issue(f.addPrincipal(t, "ada", "pw", "user"))
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	require.NoError(t, f.tokens.Revoke(ctx, pair.AccessToken, jwtx.TypeAccess))

	n, err := f.store.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}
