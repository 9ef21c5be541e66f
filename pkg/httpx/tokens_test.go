package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: httpx.AccessTokenCookie, Value: "from-cookie"})
	require.Equal(t, "from-cookie", httpx.AccessToken(req))

	req.Header.Set("Authorization", "Bearer from-header")
	require.Equal(t, "from-header", httpx.AccessToken(req))

	req.Header.Set("Authorization", "bearer lower")
	require.Equal(t, "lower", httpx.AccessToken(req))

	req.Header.Set("Authorization", "Basic abc")
	require.Equal(t, "from-cookie", httpx.AccessToken(req))
}

func TestRefreshTokenSources(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.Empty(t, httpx.RefreshToken(req))

	req.Header.Set(httpx.RefreshTokenHeader, "from-header")
	require.Equal(t, "from-header", httpx.RefreshToken(req))

	req.AddCookie(&http.Cookie{Name: httpx.RefreshTokenCookie, Value: "from-cookie"})
	require.Equal(t, "from-cookie", httpx.RefreshToken(req))
}

func TestTokenCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	opts := httpx.CookieOptions{Secure: true, Domain: "example.com"}
	httpx.SetTokenCookies(rec, opts, "a", 15*time.Minute, "r", 7*24*time.Hour)

	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}

	access := cookies[httpx.AccessTokenCookie]
	require.NotNil(t, access)
	require.Equal(t, "a", access.Value)
	require.Equal(t, 900, access.MaxAge)
	require.True(t, access.HttpOnly)
	require.True(t, access.Secure)
	require.Equal(t, http.SameSiteStrictMode, access.SameSite)
	require.Equal(t, "/", access.Path)

	refresh := cookies[httpx.RefreshTokenCookie]
	require.NotNil(t, refresh)
	require.Equal(t, 7*24*3600, refresh.MaxAge)

	rec = httptest.NewRecorder()
	httpx.ClearTokenCookies(rec, opts)
	for _, c := range rec.Result().Cookies() {
		require.Empty(t, c.Value)
		require.Equal(t, -1, c.MaxAge)
	}
	require.Len(t, rec.Result().Cookies(), 2)
}
