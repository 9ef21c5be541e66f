package httpx

import (
	"net/http"
	"strings"
	"time"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	// RefreshTokenHeader lets non-browser clients present a refresh token
	// without cookies.
	RefreshTokenHeader = "X-Refresh-Token"

	// AccessTokenHeader carries a transparently refreshed access token back
	// to the caller.
	AccessTokenHeader = "X-Access-Token"
)

// CookieOptions controls the attributes of the token cookie pair.
type CookieOptions struct {
	Secure bool
	Domain string
	Path   string // default "/"
}

// BearerToken returns the token from "Authorization: Bearer <token>", or "".
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// AccessToken resolves the presented access token. The bearer header wins
// over the cookie when both are present.
func AccessToken(r *http.Request) string {
	if tok := BearerToken(r); tok != "" {
		return tok
	}
	return cookieValue(r, AccessTokenCookie)
}

// RefreshToken resolves the presented refresh token from the cookie or the
// X-Refresh-Token header.
func RefreshToken(r *http.Request) string {
	if tok := cookieValue(r, RefreshTokenCookie); tok != "" {
		return tok
	}
	return strings.TrimSpace(r.Header.Get(RefreshTokenHeader))
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// SetTokenCookies writes the access/refresh pair as http-only, same-site
// strict cookies whose max-age follows each token's lifetime.
func SetTokenCookies(w http.ResponseWriter, opts CookieOptions, access string, accessTTL time.Duration, refresh string, refreshTTL time.Duration) {
	http.SetCookie(w, tokenCookie(opts, AccessTokenCookie, access, accessTTL))
	http.SetCookie(w, tokenCookie(opts, RefreshTokenCookie, refresh, refreshTTL))
}

// ClearTokenCookies expires both token cookies.
func ClearTokenCookies(w http.ResponseWriter, opts CookieOptions) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		c := tokenCookie(opts, name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func tokenCookie(opts CookieOptions, name, value string, ttl time.Duration) *http.Cookie {
	path := opts.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   opts.Domain,
		MaxAge:   int(ttl.Seconds()),
		Secure:   opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
