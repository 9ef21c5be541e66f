package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SDKClient is a client for the gatekeeper service. It provides the
// unauthenticated operations and creates authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// RefreshSkew is how long before expiry a Session refreshes its access
	// token. Default 30s.
	RefreshSkew time.Duration

	// AccessTTL is assumed for a rotated access token whose exp claim cannot
	// be read. Default 15m.
	AccessTTL time.Duration

	// Now overrides the clock used for expiry decisions.
	Now func() time.Time
}

// NewSDKClient creates a new client for the gateway at baseURL.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 45 * time.Second, // login may be delayed up to 30s
		},
		RefreshSkew: 30 * time.Second,
		AccessTTL:   15 * time.Minute,
	}
}

// Login authenticates with account and password and returns a Session.
func (c *SDKClient) Login(ctx context.Context, account, password string) (*Session, error) {
	tokens, err := c.LoginTokens(ctx, account, password)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokens), nil
}

// NewSessionFromTokens creates a session from tokens obtained elsewhere. The
// session refreshes on its first use if expiresIn has already passed.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, expiresIn int) *Session {
	return newSession(c, &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}

func (c *SDKClient) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// accessExpiry returns when a session holding token should refresh. The exp
// claim is read unverified; only the gateway decides whether the token is good.
func (c *SDKClient) accessExpiry(token string) time.Time {
	exp := c.now().Add(c.AccessTTL)

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil && claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return exp.Add(-c.RefreshSkew)
}
