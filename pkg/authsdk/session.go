package authsdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Response headers carrying a pair the gateway refreshed transparently.
const (
	accessTokenHeader  = "X-Access-Token"
	refreshTokenHeader = "X-Refresh-Token"
)

// Session represents an authenticated session with automatic token refresh.
// It is safe for concurrent use.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	user         *PrincipalInfo
}

func newSession(client *SDKClient, tokens *TokenResponse) *Session {
	s := &Session{client: client}
	s.update(tokens)
	return s
}

// update stores a new pair. Callers hold mu or own s exclusively.
func (s *Session) update(tokens *TokenResponse) {
	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	s.expiresAt = s.client.now().Add(time.Duration(tokens.ExpiresIn)*time.Second - s.client.RefreshSkew)
	if tokens.User != nil {
		s.user = tokens.User
	}
}

// AccessToken returns the current access token without checking expiration.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// User returns the principal reported at login, if any.
func (s *Session) User() *PrincipalInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// getValidToken returns a valid access token, refreshing if it is about to
// expire.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.client.now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine may have refreshed)
	if s.client.now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	if s.refreshToken == "" {
		return "", errors.New("access token expired and no refresh token available")
	}

	tokens, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	s.update(tokens)

	return s.accessToken, nil
}

// Do sends an authenticated request to path. If the gateway rotated the pair
// on the way through, the session picks up the new pair and its expiry.
func (s *Session) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, s.client.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	access, refresh := resp.Header.Get(accessTokenHeader), resp.Header.Get(refreshTokenHeader)
	if access != "" && refresh != "" {
		expiresAt := s.client.accessExpiry(access)

		s.mu.Lock()
		s.accessToken, s.refreshToken = access, refresh
		s.expiresAt = expiresAt
		s.mu.Unlock()
	}
	return resp, nil
}

// Me returns the principal the gateway resolves for this session.
func (s *Session) Me(ctx context.Context) (*PrincipalInfo, error) {
	resp, err := s.Do(ctx, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var env Envelope[PrincipalInfo]
	if err := decodeJSON(resp, &env, http.StatusOK); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Logout revokes both tokens of the session on the server.
func (s *Session) Logout(ctx context.Context) error {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return err
	}

	s.mu.RLock()
	refresh := s.refreshToken
	s.mu.RUnlock()

	resp, err := s.client.doRequest(ctx, http.MethodPost, "/api/auth/logout", nil, map[string]string{
		"Authorization":    "Bearer " + token,
		refreshTokenHeader: refresh,
	})
	if err != nil {
		return err
	}
	if err := CheckResponse(resp); err != nil {
		return err
	}
	resp.Body.Close()

	s.mu.Lock()
	s.accessToken, s.refreshToken, s.expiresAt = "", "", time.Time{}
	s.mu.Unlock()
	return nil
}
