package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// LoginTokens performs POST /api/auth/login and returns the raw token response.
func (c *SDKClient) LoginTokens(ctx context.Context, account, password string) (*TokenResponse, error) {
	return c.postTokens(ctx, "/api/auth/login", LoginRequest{Account: account, Password: password})
}

// Refresh exchanges refreshToken for a new pair. The presented token is
// revoked by the server whether or not the caller keeps the result.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.postTokens(ctx, "/api/auth/refresh", RefreshRequest{RefreshToken: refreshToken})
}

func (c *SDKClient) postTokens(ctx context.Context, path string, body any) (*TokenResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, path, bytes.NewReader(payload), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return nil, err
	}

	var env Envelope[TokenResponse]
	if err := decodeJSON(resp, &env, http.StatusOK); err != nil {
		return nil, err
	}
	return &env.Data, nil
}
