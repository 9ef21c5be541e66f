package authsdk

import "time"

// ============================================================================
// Auth Types
// ============================================================================

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Account  string `json:"account" validate:"required,max=254" example:"ada"`
	Password string `json:"password" validate:"required,max=1024" example:"correct horse battery staple"`
}

// RefreshRequest is the body of POST /api/auth/refresh. The token may instead
// be sent in the refresh_token cookie or the X-Refresh-Token header.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken,omitempty" validate:"omitempty,jwt"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken      string         `json:"accessToken"`
	RefreshToken     string         `json:"refreshToken"`
	TokenType        string         `json:"tokenType" example:"Bearer"`
	ExpiresIn        int            `json:"expiresIn" example:"900"` // seconds
	AccessExpiresAt  time.Time      `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time      `json:"refreshExpiresAt"`
	User             *PrincipalInfo `json:"user,omitempty"`
}

// PrincipalInfo describes the identity a request runs as.
type PrincipalInfo struct {
	ID          string   `json:"id" example:"01J8Z3QW6V9X2K4M5N7P8R0S1T"`
	Account     string   `json:"account,omitempty" example:"ada"`
	Role        string   `json:"role" example:"admin"`
	Permissions []string `json:"permissions" example:"workflows:read,workflows:write"`
	IsService   bool     `json:"isService"`
}

// Envelope is the success wrapper around every JSON payload.
type Envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the state of each backing store.
type HealthChecks struct {
	// StateStore holds revocations and attempt counters.
	StateStore string `json:"stateStore"`

	// Principals holds accounts and credentials.
	Principals string `json:"principals"`
}
