package domain

import "time"

// TokenPair is what login and refresh hand back to the caller.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	TokenType        string    `json:"tokenType"` // always "Bearer"
	ExpiresIn        int       `json:"expiresIn"` // access lifetime in seconds
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// RevocationEntry blacklists a token until its natural expiry.
type RevocationEntry struct {
	Fingerprint string
	ExpiresAt   time.Time
}
