package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind is the error taxonomy surfaced to callers.
type Kind string

const (
	KindInvalidCredentials      Kind = "INVALID_CREDENTIALS"
	KindNoToken                 Kind = "NO_TOKEN"
	KindTokenInvalid            Kind = "TOKEN_INVALID"
	KindTokenExpired            Kind = "TOKEN_EXPIRED"
	KindTokenRevoked            Kind = "TOKEN_REVOKED"
	KindSessionExpired          Kind = "SESSION_EXPIRED"
	KindAccountInactive         Kind = "ACCOUNT_INACTIVE"
	KindInsufficientPermissions Kind = "INSUFFICIENT_PERMISSIONS"
	KindAccountLocked           Kind = "ACCOUNT_LOCKED"
	KindRateLimitExceeded       Kind = "RATE_LIMIT_EXCEEDED"
	KindValidation              Kind = "VALIDATION_ERROR"
	KindNotFound                Kind = "NOT_FOUND"
	KindDatabase                Kind = "DATABASE_ERROR"
	KindInternal                Kind = "INTERNAL_ERROR"
)

// Status maps the kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindInvalidCredentials, KindNoToken, KindTokenInvalid, KindTokenExpired,
		KindTokenRevoked, KindSessionExpired, KindAccountInactive:
		return http.StatusUnauthorized
	case KindInsufficientPermissions:
		return http.StatusForbidden
	case KindAccountLocked:
		return http.StatusLocked
	case KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// DefaultMessage is the human text used when an Error carries none.
func (k Kind) DefaultMessage() string {
	switch k {
	case KindInvalidCredentials:
		return "Invalid account or password"
	case KindNoToken:
		return "Authentication required"
	case KindTokenInvalid:
		return "Invalid authentication token"
	case KindTokenExpired:
		return "Authentication token has expired"
	case KindTokenRevoked:
		return "Authentication token has been revoked"
	case KindSessionExpired:
		return "Session expired, please log in again"
	case KindAccountInactive:
		return "Account is disabled"
	case KindInsufficientPermissions:
		return "Insufficient permissions"
	case KindAccountLocked:
		return "Account temporarily locked due to repeated failed attempts"
	case KindRateLimitExceeded:
		return "Too many attempts, please try again later"
	case KindValidation:
		return "Invalid request"
	case KindNotFound:
		return "Not found"
	case KindDatabase:
		return "Authorization state is temporarily unavailable"
	default:
		return "An internal error occurred"
	}
}

// Error is a classified failure. Err is the underlying cause and is never
// shown to clients in production.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.DefaultMessage()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, ErrTokenRevoked)
// works on wrapped values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// E builds an *Error of kind wrapping cause.
func E(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// Sentinels for errors.Is.
var (
	ErrInvalidCredentials      = &Error{Kind: KindInvalidCredentials}
	ErrNoToken                 = &Error{Kind: KindNoToken}
	ErrTokenInvalid            = &Error{Kind: KindTokenInvalid}
	ErrTokenExpired            = &Error{Kind: KindTokenExpired}
	ErrTokenRevoked            = &Error{Kind: KindTokenRevoked}
	ErrSessionExpired          = &Error{Kind: KindSessionExpired}
	ErrAccountInactive         = &Error{Kind: KindAccountInactive}
	ErrInsufficientPermissions = &Error{Kind: KindInsufficientPermissions}
	ErrAccountLocked           = &Error{Kind: KindAccountLocked}
	ErrRateLimitExceeded       = &Error{Kind: KindRateLimitExceeded}
	ErrDatabase                = &Error{Kind: KindDatabase}
)

// KindOf classifies err. Anything unclassified is INTERNAL_ERROR.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// RetryAfterOf returns the retry hint carried by err, if any.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return KindOf(err).DefaultMessage()
}
