package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrForbidden  = errors.New("forbidden")

	// Auth/upstream taxonomy.
	ErrNoSession          = errors.New("no session")
	ErrProfileUnavailable = errors.New("profile unavailable")
	ErrTokenRefresh       = errors.New("token refresh failed")
	ErrUpstreamAuth       = errors.New("upstream auth error")
	ErrUpstream           = errors.New("upstream unavailable")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// NoSession indicates the identity provider reported no live session.
func NoSession() *AppError {
	return &AppError{
		Err:     ErrNoSession,
		Message: "no live session",
	}
}

// ProfileUnavailable indicates the profile store exhausted its retries.
func ProfileUnavailable(userID string, cause error) *AppError {
	return &AppError{
		Err:     ErrProfileUnavailable,
		Message: fmt.Sprintf("profile unavailable for user %s: %v", userID, cause),
	}
}

// TokenRefreshFailed indicates no refresh token is cached or the exchange
// with the music provider's token endpoint was rejected.
func TokenRefreshFailed(message string) *AppError {
	return &AppError{
		Err:     ErrTokenRefresh,
		Message: message,
	}
}

// UpstreamAuth wraps a 401 from the music provider — the cached access token
// is expired or invalid and must be refreshed.
func UpstreamAuth(message string) *AppError {
	return &AppError{
		Err:     ErrUpstreamAuth,
		Message: message,
	}
}

// Upstream wraps any other upstream failure (5xx, network, malformed body).
func Upstream(message string) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: message,
	}
}
