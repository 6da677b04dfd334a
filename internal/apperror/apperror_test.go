package apperror

import (
	"errors"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("profile", "abc"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("mode", "mode is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Forbidden wraps ErrForbidden",
			err:       Forbidden("insufficient scope"),
			target:    ErrForbidden,
			wantMatch: true,
		},
		{
			name:      "NoSession wraps ErrNoSession",
			err:       NoSession(),
			target:    ErrNoSession,
			wantMatch: true,
		},
		{
			name:      "ProfileUnavailable wraps ErrProfileUnavailable",
			err:       ProfileUnavailable("abc", errors.New("db down")),
			target:    ErrProfileUnavailable,
			wantMatch: true,
		},
		{
			name:      "TokenRefreshFailed wraps ErrTokenRefresh",
			err:       TokenRefreshFailed("no refresh token cached"),
			target:    ErrTokenRefresh,
			wantMatch: true,
		},
		{
			name:      "UpstreamAuth wraps ErrUpstreamAuth",
			err:       UpstreamAuth("token expired"),
			target:    ErrUpstreamAuth,
			wantMatch: true,
		},
		{
			name:      "Upstream wraps ErrUpstream",
			err:       Upstream("status 502"),
			target:    ErrUpstream,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("profile", "abc"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "UpstreamAuth does NOT match ErrUpstream",
			err:       UpstreamAuth("token expired"),
			target:    ErrUpstream,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("profile", "abc"),
			wantMessage: "profile not found with id abc",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("mode", "mode is required"),
			wantMessage: "mode is required",
		},
		{
			name:        "ProfileUnavailable names the user and cause",
			err:         ProfileUnavailable("abc", errors.New("db down")),
			wantMessage: "profile unavailable for user abc: db down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("profile", "abc")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("sessionType", "unknown session type")
	if err.Field != "sessionType" {
		t.Errorf("Field = %q, want %q", err.Field, "sessionType")
	}
}
