package google

import (
	"errors"
	"fmt"
	"net/http"
)

// OAuthError is an error reported by Google on the callback or token endpoint.
type OAuthError struct {
	// Code is the OAuth error code, e.g. access_denied.
	Code string `json:"error"`
	// Description is the optional human-readable detail.
	Description string `json:"error_description,omitempty"`
	// StatusCode is the HTTP status, when the error came from an HTTP response.
	StatusCode int `json:"-"`
}

// Error returns a string representation of the OAuth error.
func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("OAuth error %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("OAuth error: %s", e.Code)
}

// NewOAuthError creates a new OAuth error.
func NewOAuthError(code, description string, statusCode int) *OAuthError {
	return &OAuthError{Code: code, Description: description, StatusCode: statusCode}
}

// AuthenticationError is a local failure of the sign-in flow.
type AuthenticationError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Cause   error  `json:"-"`
}

// Error returns a string representation of the authentication error.
func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AuthenticationError) Unwrap() error { return e.Cause }

// Is matches authentication errors by type so errors.Is works against the
// package-level values after NewAuthenticationError attached a cause.
func (e *AuthenticationError) Is(target error) bool {
	var t *AuthenticationError
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

var (
	// ErrInteractionRequired is returned by a non-interactive GetAuthToken with no usable cached token.
	ErrInteractionRequired = &AuthenticationError{
		Type:    "interaction_required",
		Message: "User interaction is required to sign in",
		Code:    http.StatusUnauthorized,
	}

	ErrInvalidState = &AuthenticationError{
		Type:    "invalid_state",
		Message: "OAuth state parameter is invalid",
		Code:    http.StatusBadRequest,
	}

	ErrCodeExchangeFailed = &AuthenticationError{
		Type:    "code_exchange_failed",
		Message: "Failed to exchange authorization code for tokens",
		Code:    http.StatusBadRequest,
	}

	ErrServerStartFailed = &AuthenticationError{
		Type:    "server_start_failed",
		Message: "Failed to start OAuth callback server",
		Code:    http.StatusInternalServerError,
	}

	// ErrPortInUse uses exit code 13 for the CLI.
	ErrPortInUse = &AuthenticationError{
		Type:    "port_in_use",
		Message: "OAuth callback port is already in use",
		Code:    13,
	}

	ErrCallbackTimeout = &AuthenticationError{
		Type:    "callback_timeout",
		Message: "Timeout waiting for OAuth callback",
		Code:    http.StatusRequestTimeout,
	}

	ErrBrowserOpenFailed = &AuthenticationError{
		Type:    "browser_open_failed",
		Message: "Failed to open browser for authentication",
		Code:    http.StatusInternalServerError,
	}

	ErrRevokeFailed = &AuthenticationError{
		Type:    "revoke_failed",
		Message: "Failed to revoke the access token",
		Code:    http.StatusBadGateway,
	}
)

// NewAuthenticationError copies baseErr and attaches cause.
func NewAuthenticationError(baseErr *AuthenticationError, cause error) *AuthenticationError {
	return &AuthenticationError{
		Type:    baseErr.Type,
		Message: baseErr.Message,
		Code:    baseErr.Code,
		Cause:   cause,
	}
}

// IsAuthenticationError checks if an error is an authentication error.
func IsAuthenticationError(err error) bool {
	var authenticationError *AuthenticationError
	return errors.As(err, &authenticationError)
}

// IsOAuthError checks if an error is an OAuth error.
func IsOAuthError(err error) bool {
	var oAuthError *OAuthError
	return errors.As(err, &oAuthError)
}

// GetUserFriendlyMessage returns a message suitable for the terminal.
func GetUserFriendlyMessage(err error) string {
	var oauthErr *OAuthError
	if errors.As(err, &oauthErr) {
		switch oauthErr.Code {
		case "access_denied":
			return "Sign-in was cancelled or denied."
		case "invalid_request", "invalid_grant":
			return "Invalid sign-in request. Please try again."
		case "server_error", "temporarily_unavailable":
			return "Google sign-in is unavailable. Please try again later."
		default:
			if oauthErr.Description != "" {
				return fmt.Sprintf("Sign-in failed: %s", oauthErr.Description)
			}
			return "Sign-in failed. Please try again."
		}
	}
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		switch authErr.Type {
		case "interaction_required":
			return "Please sign in to continue."
		case "port_in_use":
			return "The OAuth callback port is already in use. Close the other process or set oauth.callback-port."
		case "callback_timeout":
			return "Sign-in timed out. Please try again."
		case "browser_open_failed":
			return "Could not open your browser automatically. Please copy and paste the URL manually."
		case "revoke_failed":
			return "Signed out locally, but the token could not be revoked."
		default:
			return "Authentication failed. Please try again."
		}
	}
	return "An unexpected error occurred. Please try again."
}
