package session

import "fmt"

// Static messages shown to the user.
const (
	MsgAuthFailed   = "Authentication failed. Please try again."
	MsgRevokeFailed = "Signed out locally, but the token could not be revoked."
	MsgLogoutFailed = "Logout failed. Please try again."
)

// AuthError reports a failed authenticate or logout. Message is safe to display;
// Err carries the cause for logs.
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("session: %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }
