package session

import (
	"errors"
	"time"
)

var (
	// ErrNoSession indicates that no operator session is stored.
	ErrNoSession = errors.New("session: not signed in")
	// ErrSessionExpired signals that the stored session could not be refreshed.
	ErrSessionExpired = errors.New("session: expired, sign in again")
)

// User is the identity-provider account behind the session.
type User struct {
	ID    string            `json:"id"`
	Email string            `json:"email"`
	Name  string            `json:"name,omitempty"`
	Role  string            `json:"role,omitempty"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// Session is an authenticated operator session against the console. The
// access token is short-lived; the refresh token rotates it.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token has passed its expiry, with a
// small skew allowance so callers refresh before the provider rejects them.
func (s *Session) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return now.After(s.ExpiresAt.Add(-30 * time.Second))
}
