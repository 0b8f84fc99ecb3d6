package domain

import "time"

type Session struct {
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created"`
}

// Valid reports whether the session is still usable at now. The boundary
// instant itself is valid.
func (s *Session) Valid(now time.Time) bool {
	return !now.After(s.ExpiresAt)
}
