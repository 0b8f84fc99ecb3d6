package domain

import "time"

// OneTimeCode is the pending OTP for an email. At most one exists per email.
type OneTimeCode struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the code is past its expiry at now.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
