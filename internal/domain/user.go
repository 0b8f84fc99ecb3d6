package domain

import (
	"strings"
	"time"
)

// User is one row of the user registry. LoginCount counts OTP issuances, not
// verified logins.
type User struct {
	Email        string    `json:"email"`
	FirstLoginAt time.Time `json:"first_login"`
	LastLoginAt  time.Time `json:"last_login"`
	LoginCount   int       `json:"login_count"`
}

// NormalizeEmail trims and lowercases an address so it can be used as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
