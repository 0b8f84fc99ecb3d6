package token

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewSessionToken returns a random 32-character hex token (a v4 UUID with the
// dashes stripped).
func NewSessionToken() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return strings.ReplaceAll(u.String(), "-", ""), nil
}
