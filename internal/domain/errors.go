package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so the router can map them to client messages without
// leaking infrastructure details.
var (
	ErrValidation = errors.New("validation failed")
	ErrCooldown   = errors.New("otp cooldown")
	ErrDispatch   = errors.New("email send failed")
	ErrNotFound   = errors.New("not found")
	ErrExpired    = errors.New("expired")
	ErrMismatch   = errors.New("code mismatch")
	ErrAuth       = errors.New("unauthorized")
)
