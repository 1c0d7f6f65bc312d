package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for operations on a missing, disabled or
	// deleted portal or invite.
	ErrNotFound = errors.New("not found")

	// ErrExpired is returned when an invite is past its expiry. Terminal
	// for that invite; the user has to request a new one.
	ErrExpired = errors.New("invite expired")

	// ErrExhausted is returned when an invite has no uses left, including
	// a second verify on an already-verified invite.
	ErrExhausted = errors.New("invite exhausted")

	// ErrBanned is returned when a user on the portal's ban list requests
	// or verifies an invite.
	ErrBanned = errors.New("user banned from portal")
)

// ConfigurationError reports invalid portal setup input. No state is
// mutated when it is returned.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// GatewayError wraps a market data fetch failure, distinguishing a timed
// out request from a malformed payload. The engine retries at the next
// scheduled cycle, never immediately.
type GatewayError struct {
	Timeout bool
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("market gateway unavailable (timeout): %v", e.Err)
	}
	return fmt.Sprintf("market gateway unavailable (malformed response): %v", e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
