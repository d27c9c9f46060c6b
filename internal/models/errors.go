package models

import "errors"

// Shared error taxonomy. Handlers map these to HTTP statuses; services wrap
// them with context via fmt.Errorf("...: %w", err) and callers check with
// errors.Is.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUserNotFound      = errors.New("user not found")
	ErrJobNotFound       = errors.New("job not found")
	ErrCreationNotFound  = errors.New("creation not found")
	ErrInsufficientFunds = errors.New("insufficient tokens")
)
