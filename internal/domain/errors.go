package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the application.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("resource already exists")
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimitExceeded is the first-contact cap. It is a normal business
	// outcome: the sender has to wait for a reply.
	ErrRateLimitExceeded = errors.New("first contact limit reached, wait for a reply")

	ErrEmptyContent = fmt.Errorf("%w: message cannot be empty", ErrInvalidInput)
	ErrBlocked      = fmt.Errorf("%w: messaging blocked by moderation", ErrForbidden)
)
