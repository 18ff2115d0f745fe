// Package common defines shared sentinel errors used across the keeper
// service layers. Callers should use errors.Is to match these values;
// producers wrap them with %w to attach detail.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// Input errors (the client must fix the request).
	ErrValidation = errors.New("validation error")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")

	// Generic internal flow control.
	ErrInternal = errors.New("internal error")
)
