package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy roots. Specific errors wrap one of these so callers can
// classify with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrStorage    = errors.New("storage failure")
	ErrNotFound   = errors.New("not found")
	ErrAuth       = errors.New("authentication failed")
)

// Domain errors
var (
	ErrInvalidScore    = fmt.Errorf("%w: score must be a non-negative integer", ErrValidation)
	ErrInvalidUsername = fmt.Errorf("%w: username must be %d-%d characters", ErrValidation, UsernameMinLen, UsernameMaxLen)
	ErrProfileNotFound = fmt.Errorf("profile %w", ErrNotFound)
	ErrEntryNotFound   = fmt.Errorf("leaderboard entry %w", ErrNotFound)
	ErrNotSignedIn     = fmt.Errorf("%w: not signed in", ErrAuth)
	ErrBadCredentials  = fmt.Errorf("%w: invalid credentials", ErrAuth)
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInternalError   = errors.New("internal server error")
)

// IsValidationError checks if an error is a validation type error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStorageError checks if an error is a storage type error
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsAuthError checks if an error is an authentication type error
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuth)
}
