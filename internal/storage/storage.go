// Package storage defines the key/value persistence contract the profile,
// game-state and leaderboard services write through. Implementations must
// report a missing key as found=false with a nil error; only real I/O
// failures produce errors, wrapped as domain.ErrStorage.
package storage

import "context"

// Store is the persistence collaborator
type Store interface {
	// Get returns the value for key, or found=false if the key has never
	// been written.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set durably writes value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}
