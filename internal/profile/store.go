// Package profile maps player identities to display names.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fluentquest/backend/internal/domain"
	"github.com/fluentquest/backend/internal/storage"
)

const keyPrefix = "fluentquest_profile:"

// ValidateUsername trims name and checks the length bounds. Returns the
// trimmed name.
func ValidateUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < domain.UsernameMinLen || n > domain.UsernameMaxLen {
		return "", domain.ErrInvalidUsername
	}
	return name, nil
}

// Store persists profiles through the key/value storage contract
type Store struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a profile store
func NewStore(store storage.Store, logger *slog.Logger) *Store {
	return &Store{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Get returns the profile for identity, or domain.ErrProfileNotFound if
// the player never set one. Callers treat not-found as "no data yet".
func (s *Store) Get(ctx context.Context, identity string) (*domain.Profile, error) {
	raw, found, err := s.store.Get(ctx, keyPrefix+identity)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if !found {
		return nil, domain.ErrProfileNotFound
	}

	var p domain.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("%w: decoding profile: %v", domain.ErrStorage, err)
	}
	p.Identity = identity
	return &p, nil
}

// UpdateUsername validates and upserts the display name for identity.
// Idempotent: repeating the same name yields the same stored state.
func (s *Store) UpdateUsername(ctx context.Context, identity, name string) (*domain.Profile, error) {
	name, err := ValidateUsername(name)
	if err != nil {
		return nil, err
	}

	p := &domain.Profile{
		Identity:  identity,
		Username:  name,
		UpdatedAt: s.now(),
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding profile: %w", err)
	}
	if err := s.store.Set(ctx, keyPrefix+identity, string(data)); err != nil {
		return nil, fmt.Errorf("persisting profile: %w", err)
	}
	return p, nil
}

// HasUsername reports whether identity has picked a display name
func (s *Store) HasUsername(ctx context.Context, identity string) (bool, error) {
	p, err := s.Get(ctx, identity)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return p.Username != "", nil
}
