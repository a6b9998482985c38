// Package gamestate persists each player's cumulative game progress:
// score, streak, guessed words and last-played date.
package gamestate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluentquest/backend/internal/domain"
	"github.com/fluentquest/backend/internal/storage"
)

const keyPrefix = "fluentquest_game_state:"

// Store persists game state through the key/value storage contract
type Store struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a game state store
func NewStore(store storage.Store, logger *slog.Logger) *Store {
	return &Store{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Load returns the stored state for identity, or a zero state if the
// player has never played.
func (s *Store) Load(ctx context.Context, identity string) (*domain.GameState, error) {
	raw, found, err := s.store.Get(ctx, keyPrefix+identity)
	if err != nil {
		return nil, fmt.Errorf("loading game state: %w", err)
	}
	if !found {
		return &domain.GameState{}, nil
	}

	var state domain.GameState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("%w: decoding game state: %v", domain.ErrStorage, err)
	}
	return &state, nil
}

// Save persists state for identity
func (s *Store) Save(ctx context.Context, identity string, state *domain.GameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding game state: %w", err)
	}
	if err := s.store.Set(ctx, keyPrefix+identity, string(data)); err != nil {
		return fmt.Errorf("persisting game state: %w", err)
	}
	return nil
}

// ApplyGuess scores one guess, updates the stored state and returns the
// new state with the points earned.
func (s *Store) ApplyGuess(ctx context.Context, identity string, result domain.GuessResult, wordID, hintsUsed int, dailyChallenge bool) (*domain.GameState, int64, error) {
	state, err := s.Load(ctx, identity)
	if err != nil {
		return nil, 0, err
	}

	points := state.Apply(result, wordID, hintsUsed, dailyChallenge)
	state.LastPlayedDate = s.today()

	if err := s.Save(ctx, identity, state); err != nil {
		return nil, 0, err
	}
	return state, points, nil
}

// NewDailyAvailable reports whether the player has not yet played today's
// daily challenge.
func (s *Store) NewDailyAvailable(ctx context.Context, identity string) (bool, error) {
	state, err := s.Load(ctx, identity)
	if err != nil {
		return false, err
	}
	return state.LastPlayedDate != s.today(), nil
}

func (s *Store) today() string {
	return s.now().UTC().Format("2006-01-02")
}
