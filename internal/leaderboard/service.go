// Package leaderboard implements the bounded top-N leaderboard over the
// key/value storage contract. The merge-dedupe-sort-truncate cycle lives
// here, not in storage, so any conforming store works.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fluentquest/backend/internal/config"
	"github.com/fluentquest/backend/internal/domain"
	"github.com/fluentquest/backend/internal/storage"
)

// Service maintains the persisted leaderboard aggregate
type Service struct {
	store        storage.Store
	key          string
	maxEntries   int
	defaultLimit int
	logger       *slog.Logger
	now          func() time.Time

	// mu serializes the read-merge-write cycle: two concurrent submissions
	// against the same stored table would otherwise race and the last write
	// would silently discard the other's update.
	mu sync.Mutex
}

// NewService creates a leaderboard service persisting through store
func NewService(store storage.Store, cfg *config.LeaderboardConfig, logger *slog.Logger) *Service {
	return &Service{
		store:        store,
		key:          cfg.Key,
		maxEntries:   cfg.MaxEntries,
		defaultLimit: cfg.DefaultLimit,
		logger:       logger,
		now:          time.Now,
	}
}

// Submit records a score for playerKey and returns the refreshed table.
// An existing entry is replaced only when the new score is strictly
// greater; a lower or equal resubmission leaves the stored entry untouched.
func (s *Service) Submit(ctx context.Context, playerKey string, score int64) (*domain.LeaderboardTable, error) {
	if score < 0 {
		return nil, domain.ErrInvalidScore
	}
	playerKey = strings.TrimSpace(playerKey)
	if playerKey == "" {
		playerKey = domain.DefaultPlayerName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	entry := domain.ScoreEntry{
		ID:         uuid.New().String(),
		Name:       playerKey,
		Score:      score,
		RecordedAt: s.now(),
	}

	replaced := false
	for i, existing := range table.Entries {
		if existing.Name != playerKey {
			continue
		}
		if score > existing.Score {
			table.Entries[i] = entry
		}
		replaced = true
		break
	}
	if !replaced {
		table.Entries = append(table.Entries, entry)
	}

	table.Entries = domain.Normalize(table.Entries, s.maxEntries)
	table.LastUpdated = s.now()

	if err := s.persist(ctx, table); err != nil {
		return nil, err
	}
	return table, nil
}

// Top returns at most limit entries, sorted descending. Pure read.
func (s *Service) Top(ctx context.Context, limit int) ([]domain.ScoreEntry, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxEntries {
		limit = s.maxEntries
	}

	table, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(table.Entries) > limit {
		table.Entries = table.Entries[:limit]
	}
	return table.Entries, nil
}

// RenameEntry updates the display name of the entry with the given ID,
// leaving its score in place. A missing ID is a no-op returning the
// unchanged table.
func (s *Service) RenameEntry(ctx context.Context, entryID, newName string) (*domain.LeaderboardTable, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, fmt.Errorf("%w: entry name must not be empty", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	for i, entry := range table.Entries {
		if entry.ID != entryID {
			continue
		}
		table.Entries[i].Name = newName
		table.LastUpdated = s.now()
		if err := s.persist(ctx, table); err != nil {
			return nil, err
		}
		return table, nil
	}

	s.logger.Debug("rename skipped, entry not found", "entry_id", entryID)
	return table, nil
}

// Entries returns the full normalized table. Used by the reconciliation
// worker.
func (s *Service) Entries(ctx context.Context) ([]domain.ScoreEntry, error) {
	table, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return table.Entries, nil
}

// Restore replaces the persisted table with the given entries. Used for
// recovery from the relational layer.
func (s *Service) Restore(ctx context.Context, entries []domain.ScoreEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := &domain.LeaderboardTable{
		Entries:     domain.Normalize(entries, s.maxEntries),
		LastUpdated: s.now(),
	}
	return s.persist(ctx, table)
}

// load reads and re-validates the persisted table. Stored data is
// re-deduplicated and re-sorted on every read; legacy or concurrently
// written records are never trusted blindly.
func (s *Service) load(ctx context.Context) (*domain.LeaderboardTable, error) {
	raw, found, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("loading leaderboard: %w", err)
	}
	if !found {
		return &domain.LeaderboardTable{}, nil
	}

	var table domain.LeaderboardTable
	if err := json.Unmarshal([]byte(raw), &table); err != nil {
		return nil, fmt.Errorf("%w: decoding leaderboard table: %v", domain.ErrStorage, err)
	}

	table.Entries = domain.Normalize(table.Entries, s.maxEntries)
	return &table, nil
}

// persist writes the table as a single record so a storage failure can
// never leave a partially merged table behind.
func (s *Service) persist(ctx context.Context, table *domain.LeaderboardTable) error {
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("encoding leaderboard table: %w", err)
	}
	if err := s.store.Set(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("persisting leaderboard: %w", err)
	}
	return nil
}
