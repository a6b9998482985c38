// Package backend is the explicitly constructed service façade the HTTP
// API, the Kafka consumer and tests call into. It routes each operation to
// the configured primary adapter and falls back to the local layer for
// reads where user-visible continuity matters.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fluentquest/backend/internal/config"
	"github.com/fluentquest/backend/internal/domain"
	"github.com/fluentquest/backend/internal/gamestate"
	"github.com/fluentquest/backend/internal/leaderboard"
	"github.com/fluentquest/backend/internal/profile"
	"github.com/fluentquest/backend/internal/storage"
)

// Remote is the subset of the relational adapter the backend drives.
// Nil in local-only deployments.
type Remote interface {
	Submit(ctx context.Context, playerKey string, score int64) (*domain.LeaderboardTable, error)
	Top(ctx context.Context, limit int) ([]domain.ScoreEntry, error)
	RenameEntry(ctx context.Context, entryID, newName string) (*domain.LeaderboardTable, error)
	GetProfile(ctx context.Context, identity string) (*domain.Profile, error)
	UpdateUsername(ctx context.Context, identity, name string) (*domain.Profile, error)
	CreateAccount(ctx context.Context, email, password string) (string, error)
	SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	SignOut(ctx context.Context, token string) error
}

// Broadcaster pushes leaderboard updates to connected clients
type Broadcaster interface {
	BroadcastLeaderboard(view *domain.LeaderboardView)
}

// Backend bundles the stores behind the public operations. Callers hold a
// reference returned by New; there is no hidden process-wide instance.
type Backend struct {
	mode     string
	remote   Remote
	local    *leaderboard.Service
	profiles *profile.Store
	games    *gamestate.Store
	auth     *localAuth
	hub      Broadcaster
	logger   *slog.Logger
}

// New constructs a ready backend. remote may be nil when mode is local.
func New(cfg *config.Config, store storage.Store, remote Remote, logger *slog.Logger) (*Backend, error) {
	if cfg.Backend.Mode == config.ModeRemote && remote == nil {
		return nil, fmt.Errorf("remote mode configured without a remote adapter")
	}
	return &Backend{
		mode:     cfg.Backend.Mode,
		remote:   remote,
		local:    leaderboard.NewService(store, &cfg.Leaderboard, logger),
		profiles: profile.NewStore(store, logger),
		games:    gamestate.NewStore(store, logger),
		auth:     newLocalAuth(store, logger),
		hub:      nil,
		logger:   logger,
	}, nil
}

// SetHub attaches a broadcaster for live leaderboard updates
func (b *Backend) SetHub(hub Broadcaster) {
	b.hub = hub
}

// Local exposes the local table service for the reconciliation worker
func (b *Backend) Local() *leaderboard.Service {
	return b.local
}

func (b *Backend) remoteMode() bool {
	return b.mode == config.ModeRemote
}

// GetSession returns the current session. An anonymous session has an
// empty identity.
func (b *Backend) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	if b.remoteMode() {
		return b.remote.GetSession(ctx, token)
	}
	return b.auth.GetSession(ctx)
}

// SignIn authenticates and returns a session. Failures are always
// surfaced, never converted to a fallback result.
func (b *Backend) SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	if b.remoteMode() {
		return b.remote.SignIn(ctx, creds)
	}
	return b.auth.SignIn(ctx)
}

// SignOut ends the current session
func (b *Backend) SignOut(ctx context.Context, token string) error {
	if b.remoteMode() {
		return b.remote.SignOut(ctx, token)
	}
	return b.auth.SignOut(ctx)
}

// CreateAccount registers an email/password account on the remote adapter
func (b *Backend) CreateAccount(ctx context.Context, email, password string) (string, error) {
	if !b.remoteMode() {
		return "", fmt.Errorf("%w: accounts require the remote backend", domain.ErrInvalidRequest)
	}
	if email == "" || password == "" {
		return "", fmt.Errorf("%w: email and password required", domain.ErrValidation)
	}
	return b.remote.CreateAccount(ctx, email, password)
}

// GetProfile returns the profile for identity. In remote mode a storage
// failure degrades to the locally mirrored copy.
func (b *Backend) GetProfile(ctx context.Context, identity string) (*domain.Profile, error) {
	if !b.remoteMode() {
		return b.profiles.Get(ctx, identity)
	}

	p, err := b.remote.GetProfile(ctx, identity)
	if err != nil && domain.IsStorageError(err) {
		b.logger.Warn("remote profile read failed, serving local copy", "error", err)
		return b.profiles.Get(ctx, identity)
	}
	return p, err
}

// UpdateUsername validates and stores the display name for identity
func (b *Backend) UpdateUsername(ctx context.Context, identity, name string) (*domain.Profile, error) {
	name, err := profile.ValidateUsername(name)
	if err != nil {
		return nil, err
	}

	if !b.remoteMode() {
		return b.profiles.UpdateUsername(ctx, identity, name)
	}

	p, err := b.remote.UpdateUsername(ctx, identity, name)
	if err != nil {
		return nil, err
	}
	// Keep a local mirror so profile reads can degrade gracefully.
	if _, mirrorErr := b.profiles.UpdateUsername(ctx, identity, name); mirrorErr != nil {
		b.logger.Warn("failed to mirror profile locally", "error", mirrorErr)
	}
	return p, nil
}

// HasUsername reports whether identity has picked a display name
func (b *Backend) HasUsername(ctx context.Context, identity string) (bool, error) {
	p, err := b.GetProfile(ctx, identity)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return p.Username != "", nil
}

// SubmitScore records a score for the player behind identity, keyed by
// their username when one is set. Returns the refreshed table.
func (b *Backend) SubmitScore(ctx context.Context, identity string, score int64) (*domain.LeaderboardView, error) {
	return b.SubmitScoreFor(ctx, b.resolvePlayerKey(ctx, identity), score)
}

// SubmitScoreFor records a score under an explicit player key. A primary
// failure is returned to the caller: a submission never claims success it
// cannot back with a durable write.
func (b *Backend) SubmitScoreFor(ctx context.Context, playerKey string, score int64) (*domain.LeaderboardView, error) {
	var table *domain.LeaderboardTable
	var err error
	source := domain.SourceLocal

	if b.remoteMode() {
		table, err = b.remote.Submit(ctx, playerKey, score)
		if err != nil {
			return nil, err
		}
		source = domain.SourceRemote
		// Mirror into the local layer so fallback reads stay fresh.
		if _, mirrorErr := b.local.Submit(ctx, playerKey, score); mirrorErr != nil {
			b.logger.Warn("failed to mirror submission locally", "error", mirrorErr)
		}
	} else {
		table, err = b.local.Submit(ctx, playerKey, score)
		if err != nil {
			return nil, err
		}
	}

	view := &domain.LeaderboardView{
		Entries:     table.Entries,
		LastUpdated: table.LastUpdated,
		Source:      source,
	}
	if b.hub != nil {
		b.hub.BroadcastLeaderboard(view)
	}
	return view, nil
}

// FetchLeaderboard returns at most limit entries. In remote mode a storage
// failure degrades to the local copy, tagged with its source.
func (b *Backend) FetchLeaderboard(ctx context.Context, limit int) (*domain.LeaderboardView, error) {
	if b.remoteMode() {
		entries, err := b.remote.Top(ctx, limit)
		if err == nil {
			return &domain.LeaderboardView{Entries: entries, Source: domain.SourceRemote}, nil
		}
		b.logger.Warn("remote leaderboard read failed, serving local copy", "error", err)
	}

	entries, err := b.local.Top(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &domain.LeaderboardView{Entries: entries, Source: domain.SourceLocal}, nil
}

// UpdateEntryName renames a stored leaderboard entry in place
func (b *Backend) UpdateEntryName(ctx context.Context, entryID, newName string) (*domain.LeaderboardView, error) {
	var table *domain.LeaderboardTable
	var err error
	source := domain.SourceLocal

	if b.remoteMode() {
		table, err = b.remote.RenameEntry(ctx, entryID, newName)
		source = domain.SourceRemote
	} else {
		table, err = b.local.RenameEntry(ctx, entryID, newName)
	}
	if err != nil {
		return nil, err
	}
	return &domain.LeaderboardView{
		Entries:     table.Entries,
		LastUpdated: table.LastUpdated,
		Source:      source,
	}, nil
}

// RecordGuess scores a guess, persists the player's progress and, when
// points were earned, pushes the new cumulative score onto the
// leaderboard. A leaderboard failure does not undo the recorded progress;
// the reconciliation worker catches the table up later.
func (b *Backend) RecordGuess(ctx context.Context, identity string, result domain.GuessResult, wordID, hintsUsed int, dailyChallenge bool) (*domain.GameState, *domain.LeaderboardView, error) {
	state, points, err := b.games.ApplyGuess(ctx, identity, result, wordID, hintsUsed, dailyChallenge)
	if err != nil {
		return nil, nil, err
	}

	if points == 0 {
		return state, nil, nil
	}

	view, err := b.SubmitScore(ctx, identity, state.Score)
	if err != nil {
		b.logger.Warn("failed to push score after guess", "error", err)
		return state, nil, nil
	}
	return state, view, nil
}

// GameState returns the player's cumulative progress
func (b *Backend) GameState(ctx context.Context, identity string) (*domain.GameState, error) {
	return b.games.Load(ctx, identity)
}

// NewDailyAvailable reports whether today's daily challenge is unplayed
func (b *Backend) NewDailyAvailable(ctx context.Context, identity string) (bool, error) {
	return b.games.NewDailyAvailable(ctx, identity)
}

// resolvePlayerKey prefers the player's chosen username, then the raw
// identity, then the shared placeholder.
func (b *Backend) resolvePlayerKey(ctx context.Context, identity string) string {
	p, err := b.GetProfile(ctx, identity)
	if err == nil && p.Username != "" {
		return p.Username
	}
	if err != nil && !domain.IsNotFoundError(err) {
		b.logger.Warn("failed to resolve player name", "error", err)
	}
	if key := strings.TrimSpace(identity); key != "" {
		return key
	}
	return domain.DefaultPlayerName
}
