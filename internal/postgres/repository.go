// Package postgres implements the remote relational adapter: the shared
// leaderboard table, profiles and account sessions.
package postgres

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fluentquest/backend/internal/config"
	"github.com/fluentquest/backend/internal/domain"
)

const sessionTTL = 30 * 24 * time.Hour

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool       *pgxpool.Pool
	maxEntries int
	logger     *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, lbCfg *config.LeaderboardConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:       pool,
		maxEntries: lbCfg.MaxEntries,
		logger:     logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS leaderboard (
			id UUID PRIMARY KEY,
			username VARCHAR(64) NOT NULL UNIQUE,
			score BIGINT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			identity VARCHAR(64) PRIMARY KEY,
			username VARCHAR(64),
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			identity VARCHAR(64) PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash CHAR(64) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token UUID PRIMARY KEY,
			identity VARCHAR(64) NOT NULL REFERENCES accounts(identity) ON DELETE CASCADE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_score ON leaderboard(score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_identity ON sessions(identity)`,
	}

	for _, migration := range migrations {
		if _, err := r.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// Submit records a score with a keep-best upsert and trims the table to
// the configured size, all in one transaction. GREATEST makes the upsert
// an atomic compare-and-swap, so concurrent submissions cannot lose
// updates.
func (r *Repository) Submit(ctx context.Context, playerKey string, score int64) (*domain.LeaderboardTable, error) {
	if score < 0 {
		return nil, domain.ErrInvalidScore
	}
	if playerKey == "" {
		playerKey = domain.DefaultPlayerName
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %v", domain.ErrStorage, err)
	}
	defer tx.Rollback(ctx)

	upsert := `
		INSERT INTO leaderboard (id, username, score, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE SET
			score = GREATEST(leaderboard.score, EXCLUDED.score),
			updated_at = CASE
				WHEN EXCLUDED.score > leaderboard.score THEN EXCLUDED.updated_at
				ELSE leaderboard.updated_at
			END
	`
	if _, err := tx.Exec(ctx, upsert, uuid.New().String(), playerKey, score, time.Now()); err != nil {
		return nil, fmt.Errorf("%w: upserting score: %v", domain.ErrStorage, err)
	}

	trim := `
		DELETE FROM leaderboard WHERE id IN (
			SELECT id FROM leaderboard
			ORDER BY score DESC, updated_at ASC, id ASC
			OFFSET $1
		)
	`
	if _, err := tx.Exec(ctx, trim, r.maxEntries); err != nil {
		return nil, fmt.Errorf("%w: trimming leaderboard: %v", domain.ErrStorage, err)
	}

	entries, err := scanEntries(tx.Query(ctx, selectTop, r.maxEntries))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: committing submission: %v", domain.ErrStorage, err)
	}

	return &domain.LeaderboardTable{
		Entries:     entries,
		LastUpdated: time.Now(),
	}, nil
}

const selectTop = `
	SELECT id, username, score, updated_at
	FROM leaderboard
	ORDER BY score DESC
	LIMIT $1
`

// Top returns at most limit entries, sorted by score descending
func (r *Repository) Top(ctx context.Context, limit int) ([]domain.ScoreEntry, error) {
	if limit <= 0 || limit > r.maxEntries {
		limit = r.maxEntries
	}
	return scanEntries(r.pool.Query(ctx, selectTop, limit))
}

// RenameEntry changes the display name of a stored entry without touching
// its score. A missing ID is a no-op.
func (r *Repository) RenameEntry(ctx context.Context, entryID, newName string) (*domain.LeaderboardTable, error) {
	query := `UPDATE leaderboard SET username = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, entryID, newName)
	if err != nil {
		return nil, fmt.Errorf("%w: renaming entry: %v", domain.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Debug("rename skipped, entry not found", "entry_id", entryID)
	}

	entries, err := r.Top(ctx, r.maxEntries)
	if err != nil {
		return nil, err
	}
	return &domain.LeaderboardTable{Entries: entries, LastUpdated: time.Now()}, nil
}

func scanEntries(rows pgx.Rows, err error) ([]domain.ScoreEntry, error) {
	if err != nil {
		return nil, fmt.Errorf("%w: querying leaderboard: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	var entries []domain.ScoreEntry
	for rows.Next() {
		var entry domain.ScoreEntry
		if err := rows.Scan(&entry.ID, &entry.Name, &entry.Score, &entry.RecordedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning entry: %v", domain.ErrStorage, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading leaderboard rows: %v", domain.ErrStorage, err)
	}
	return entries, nil
}

// BatchUpsertBest applies a keep-best upsert for multiple scores. Used by
// the reconciliation worker.
func (r *Repository) BatchUpsertBest(ctx context.Context, scores map[string]int64) error {
	if len(scores) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO leaderboard (id, username, score, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE SET
			score = GREATEST(leaderboard.score, EXCLUDED.score),
			updated_at = CASE
				WHEN EXCLUDED.score > leaderboard.score THEN EXCLUDED.updated_at
				ELSE leaderboard.updated_at
			END
	`
	now := time.Now()
	for playerKey, score := range scores {
		batch.Queue(query, uuid.New().String(), playerKey, score, now)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range scores {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%w: batch upserting scores: %v", domain.ErrStorage, err)
		}
	}
	return nil
}

// GetProfile retrieves a profile by identity
func (r *Repository) GetProfile(ctx context.Context, identity string) (*domain.Profile, error) {
	query := `SELECT identity, COALESCE(username, ''), updated_at FROM profiles WHERE identity = $1`
	var p domain.Profile
	err := r.pool.QueryRow(ctx, query, identity).Scan(&p.Identity, &p.Username, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("%w: getting profile: %v", domain.ErrStorage, err)
	}
	return &p, nil
}

// UpdateUsername upserts the display name for identity
func (r *Repository) UpdateUsername(ctx context.Context, identity, name string) (*domain.Profile, error) {
	query := `
		INSERT INTO profiles (identity, username, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE SET username = $2, updated_at = $3
		RETURNING identity, username, updated_at
	`
	var p domain.Profile
	err := r.pool.QueryRow(ctx, query, identity, name, time.Now()).Scan(&p.Identity, &p.Username, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: upserting profile: %v", domain.ErrStorage, err)
	}
	return &p, nil
}

// CreateAccount registers an email/password account and returns its
// identity. The email must be unused.
func (r *Repository) CreateAccount(ctx context.Context, email, password string) (string, error) {
	identity := uuid.New().String()
	query := `
		INSERT INTO accounts (identity, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query, identity, email, hashPassword(password), time.Now())
	if err != nil {
		return "", fmt.Errorf("%w: creating account: %v", domain.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("%w: email already registered", domain.ErrValidation)
	}
	return identity, nil
}

// SignIn verifies credentials and issues a session token
func (r *Repository) SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, domain.ErrBadCredentials
	}

	query := `SELECT identity, password_hash FROM accounts WHERE email = $1`
	var identity, storedHash string
	err := r.pool.QueryRow(ctx, query, creds.Email).Scan(&identity, &storedHash)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrBadCredentials
		}
		return nil, fmt.Errorf("%w: looking up account: %v", domain.ErrStorage, err)
	}

	if subtle.ConstantTimeCompare([]byte(storedHash), []byte(hashPassword(creds.Password))) != 1 {
		return nil, domain.ErrBadCredentials
	}

	token := uuid.New().String()
	insert := `INSERT INTO sessions (token, identity, created_at, expires_at) VALUES ($1, $2, $3, $4)`
	now := time.Now()
	if _, err := r.pool.Exec(ctx, insert, token, identity, now, now.Add(sessionTTL)); err != nil {
		return nil, fmt.Errorf("%w: creating session: %v", domain.ErrStorage, err)
	}

	return &domain.Session{Identity: identity, Token: token}, nil
}

// GetSession resolves a session token to an identity. Expired or unknown
// tokens yield an empty session, not an error.
func (r *Repository) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return &domain.Session{}, nil
	}

	query := `SELECT identity FROM sessions WHERE token = $1 AND expires_at > $2`
	var identity string
	err := r.pool.QueryRow(ctx, query, token, time.Now()).Scan(&identity)
	if err != nil {
		if err == pgx.ErrNoRows {
			return &domain.Session{}, nil
		}
		return nil, fmt.Errorf("%w: looking up session: %v", domain.ErrStorage, err)
	}
	return &domain.Session{Identity: identity, Token: token}, nil
}

// SignOut revokes a session token. Unknown tokens are a no-op.
func (r *Repository) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("%w: revoking session: %v", domain.ErrStorage, err)
	}
	return nil
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
