package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fluentquest/backend/internal/config"
	"github.com/fluentquest/backend/internal/domain"
	"github.com/fluentquest/backend/internal/leaderboard"
)

// RemoteSync is the subset of the relational adapter the worker needs
type RemoteSync interface {
	BatchUpsertBest(ctx context.Context, scores map[string]int64) error
	Top(ctx context.Context, limit int) ([]domain.ScoreEntry, error)
}

// SyncWorker periodically reconciles the local leaderboard table with the
// relational layer in deployments running both
type SyncWorker struct {
	local   *leaderboard.Service
	remote  RemoteSync
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(
	local *leaderboard.Service,
	remote RemoteSync,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		local:  local,
		remote: remote,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background sync process
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sync worker stopped")
	return nil
}

// run is the main worker loop
func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.syncCycle(ctx)
		}
	}
}

// syncCycle pushes local scores to the relational layer
func (w *SyncWorker) syncCycle(ctx context.Context) {
	w.logger.Info("starting sync cycle")
	startTime := time.Now()

	if err := w.PushToRemote(ctx); err != nil {
		w.logger.Error("failed to push local scores", "error", err)
		return
	}

	w.logger.Info("sync cycle completed", "duration", time.Since(startTime))
}

// PushToRemote upserts every local entry into the relational table with
// keep-best semantics, so a stale local copy can never lower a remote
// score.
func (w *SyncWorker) PushToRemote(ctx context.Context) error {
	entries, err := w.local.Entries(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		w.logger.Debug("no local scores to push")
		return nil
	}

	scores := make(map[string]int64, len(entries))
	for _, entry := range entries {
		scores[entry.Name] = entry.Score
	}

	// Push in bounded batches to avoid overwhelming the database
	batchSize := w.config.BatchSize
	if batchSize == 0 {
		batchSize = 1000
	}

	batch := make(map[string]int64, batchSize)
	for playerKey, score := range scores {
		batch[playerKey] = score
		if len(batch) >= batchSize {
			if err := w.remote.BatchUpsertBest(ctx, batch); err != nil {
				return err
			}
			batch = make(map[string]int64, batchSize)
		}
	}
	if len(batch) > 0 {
		if err := w.remote.BatchUpsertBest(ctx, batch); err != nil {
			return err
		}
	}

	w.logger.Debug("pushed local scores", "player_count", len(scores))
	return nil
}

// RestoreFromRemote replaces the local table with the relational top-N.
// Used on startup for recovery.
func (w *SyncWorker) RestoreFromRemote(ctx context.Context) error {
	entries, err := w.remote.Top(ctx, 0)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		w.logger.Debug("no remote scores to restore")
		return nil
	}

	if err := w.local.Restore(ctx, entries); err != nil {
		return err
	}

	w.logger.Info("restored local leaderboard from database", "player_count", len(entries))
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single sync cycle (useful for manual triggers)
func (w *SyncWorker) RunOnce(ctx context.Context) {
	w.syncCycle(ctx)
}
