package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluentquest/backend/internal/config"
	"github.com/fluentquest/backend/internal/domain"
	"github.com/fluentquest/backend/internal/leaderboard"
	"github.com/fluentquest/backend/internal/storage"
)

type fakeRemoteSync struct {
	upserts []map[string]int64
	entries []domain.ScoreEntry
	failure error
}

func (f *fakeRemoteSync) BatchUpsertBest(ctx context.Context, scores map[string]int64) error {
	if f.failure != nil {
		return f.failure
	}
	batch := make(map[string]int64, len(scores))
	for k, v := range scores {
		batch[k] = v
	}
	f.upserts = append(f.upserts, batch)
	return nil
}

func (f *fakeRemoteSync) Top(ctx context.Context, limit int) ([]domain.ScoreEntry, error) {
	if f.failure != nil {
		return nil, f.failure
	}
	return f.entries, nil
}

func newTestWorker(t *testing.T, remote *fakeRemoteSync, batchSize int) (*SyncWorker, *leaderboard.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	local := leaderboard.NewService(storage.NewMemory(), &config.LeaderboardConfig{
		Key:          "test_leaderboard",
		MaxEntries:   100,
		DefaultLimit: 25,
	}, logger)
	w := NewSyncWorker(local, remote, &config.SyncConfig{
		Interval:  time.Hour,
		BatchSize: batchSize,
	}, logger)
	return w, local
}

func TestPushToRemote(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemoteSync{}
	w, local := newTestWorker(t, remote, 1000)

	_, err := local.Submit(ctx, "alice", 10)
	require.NoError(t, err)
	_, err = local.Submit(ctx, "bob", 20)
	require.NoError(t, err)

	require.NoError(t, w.PushToRemote(ctx))
	require.Len(t, remote.upserts, 1)
	assert.Equal(t, map[string]int64{"alice": 10, "bob": 20}, remote.upserts[0])
}

func TestPushToRemoteBatches(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemoteSync{}
	w, local := newTestWorker(t, remote, 2)

	for i := 1; i <= 5; i++ {
		_, err := local.Submit(ctx, fmt.Sprintf("player%d", i), int64(i))
		require.NoError(t, err)
	}

	require.NoError(t, w.PushToRemote(ctx))

	total := 0
	for _, batch := range remote.upserts {
		assert.LessOrEqual(t, len(batch), 2)
		total += len(batch)
	}
	assert.Equal(t, 5, total)
}

func TestPushToRemoteEmptyTableIsNoOp(t *testing.T) {
	remote := &fakeRemoteSync{}
	w, _ := newTestWorker(t, remote, 1000)

	require.NoError(t, w.PushToRemote(context.Background()))
	assert.Empty(t, remote.upserts)
}

func TestRestoreFromRemote(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemoteSync{entries: []domain.ScoreEntry{
		{ID: "x", Name: "xavier", Score: 100},
		{ID: "y", Name: "yara", Score: 50},
	}}
	w, local := newTestWorker(t, remote, 1000)

	_, err := local.Submit(ctx, "stale", 5)
	require.NoError(t, err)

	require.NoError(t, w.RestoreFromRemote(ctx))

	entries, err := local.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "xavier", entries[0].Name)
}

func TestRestoreFromRemoteFailure(t *testing.T) {
	remote := &fakeRemoteSync{failure: fmt.Errorf("%w: database down", domain.ErrStorage)}
	w, _ := newTestWorker(t, remote, 1000)

	err := w.RestoreFromRemote(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestStartStop(t *testing.T) {
	remote := &fakeRemoteSync{}
	w, _ := newTestWorker(t, remote, 1000)

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
}
