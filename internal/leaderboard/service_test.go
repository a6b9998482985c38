package leaderboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluentquest/backend/internal/config"
	"github.com/fluentquest/backend/internal/domain"
	"github.com/fluentquest/backend/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(store storage.Store, maxEntries int) *Service {
	return NewService(store, &config.LeaderboardConfig{
		Key:          "test_leaderboard",
		MaxEntries:   maxEntries,
		DefaultLimit: 25,
	}, testLogger())
}

// failingStore wraps a working store and fails on demand. Used to verify
// that a storage failure never leaves a partially updated table behind.
type failingStore struct {
	inner storage.Store
	fail  bool
}

func (f *failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if f.fail {
		return "", false, fmt.Errorf("%w: read refused", domain.ErrStorage)
	}
	return f.inner.Get(ctx, key)
}

func (f *failingStore) Set(ctx context.Context, key, value string) error {
	if f.fail {
		return fmt.Errorf("%w: write refused", domain.ErrStorage)
	}
	return f.inner.Set(ctx, key, value)
}

func TestSubmitKeepsBestScore(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(storage.NewMemory(), 10)

	_, err := svc.Submit(ctx, "alice", 10)
	require.NoError(t, err)

	// A lower resubmission leaves the stored entry untouched
	table, err := svc.Submit(ctx, "alice", 7)
	require.NoError(t, err)
	require.Len(t, table.Entries, 1)
	assert.Equal(t, int64(10), table.Entries[0].Score)

	table, err = svc.Submit(ctx, "bob", 15)
	require.NoError(t, err)
	require.Len(t, table.Entries, 2)
	assert.Equal(t, "bob", table.Entries[0].Name)
	assert.Equal(t, "alice", table.Entries[1].Name)

	top, err := svc.Top(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "bob", top[0].Name)
	assert.Equal(t, int64(15), top[0].Score)
}

func TestSubmitEqualScoreKeepsExistingEntry(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(storage.NewMemory(), 10)

	first, err := svc.Submit(ctx, "alice", 10)
	require.NoError(t, err)
	firstID := first.Entries[0].ID

	table, err := svc.Submit(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, table.Entries, 1)
	assert.Equal(t, firstID, table.Entries[0].ID)
}

func TestSubmitRejectsNegativeScore(t *testing.T) {
	svc := newTestService(storage.NewMemory(), 10)

	_, err := svc.Submit(context.Background(), "alice", -1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSubmitBlankPlayerUsesPlaceholder(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(storage.NewMemory(), 10)

	table, err := svc.Submit(ctx, "   ", 5)
	require.NoError(t, err)
	require.Len(t, table.Entries, 1)
	assert.Equal(t, domain.DefaultPlayerName, table.Entries[0].Name)
}

func TestSubmitEvictsLowestWhenFull(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(storage.NewMemory(), 10)

	for i := 1; i <= 10; i++ {
		_, err := svc.Submit(ctx, fmt.Sprintf("player%d", i), int64(i*10))
		require.NoError(t, err)
	}

	// An 11th player above the floor evicts the lowest entry
	table, err := svc.Submit(ctx, "newcomer", 55)
	require.NoError(t, err)
	require.Len(t, table.Entries, 10)
	for _, entry := range table.Entries {
		assert.NotEqual(t, "player1", entry.Name)
	}

	// A submission below the floor never makes the table
	table, err = svc.Submit(ctx, "straggler", 5)
	require.NoError(t, err)
	require.Len(t, table.Entries, 10)
	for _, entry := range table.Entries {
		assert.NotEqual(t, "straggler", entry.Name)
	}
}

func TestSubmitConcurrentPlayersAllLand(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(storage.NewMemory(), 100)

	const players = 50
	var wg sync.WaitGroup
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Submit(ctx, fmt.Sprintf("player%d", i), int64(i+1))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := svc.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, players)
}

func TestSubmitConcurrentSamePlayerKeepsBest(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(storage.NewMemory(), 10)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(score int64) {
			defer wg.Done()
			_, err := svc.Submit(ctx, "alice", score)
			assert.NoError(t, err)
		}(int64(i))
	}
	wg.Wait()

	entries, err := svc.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(20), entries[0].Score)
}

func TestSubmitStorageFailureLeavesTableIntact(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{inner: storage.NewMemory()}
	svc := newTestService(store, 10)

	_, err := svc.Submit(ctx, "alice", 10)
	require.NoError(t, err)

	store.fail = true
	_, err = svc.Submit(ctx, "bob", 20)
	require.ErrorIs(t, err, domain.ErrStorage)

	store.fail = false
	entries, err := svc.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Name)
	assert.Equal(t, int64(10), entries[0].Score)
}

func TestTopLimits(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(storage.NewMemory(), 10)

	for i := 1; i <= 5; i++ {
		_, err := svc.Submit(ctx, fmt.Sprintf("player%d", i), int64(i))
		require.NoError(t, err)
	}

	top, err := svc.Top(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, top, 3)

	// Zero falls back to the default limit, capped at max entries
	top, err = svc.Top(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, top, 5)

	// A limit above max entries is capped, not an error
	top, err = svc.Top(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, top, 5)
}

func TestTopOnEmptyTable(t *testing.T) {
	svc := newTestService(storage.NewMemory(), 10)

	top, err := svc.Top(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestRenameEntry(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(storage.NewMemory(), 10)

	table, err := svc.Submit(ctx, "alice", 10)
	require.NoError(t, err)
	entryID := table.Entries[0].ID

	table, err = svc.RenameEntry(ctx, entryID, "AliceTheGreat")
	require.NoError(t, err)
	require.Len(t, table.Entries, 1)
	assert.Equal(t, "AliceTheGreat", table.Entries[0].Name)
	assert.Equal(t, int64(10), table.Entries[0].Score)
}

func TestRenameEntryUnknownIDIsNoOp(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(storage.NewMemory(), 10)

	_, err := svc.Submit(ctx, "alice", 10)
	require.NoError(t, err)

	table, err := svc.RenameEntry(ctx, "no-such-id", "Nobody")
	require.NoError(t, err)
	require.Len(t, table.Entries, 1)
	assert.Equal(t, "alice", table.Entries[0].Name)
}

func TestRenameEntryRejectsEmptyName(t *testing.T) {
	svc := newTestService(storage.NewMemory(), 10)

	_, err := svc.RenameEntry(context.Background(), "some-id", "   ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLoadNormalizesStoredData(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	// A legacy record with duplicates, wrong order and too many entries
	raw := `{"entries":[
		{"id":"a1","name":"alice","score":5},
		{"id":"b","name":"bob","score":20},
		{"id":"a2","name":"alice","score":15},
		{"id":"c","name":"carol","score":10}
	],"last_updated":"2024-01-01T00:00:00Z"}`
	require.NoError(t, store.Set(ctx, "test_leaderboard", raw))

	svc := newTestService(store, 2)
	entries, err := svc.Entries(ctx)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "bob", entries[0].Name)
	assert.Equal(t, "alice", entries[1].Name)
	assert.Equal(t, int64(15), entries[1].Score)
}

func TestLoadCorruptRecordIsStorageError(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Set(ctx, "test_leaderboard", "not json"))

	svc := newTestService(store, 10)
	_, err := svc.Entries(ctx)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestRestoreReplacesTable(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(storage.NewMemory(), 10)

	_, err := svc.Submit(ctx, "alice", 5)
	require.NoError(t, err)

	err = svc.Restore(ctx, []domain.ScoreEntry{
		{ID: "x", Name: "xavier", Score: 100},
		{ID: "y", Name: "yara", Score: 50},
	})
	require.NoError(t, err)

	entries, err := svc.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "xavier", entries[0].Name)
	assert.Equal(t, "yara", entries[1].Name)
}
