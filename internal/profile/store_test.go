package profile

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluentquest/backend/internal/domain"
	"github.com/fluentquest/backend/internal/storage"
)

func newTestStore() *Store {
	return NewStore(storage.NewMemory(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "valid", input: "alice", want: "alice"},
		{name: "trims whitespace", input: "  alice  ", want: "alice"},
		{name: "minimum length", input: "abc", want: "abc"},
		{name: "maximum length", input: strings.Repeat("a", 20), want: strings.Repeat("a", 20)},
		{name: "too short", input: "ab", wantErr: true},
		{name: "too long", input: strings.Repeat("a", 21), wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
		{name: "multibyte runes count as one", input: "日本語", want: "日本語"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateUsername(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetMissingProfile(t *testing.T) {
	store := newTestStore()

	_, err := store.Get(context.Background(), "unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateUsername(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	p, err := store.UpdateUsername(ctx, "id-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)

	got, err := store.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.Identity)
	assert.Equal(t, "alice", got.Username)
}

func TestUpdateUsernameIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	_, err := store.UpdateUsername(ctx, "id-1", "alice")
	require.NoError(t, err)
	_, err = store.UpdateUsername(ctx, "id-1", "alice")
	require.NoError(t, err)

	got, err := store.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestUpdateUsernameRejectsInvalid(t *testing.T) {
	store := newTestStore()

	_, err := store.UpdateUsername(context.Background(), "id-1", "ab")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestHasUsername(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	has, err := store.HasUsername(ctx, "id-1")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = store.UpdateUsername(ctx, "id-1", "alice")
	require.NoError(t, err)

	has, err = store.HasUsername(ctx, "id-1")
	require.NoError(t, err)
	assert.True(t, has)
}
