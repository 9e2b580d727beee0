package watermark

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadMissing(t *testing.T) {
	t.Parallel()

	store := New(t.TempDir())
	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_SaveAndLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := New(dir)
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 12, 30, 45, 123456789, time.FixedZone("X", 2*3600))
	require.NoError(t, store.Save(ctx, now))

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01T10:30:45.123456", string(data))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 30, 45, 123456000, time.UTC), loaded)
}

func TestStore_SaveWholeSecondsKeepsMicroseconds(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := New(dir)
	require.NoError(t, store.Save(context.Background(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00.000000", string(data))
}

func TestStore_LoadCorrupt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "Garbage", content: "not a timestamp"},
		{name: "MissingFraction", content: "2024-01-01T00:00:00"},
		{name: "Empty", content: ""},
		{name: "SpaceSeparator", content: "2024-01-01 00:00:00.000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(tt.content), 0o600))

			_, err := New(dir).Load(context.Background())
			require.Error(t, err)
		})
	}
}

func TestStore_LoadTrimsNewline(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("2023-05-05T05:05:05.000001\n"), 0o600))

	loaded, err := New(dir).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 5, 5, 5, 5, 5, 1000, time.UTC), loaded)
}

func TestStore_SaveCreatesDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "cache")
	store := New(dir)
	require.NoError(t, store.Save(context.Background(), time.Now()))

	_, err := os.Stat(filepath.Join(dir, FileName))
	require.NoError(t, err)
}

func TestStore_SaveOverwrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := New(dir)
	ctx := context.Background()

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, first.Add(time.Hour)))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Add(time.Hour), loaded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_SaveFailsOnFileInPlaceOfDir(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	blocker := filepath.Join(parent, "cache")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	err := New(blocker).Save(context.Background(), time.Now())
	require.Error(t, err)
}

func TestStore_Lock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	unlock, err := New(dir).Lock(ctx)
	require.NoError(t, err)

	_, err = New(dir).Lock(ctx)
	require.ErrorIs(t, err, ErrLocked)

	unlock()

	unlock2, err := New(dir).Lock(ctx)
	require.NoError(t, err)
	unlock2()
}
