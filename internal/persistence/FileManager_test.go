package persistence

import (
	"context"
	"errors"
	"freedomwall/internal/docstore"
	"freedomwall/internal/testutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T, names ...string) *docstore.MemoryStore {
	t.Helper()
	store := docstore.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	for _, name := range names {
		_, err := store.Append(context.Background(), "freedomWall", map[string]any{"name": name, "message": "hi"})
		require.NoError(t, err)
	}
	return store
}

func TestFileManager_SaveAndLoad_Zstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wall.dat")
	comp, err := NewZstdCompressor()
	require.NoError(t, err)

	src := seededStore(t, "Ana", "Ben")
	fm := NewFileManager(comp, src, &testutil.MockLogger{})
	snapshot, err := fm.SaveToFile(path)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Len(t, snapshot.Collections["freedomWall"], 2)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	dst := seededStore(t)
	require.NoError(t, NewFileManager(comp, dst, &testutil.MockLogger{}).LoadFromFile(path))

	got, err := dst.QueryWhere(context.Background(), "freedomWall", "name", "Ben")
	require.NoError(t, err)
	require.Len(t, got, 1)
	want, err := src.QueryWhere(context.Background(), "freedomWall", "name", "Ben")
	require.NoError(t, err)
	assert.Equal(t, want[0].ID, got[0].ID)
	assert.True(t, want[0].CreatedAt.Equal(got[0].CreatedAt))
}

func TestFileManager_LoadPlainJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seed := docstore.Snapshot{
		Version: docstore.SnapshotVersion,
		Collections: map[string][]docstore.Record{
			"freedomWall": {{ID: "seed-1", CreatedAt: at, Data: map[string]any{"name": "Founder"}}},
		},
	}
	raw, err := json.Marshal(seed)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	comp, err := NewZstdCompressor()
	require.NoError(t, err)
	logger := &testutil.MockLogger{}
	store := seededStore(t)
	require.NoError(t, NewFileManager(comp, store, logger).LoadFromFile(path))

	got, err := store.QueryWhere(context.Background(), "freedomWall", "name", "Founder")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "seed-1", got[0].ID)
	assert.Equal(t, 1, logger.Count("warn"))
}

func TestFileManager_LoadMissingFile(t *testing.T) {
	fm := NewFileManager(&testutil.MockCompressor{}, seededStore(t), &testutil.MockLogger{})
	assert.NoError(t, fm.LoadFromFile(filepath.Join(t.TempDir(), "missing.dat")))
}

func TestFileManager_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.dat")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	fm := NewFileManager(&testutil.MockCompressor{}, seededStore(t), &testutil.MockLogger{})
	assert.Error(t, fm.LoadFromFile(path))
}

func TestFileManager_LoadNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.dat")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":99,"collections":{}}`), 0o644))

	fm := NewFileManager(&testutil.MockCompressor{}, seededStore(t), &testutil.MockLogger{})
	err := fm.LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version")
}

func TestFileManager_CompressError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wall.dat")
	comp := &testutil.MockCompressor{CompressErr: errors.New("boom")}
	fm := NewFileManager(comp, seededStore(t, "Ana"), &testutil.MockLogger{})

	_, err := fm.SaveToFile(path)
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileManager_DisabledForSelfPersistingBackend(t *testing.T) {
	store, err := docstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	defer store.Close()

	fm := NewFileManager(&testutil.MockCompressor{}, store, &testutil.MockLogger{})
	assert.False(t, fm.Enabled())

	path := filepath.Join(t.TempDir(), "wall.dat")
	snapshot, err := fm.SaveToFile(path)
	assert.NoError(t, err)
	assert.Nil(t, snapshot)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileManager_LoadCorruptCompressedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wall.dat")
	require.NoError(t, os.WriteFile(path, append(append([]byte(nil), zstdMagic...), 0x01, 0x02, 0x03), 0o644))

	comp, err := NewZstdCompressor()
	require.NoError(t, err)
	defer comp.Close()
	logger := &testutil.MockLogger{}

	err = NewFileManager(comp, seededStore(t), logger).LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decompress snapshot")
	assert.Equal(t, 0, logger.Count("warn"))
}
