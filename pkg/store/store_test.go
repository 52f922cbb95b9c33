package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/choraleia/thinkbot/pkg/config"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]DocumentStore {
	t.Helper()
	dir := t.TempDir()

	fileStore, err := NewFileStore(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	sqliteStore, err := NewSQLiteStore(filepath.Join(dir, "docs.db"))
	require.NoError(t, err)
	boltStore, err := NewBoltStore(filepath.Join(dir, "docs.bolt"))
	require.NoError(t, err)

	stores := map[string]DocumentStore{
		"memory": NewMemoryStore(),
		"file":   fileStore,
		"sqlite": sqliteStore,
		"bolt":   boltStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestDocumentStore_GetMissingReturnsNil(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			v, err := s.Get(ctx, "thinkbot:config:v1")
			require.NoError(t, err)
			assert.Nil(t, v)
		})
	}
}

func TestDocumentStore_SetReplacesWholeValue(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, "thinkbot:config:v1", []byte(`{"version":1,"a":1}`)))
			require.NoError(t, s.Set(ctx, "thinkbot:config:v1", []byte(`{"version":1}`)))
			require.NoError(t, s.Set(ctx, "other", []byte(`x`)))

			v, err := s.Get(ctx, "thinkbot:config:v1")
			require.NoError(t, err)
			assert.Equal(t, `{"version":1}`, string(v))

			other, err := s.Get(ctx, "other")
			require.NoError(t, err)
			assert.Equal(t, "x", string(other))
		})
	}
}

func TestMemoryStore_StatsAndHook(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_, _ = m.Get(ctx, "k")
	require.NoError(t, m.Set(ctx, "k", []byte("v")))

	m.SetHook = func(string, []byte) error { return errors.New("disk full") }
	require.Error(t, m.Set(ctx, "k", []byte("w")))

	reads, writes := m.Stats()
	assert.Equal(t, 1, reads)
	assert.Equal(t, 1, writes)

	v, _ := m.Get(ctx, "k")
	assert.Equal(t, "v", string(v))
}

func TestFileStore_NoTempFileLeftBehind(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s, err := NewFileStore(fsys, "/data")
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), "a:b", []byte("1")))

	entries, err := afero.ReadDir(fsys, "/data")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a%3Ab.json", entries[0].Name())
}

func TestOpen_SelectsBackend(t *testing.T) {
	memory := "memory"
	s, err := Open(context.Background(), &config.AppConfig{Storage: config.StorageConfig{Backend: &memory}})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	bolt := "bolt"
	path := filepath.Join(t.TempDir(), "x.bolt")
	s, err = Open(context.Background(), &config.AppConfig{Storage: config.StorageConfig{Backend: &bolt, Path: &path}})
	require.NoError(t, err)
	assert.IsType(t, &BoltStore{}, s)
	require.NoError(t, s.Close())

	pg := "postgres"
	_, err = Open(context.Background(), &config.AppConfig{Storage: config.StorageConfig{Backend: &pg}})
	assert.ErrorContains(t, err, "storage.dsn")
}
