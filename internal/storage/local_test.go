package storage_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dukerupert/shoppy/internal"
	"github.com/dukerupert/shoppy/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, s storage.Storage, key string) string {
	t.Helper()
	rc, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestLocalStorage_PutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "savedCart", strings.NewReader(`[{"quantity":1}]`), "application/json"))

	assert.Equal(t, `[{"quantity":1}]`, readAll(t, s, "savedCart"))

	_, err = os.Stat(filepath.Join(dir, "savedCart"))
	assert.NoError(t, err, "blob should live directly under the base path")
}

func TestLocalStorage_PutOverwrites(t *testing.T) {
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "k", strings.NewReader("first, and longer"), "text/plain"))
	require.NoError(t, s.Put(ctx, "k", strings.NewReader("second"), "text/plain"))

	assert.Equal(t, "second", readAll(t, s, "k"))
}

func TestLocalStorage_GetMissingKey(t *testing.T) {
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "missing")
	assert.True(t, storage.IsNotFound(err), "missing keys must be reported as not found, got %v", err)
}

func TestLocalStorage_ExistsAndDelete(t *testing.T) {
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "k", strings.NewReader("v"), "text/plain"))
	ok, err = s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"), "delete is idempotent")

	ok, err = s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../outside", "/etc/passwd", ".."} {
		err := s.Put(context.Background(), key, strings.NewReader("x"), "text/plain")
		assert.Error(t, err, "key %q should be rejected", key)
	}
}

func TestMemoryStorage(t *testing.T) {
	s := storage.NewMemoryStorage()
	ctx := context.Background()

	_, err := s.Get(ctx, "savedCart")
	assert.True(t, storage.IsNotFound(err))

	require.NoError(t, s.Put(ctx, "savedCart", strings.NewReader("[]"), "application/json"))
	assert.Equal(t, "[]", readAll(t, s, "savedCart"))

	s.Set("savedCart", []byte("{garbage"))
	raw, ok := s.Bytes("savedCart")
	assert.True(t, ok)
	assert.Equal(t, "{garbage", string(raw))

	require.NoError(t, s.Delete(ctx, "savedCart"))
	ok, err = s.Exists(ctx, "savedCart")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewStorage_Providers(t *testing.T) {
	s, err := storage.NewStorage(internal.StorageConfig{Provider: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStorage{}, s)

	s, err = storage.NewStorage(internal.StorageConfig{Provider: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalStorage{}, s)

	_, err = storage.NewStorage(internal.StorageConfig{Provider: "r2"})
	assert.ErrorIs(t, err, storage.ErrR2AccountIDRequired)

	_, err = storage.NewStorage(internal.StorageConfig{Provider: "floppy"})
	assert.Error(t, err)
}
