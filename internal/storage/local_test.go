package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(filepath.Join(dir, "images"), "/images")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	key := "20260301T123045.123Z-abcd1234-cat.png"
	require.NoError(t, store.Put(ctx, key, bytes.NewReader([]byte("png-bytes")), "image/png"))

	data, err := os.ReadFile(filepath.Join(dir, "images", key))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "/images/"+key, store.URL(key))

	require.NoError(t, store.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(dir, "images", key))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(ctx, key), "deleting a missing key succeeds")
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/images")
	require.NoError(t, err)

	err = store.Put(context.Background(), "../evil.png", bytes.NewReader(nil), "image/png")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, store.Delete(context.Background(), "../evil.png"), ErrInvalidKey)
}

func TestLocalStore_CanceledContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/images")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = store.Put(ctx, "k.png", bytes.NewReader([]byte("x")), "image/png")
	assert.ErrorIs(t, err, context.Canceled)
}
