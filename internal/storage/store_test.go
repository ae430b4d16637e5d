package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_PutGetDelete(t *testing.T) {
	store, err := NewLocal(t.TempDir(), 0)
	require.NoError(t, err)
	ctx := context.Background()

	uri := store.NewURI("data.parquet")
	assert.True(t, strings.HasPrefix(uri, "file://"+filepath.ToSlash(store.Root())))
	assert.True(t, strings.HasSuffix(uri, "-data.parquet"))

	require.NoError(t, store.Put(ctx, uri, []byte("PAR1")))
	ok, err := store.Exists(ctx, uri)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, []byte("PAR1"), got)

	require.NoError(t, store.Delete(ctx, uri))
	require.NoError(t, store.Delete(ctx, uri), "deleting twice is fine")

	_, err = store.Get(ctx, uri)
	require.ErrorIs(t, err, ErrNotFound)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "local.get", se.Op)
	assert.Equal(t, uri, se.URI)
}

func TestLocal_SchemelessPaths(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocal(root, 0)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "nested/out.csv", []byte("a:string\n")))
	data, err := os.ReadFile(filepath.Join(root, "nested", "out.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a:string\n", string(data))

	abs := filepath.Join(t.TempDir(), "abs.csv")
	require.NoError(t, store.Put(ctx, abs, []byte("x")))
	got, err := store.Get(ctx, "file://"+abs)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestLocal_RejectsForeignScheme(t *testing.T) {
	store, err := NewLocal(t.TempDir(), 0)
	require.NoError(t, err)

	err = store.Put(context.Background(), "s3://bucket/key", []byte("x"))
	require.ErrorIs(t, err, ErrInvalidURI)
}

func TestLocal_CancelledContext(t *testing.T) {
	store, err := NewLocal(t.TempDir(), 0)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Get(ctx, "x.csv")
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemory_PutGet(t *testing.T) {
	store := NewMemory(0)
	ctx := context.Background()

	uri := store.NewURI("frame.parquet")
	assert.True(t, strings.HasPrefix(uri, "mem://"))
	assert.True(t, strings.HasSuffix(uri, "/frame.parquet"))

	payload := []byte("PAR1")
	require.NoError(t, store.Put(ctx, uri, payload))
	payload[0] = 'X'

	got, err := store.Get(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, []byte("PAR1"), got, "store keeps its own copy")

	assert.Equal(t, []string{uri}, store.List(ctx))

	require.NoError(t, store.Delete(ctx, uri))
	ok, err := store.Exists(ctx, uri)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Get(ctx, uri)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, store.Put(ctx, "file:///tmp/x", nil), ErrInvalidURI)
	require.ErrorIs(t, store.Put(ctx, "mem://", nil), ErrInvalidURI)
}

func TestMemory_Expiration(t *testing.T) {
	store := NewMemory(30 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "mem://a/b", []byte("x")))

	require.Eventually(t, func() bool {
		ok, _ := store.Exists(ctx, "mem://a/b")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestRouter(t *testing.T) {
	local, err := NewLocal(t.TempDir(), 0)
	require.NoError(t, err)
	mem := NewMemory(0)
	router := NewRouter(local, mem)

	got, err := router.For("FILE")
	require.NoError(t, err)
	assert.Same(t, local, got)

	got, err = router.For("mem")
	require.NoError(t, err)
	assert.Same(t, mem, got)

	_, err = router.For("s3")
	require.ErrorIs(t, err, ErrUnknownProtocol)

	assert.Equal(t, []string{"file", "mem"}, router.Protocols())
}
