package watcher_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/structds/internal/watcher"
)

func startWatcher(t *testing.T, dir string, exts ...string) <-chan []string {
	t.Helper()
	w, err := watcher.New(watcher.Config{
		Dir:         dir,
		Extensions:  exts,
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")
	t.Cleanup(func() { _ = w.Stop() })

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")
	return onChange
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.csv")
	onChange := startWatcher(t, dir, ".csv")

	// Rapid writes should coalesce into a single batch
	for i := 0; i < 10; i++ {
		err := os.WriteFile(path, []byte(fmt.Sprintf("name\nrow%d\n", i)), 0o644)
		require.NoError(t, err, "failed to write file")
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case batch := <-onChange:
		assert.Equal(t, []string{path}, batch)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification but got timeout")
	}

	select {
	case batch := <-onChange:
		t.Fatalf("unexpected second notification: %v", batch)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcher_BatchesSeveralFiles(t *testing.T) {
	dir := t.TempDir()
	onChange := startWatcher(t, dir, ".csv")

	b := filepath.Join(dir, "b.csv")
	a := filepath.Join(dir, "a.CSV")
	require.NoError(t, os.WriteFile(b, []byte("x\n"), 0o644))
	require.NoError(t, os.WriteFile(a, []byte("x\n"), 0o644))

	select {
	case batch := <-onChange:
		assert.Equal(t, []string{a, b}, batch, "batch is sorted and extension match ignores case")
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification but got timeout")
	}
}

func TestWatcher_IgnoresIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()
	onChange := startWatcher(t, dir, ".csv")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("other"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.csv"), []byte("x"), 0o644))

	select {
	case batch := <-onChange:
		t.Fatalf("should not notify for unrelated files, got %v", batch)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_NoExtensionsAcceptsAll(t *testing.T) {
	dir := t.TempDir()
	onChange := startWatcher(t, dir)

	path := filepath.Join(dir, "frame.parquet")
	require.NoError(t, os.WriteFile(path, []byte("PAR1"), 0o644))

	select {
	case batch := <-onChange:
		assert.Contains(t, batch, path)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification but got timeout")
	}
}

func TestWatcher_StartMissingDir(t *testing.T) {
	w, err := watcher.New(watcher.Config{Dir: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	_, err = w.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watching directory")
}

func TestWatcher_Stop(t *testing.T) {
	dir := t.TempDir()

	w, err := watcher.New(watcher.DefaultConfig(dir))
	require.NoError(t, err, "failed to create watcher")

	_, err = w.Start()
	require.NoError(t, err, "failed to start watcher")

	// Stop should not hang or panic
	done := make(chan struct{})
	go func() {
		err := w.Stop()
		assert.NoError(t, err, "Stop returned error")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Stop() timed out - possible deadlock")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := watcher.DefaultConfig("/inbox")

	assert.Equal(t, "/inbox", cfg.Dir)
	assert.Equal(t, []string{".csv"}, cfg.Extensions)
	assert.Equal(t, 200*time.Millisecond, cfg.DebounceDur)
}
