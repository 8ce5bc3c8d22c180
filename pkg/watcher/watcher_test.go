package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/overspend1/oversync/pkg/types"
)

func collectEvent(t *testing.T, w *Watcher) types.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		require.True(t, ok)
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change event")
		return types.ChangeEvent{}
	}
}

func TestWatcherReportsContentChangeOnCreate(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir)
	require.NoError(t, err)
	go w.Run()
	defer w.Close()

	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	ev := collectEvent(t, w)
	require.Equal(t, types.ChangeContent, ev.Kind)
	require.Equal(t, path, ev.Path)
}

func TestWatcherReportsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	w, err := New(dir)
	require.NoError(t, err)
	go w.Run()
	defer w.Close()

	require.NoError(t, os.Remove(path))

	ev := collectEvent(t, w)
	require.Equal(t, types.ChangeRemoved, ev.Kind)
	require.Equal(t, path, ev.Path)
}

func TestWatcherWatchesNewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir)
	require.NoError(t, err)
	go w.Run()
	defer w.Close()

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))

	// Give the watcher time to register the new directory before we
	// write into it.
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(sub, "b.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0644))

	ev := collectEvent(t, w)
	require.Equal(t, types.ChangeContent, ev.Kind)
	require.Equal(t, path, ev.Path)
}
