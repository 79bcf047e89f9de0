package docstore

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSLayout(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFS(dir)
	require.NoError(t, err)
	c := openDocs(t, b, "notes")

	require.NoError(t, c.Set(context.Background(), "abc", testDoc{ID: "abc"}))

	data, err := os.ReadFile(filepath.Join(dir, "notes", "abc.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"abc"`)
}

func TestFSPutLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFS(dir)
	require.NoError(t, err)
	c := openDocs(t, b, "notes")

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Set(context.Background(), "k", testDoc{ID: "k", Count: i}))
	}

	entries, err := os.ReadDir(filepath.Join(dir, "notes"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k.json", entries[0].Name())
}

func TestFSKeysSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFS(dir)
	require.NoError(t, err)
	c := openDocs(t, b, "notes")
	require.NoError(t, c.Set(context.Background(), "real", testDoc{ID: "real"}))

	ns := filepath.Join(dir, "notes")
	require.NoError(t, os.WriteFile(filepath.Join(ns, tmpPrefix+"123"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ns, "README.md"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(ns, "sub.json"), 0o755))

	keys, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"real"}, keys)
}

func TestFSCorruptDocumentIsStorageError(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFS(dir)
	require.NoError(t, err)
	c := openDocs(t, b, "notes")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes", "bad.json"), []byte("{not json"), 0o644))

	_, _, err = c.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode notes/bad")
}

func TestFSTraversalNeverEscapesRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "data")
	b, err := NewFS(root)
	require.NoError(t, err)
	c := openDocs(t, b, "notes")

	err = c.Set(context.Background(), "../../victim", testDoc{ID: "x"})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(parent, "victim.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestValidateName(t *testing.T) {
	for _, ok := range []string{"a", "notes", "550e8400-e29b-41d4-a716-446655440000", "usr-Ab_9", "v1.2"} {
		assert.NoError(t, ValidateName(ok), ok)
	}
	for _, bad := range []string{"", ".", "..", "a..b", "../x", "a/b", `a\b`, ".hidden", "-lead", strings.Repeat("x", 129)} {
		assert.Error(t, ValidateName(bad), bad)
	}
}

type changeLog struct {
	mu  sync.Mutex
	evs []string
}

func (l *changeLog) add(kind, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evs = append(l.evs, kind+":"+key)
}

func (l *changeLog) has(ev string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.evs {
		if e == ev {
			return true
		}
	}
	return false
}

func (l *changeLog) forKey(key string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.evs {
		if strings.HasSuffix(e, ":"+key) {
			out = append(out, e)
		}
	}
	return out
}

func TestFSWatchReportsExternalChangesOnly(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFS(dir)
	require.NoError(t, err)
	c := openDocs(t, b, "notes")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var log changeLog
	done := make(chan error, 1)
	go func() { done <- b.Watch(ctx, "notes", logger, log.add) }()

	require.Eventually(t, func() bool { return b.watching.Load() > 0 }, 2*time.Second, 10*time.Millisecond)

	// In-process writes, including back-to-back ones to one path: filtered.
	require.NoError(t, c.Set(ctx, "own", testDoc{ID: "own"}))
	require.NoError(t, c.Set(ctx, "own", testDoc{ID: "own", Count: 1}))
	require.NoError(t, c.Set(ctx, "own", testDoc{ID: "own", Count: 2}))

	// External create: the Create and Write events make one callback.
	ext := filepath.Join(dir, "notes", "ext.json")
	require.NoError(t, os.WriteFile(ext, []byte(`{"id":"ext"}`), 0o644))
	require.Eventually(t, func() bool { return log.has("created:ext") }, 2*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return len(log.forKey("ext")) > 1 }, 4*coalesceWindow, 10*time.Millisecond)

	// External overwrite: one update.
	require.NoError(t, os.WriteFile(ext, []byte(`{"id":"ext","count":1}`), 0o644))
	require.Eventually(t, func() bool { return log.has("updated:ext") }, 2*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return len(log.forKey("ext")) > 2 }, 4*coalesceWindow, 10*time.Millisecond)

	require.NoError(t, os.Remove(ext))
	require.Eventually(t, func() bool { return log.has("deleted:ext") }, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"created:ext", "updated:ext", "deleted:ext"}, log.forKey("ext"))
	assert.Empty(t, log.forKey("own"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestFSOwnWriteMarkersAreCounted(t *testing.T) {
	b, err := NewFS(t.TempDir())
	require.NoError(t, err)

	b.markOwn("/x")
	assert.False(t, b.takeOwn("/x"), "markers are only kept while watching")

	b.watching.Add(1)
	defer b.watching.Add(-1)
	b.markOwn("/x")
	b.markOwn("/x")
	assert.True(t, b.takeOwn("/x"))
	assert.True(t, b.takeOwn("/x"))
	assert.False(t, b.takeOwn("/x"))
}
