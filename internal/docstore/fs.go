package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/starford/inkwell/internal/apperr"
)

const (
	docExt    = ".json"
	tmpPrefix = ".inkwell-tmp-"
)

// FS is a Backend storing each document as <root>/<namespace>/<key>.json.
type FS struct {
	root string // absolute path to the data directory

	// ownWrites counts, per path, renames and removals this process has
	// issued and the watcher has not seen yet, so Watch can tell them apart
	// from external edits. Only populated while a watcher is running.
	watching  atomic.Int32
	ownMu     sync.Mutex
	ownWrites map[string]int
}

// NewFS creates an FS backend rooted at dir, creating the directory if needed.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("docstore: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, apperr.Storage("docstore: create root", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, apperr.Storage("docstore: stat root", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("docstore: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute data directory.
func (f *FS) Root() string { return f.root }

func (f *FS) nsDir(ns string) (string, error) {
	if err := ValidateName(ns); err != nil {
		return "", err
	}
	return filepath.Join(f.root, ns), nil
}

func (f *FS) docPath(ns, key string) (string, error) {
	dir, err := f.nsDir(ns)
	if err != nil {
		return "", err
	}
	if err := ValidateName(key); err != nil {
		return "", err
	}
	return filepath.Join(dir, key+docExt), nil
}

// EnsureNamespace creates the namespace directory.
func (f *FS) EnsureNamespace(_ context.Context, ns string) error {
	dir, err := f.nsDir(ns)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Storage("docstore: fs: mkdir namespace", err)
	}
	return nil
}

// Get reads the document file.
func (f *FS) Get(_ context.Context, ns, key string) ([]byte, error) {
	p, err := f.docPath(ns, key)
	if err != nil {
		return nil, ErrAbsent
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrAbsent
		}
		return nil, apperr.Storage("docstore: fs: read "+ns+"/"+key, err)
	}
	return data, nil
}

// Put atomically writes the document: tmp file → fsync → rename.
func (f *FS) Put(_ context.Context, ns, key string, data []byte) error {
	p, err := f.docPath(ns, key)
	if err != nil {
		return apperr.Validation(err)
	}
	dir := filepath.Dir(p)

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return apperr.Storage("docstore: fs: create temp", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return apperr.Storage("docstore: fs: write temp", err)
	}
	if err := tmp.Sync(); err != nil {
		return apperr.Storage("docstore: fs: fsync", err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Storage("docstore: fs: close temp", err)
	}
	f.markOwn(p)
	if err := os.Rename(tmpName, p); err != nil {
		f.takeOwn(p)
		return apperr.Storage("docstore: fs: rename", err)
	}
	success = true
	return nil
}

// Delete removes the document file if present.
func (f *FS) Delete(_ context.Context, ns, key string) error {
	p, err := f.docPath(ns, key)
	if err != nil {
		return nil
	}
	f.markOwn(p)
	if err := os.Remove(p); err != nil {
		f.takeOwn(p)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return apperr.Storage("docstore: fs: delete "+ns+"/"+key, err)
	}
	return nil
}

// Keys lists document keys in the namespace directory, skipping temp files.
func (f *FS) Keys(_ context.Context, ns string) ([]string, error) {
	dir, err := f.nsDir(ns)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperr.Storage("docstore: fs: list "+ns, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if k, ok := keyFromFile(e.Name()); ok && !e.IsDir() {
			out = append(out, k)
		}
	}
	return out, nil
}

// Close is a no-op; files are closed after every operation.
func (f *FS) Close() error { return nil }

func (f *FS) markOwn(p string) {
	if f.watching.Load() == 0 {
		return
	}
	f.ownMu.Lock()
	defer f.ownMu.Unlock()
	if f.ownWrites == nil {
		f.ownWrites = make(map[string]int)
	}
	f.ownWrites[p]++
}

// takeOwn consumes one marker for p and reports whether there was one.
func (f *FS) takeOwn(p string) bool {
	f.ownMu.Lock()
	defer f.ownMu.Unlock()
	n := f.ownWrites[p]
	switch {
	case n == 0:
		return false
	case n == 1:
		delete(f.ownWrites, p)
	default:
		f.ownWrites[p] = n - 1
	}
	return true
}

func keyFromFile(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, docExt) {
		return "", false
	}
	return strings.TrimSuffix(name, docExt), true
}
