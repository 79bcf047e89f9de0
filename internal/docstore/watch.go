package docstore

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change kinds reported by Watch.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// ChangeFunc is called for every document changed outside this process.
type ChangeFunc func(kind, key string)

// coalesceWindow groups the events of one external edit, such as the Create
// and Write an editor produces when saving a new file, into one callback.
const coalesceWindow = 50 * time.Millisecond

// Watch reports edits made to namespace ns by other processes (the CLI,
// a text editor, a restore from backup) until ctx is cancelled. Writes and
// deletes issued through this FS value are filtered out.
//
// Every atomic write lands as a rename into place, which fsnotify reports as
// Create; known keys are tracked so that overwrites are reported as updates.
// Creates and writes to one key are reported once the key has been quiet for
// coalesceWindow.
func (f *FS) Watch(ctx context.Context, ns string, logger *slog.Logger, cb ChangeFunc) error {
	dir, err := f.nsDir(ns)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	f.watching.Add(1)
	defer f.watching.Add(-1)

	known := make(map[string]struct{})
	keys, err := f.Keys(ctx, ns)
	if err != nil {
		return err
	}
	for _, k := range keys {
		known[k] = struct{}{}
	}

	type pendingChange struct {
		kind  string
		timer *time.Timer
	}
	pending := make(map[string]*pendingChange)
	due := make(chan string)
	done := make(chan struct{})
	defer func() {
		close(done)
		for _, p := range pending {
			p.timer.Stop()
		}
	}()

	report := func(kind, key string) {
		logger.Debug("watcher: external change", slog.String("key", key), slog.String("op", kind))
		if cb != nil {
			cb(kind, key)
		}
	}

	logger.Info("watcher: started", slog.String("dir", dir))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped", slog.String("dir", dir))
			return nil

		case key := <-due:
			if p, ok := pending[key]; ok {
				delete(pending, key)
				report(p.kind, key)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			key, ok := keyFromFile(filepath.Base(ev.Name))
			if !ok {
				continue
			}
			own := f.takeOwn(ev.Name)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind := ChangeUpdated
				if _, seen := known[key]; !seen {
					kind = ChangeCreated
					known[key] = struct{}{}
				}
				if own {
					continue
				}
				if p, ok := pending[key]; ok {
					p.timer.Reset(coalesceWindow)
					continue
				}
				pending[key] = &pendingChange{
					kind: kind,
					timer: time.AfterFunc(coalesceWindow, func() {
						select {
						case due <- key:
						case <-done:
						}
					}),
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(known, key)
				p, wasPending := pending[key]
				if wasPending {
					p.timer.Stop()
					delete(pending, key)
				}
				// A file created and removed within one window was never seen.
				if own || (wasPending && p.kind == ChangeCreated) {
					continue
				}
				logger.Debug("watcher: external delete", slog.String("key", key))
				if cb != nil {
					cb(ChangeDeleted, key)
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
