package docstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/starford/inkwell/internal/apperr"
)

// Backend kinds accepted by OpenBackend.
const (
	KindFS     = "fs"
	KindBadger = "badger"
	KindSQLite = "sqlite"
)

// OpenBackend opens the backend of the given kind under dir. The FS backend
// uses dir directly; Badger and SQLite keep their files inside it.
func OpenBackend(kind, dir string) (Backend, error) {
	if kind == KindFS || kind == "" {
		return NewFS(dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Storage("docstore: create data dir", err)
	}
	switch kind {
	case KindBadger:
		return NewBadger(filepath.Join(dir, "badger"))
	case KindSQLite:
		return OpenSQLite(filepath.Join(dir, "inkwell.db"))
	default:
		return nil, fmt.Errorf("docstore: unknown backend %q", kind)
	}
}
