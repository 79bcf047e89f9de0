package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/starford/inkwell/internal/apperr"
)

const (
	badgerNSMarker = "_ns:"
	badgerSep      = "/"
)

// Badger is a Backend over an embedded Badger key-value database. Documents
// live under "<namespace>/<key>"; every write is its own transaction.
type Badger struct {
	db *badger.DB
}

// NewBadger opens (or creates) a Badger database at dir. An empty dir opens
// an in-memory database, which is what the tests use.
func NewBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil            // slog is the only log sink
	opts.SyncWrites = dir != "" // durable writes for on-disk databases
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, apperr.Storage("docstore: badger: open", err)
	}
	return &Badger{db: db}, nil
}

func badgerKey(ns, key string) []byte {
	return []byte(ns + badgerSep + key)
}

// EnsureNamespace records a marker for ns. Badger needs no schema, but the
// marker makes the namespace visible to tooling even while it is empty.
func (b *Badger) EnsureNamespace(_ context.Context, ns string) error {
	if err := ValidateName(ns); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerNSMarker+ns), nil)
	})
	if err != nil {
		return apperr.Storage("docstore: badger: ensure namespace", err)
	}
	return nil
}

// Get returns a copy of the stored value.
func (b *Badger) Get(_ context.Context, ns, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(ns, key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrAbsent
	}
	if err != nil {
		return nil, apperr.Storage(fmt.Sprintf("docstore: badger: get %s/%s", ns, key), err)
	}
	return out, nil
}

// Put sets the value in a single transaction.
func (b *Badger) Put(_ context.Context, ns, key string, data []byte) error {
	if err := ValidateName(key); err != nil {
		return apperr.Validation(err)
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(ns, key), data)
	})
	if err != nil {
		return apperr.Storage(fmt.Sprintf("docstore: badger: put %s/%s", ns, key), err)
	}
	return nil
}

// Delete removes the key; Badger treats deleting a missing key as a no-op.
func (b *Badger) Delete(_ context.Context, ns, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(ns, key))
	})
	if err != nil {
		return apperr.Storage(fmt.Sprintf("docstore: badger: delete %s/%s", ns, key), err)
	}
	return nil
}

// Keys iterates the namespace prefix without fetching values.
func (b *Badger) Keys(_ context.Context, ns string) ([]string, error) {
	prefix := []byte(ns + badgerSep)
	var out []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			k := string(it.Item().Key())
			out = append(out, strings.TrimPrefix(k, string(prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Storage("docstore: badger: list "+ns, err)
	}
	return out, nil
}

// Close flushes and closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}
