// Package docstore provides namespaced key→document persistence with linear
// predicate scanning. It knows nothing about notes or users: documents are
// any JSON-serialisable value, stored one record per key.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrAbsent is returned by a Backend when a key does not exist. It never
// escapes a Collection: Collection.Get reports absence through its bool result.
var ErrAbsent = errors.New("docstore: absent")

// Backend is the byte-level storage medium behind a Collection.
//
// Implementations must be safe for concurrent use and Put must be atomic from
// a reader's point of view: a concurrent Get sees the old or the new value in
// full. Any failure other than absence is reported wrapped in apperr.ErrStorage.
type Backend interface {
	// EnsureNamespace idempotently prepares ns for reads and writes.
	EnsureNamespace(ctx context.Context, ns string) error
	// Get returns the stored bytes or ErrAbsent.
	Get(ctx context.Context, ns, key string) ([]byte, error)
	// Put creates or fully overwrites the value at key.
	Put(ctx context.Context, ns, key string, data []byte) error
	// Delete removes key; a missing key is not an error.
	Delete(ctx context.Context, ns, key string) error
	// Keys lists the keys present in ns at call time, in no particular order.
	Keys(ctx context.Context, ns string) ([]string, error)
	Close() error
}

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ValidateName reports whether s is usable as a namespace or key. Names map
// directly onto file names in the FS backend, so separators, traversal
// sequences and leading dots are rejected everywhere.
func ValidateName(s string) error {
	if !nameRe.MatchString(s) || strings.Contains(s, "..") {
		return fmt.Errorf("docstore: invalid name %q", s)
	}
	return nil
}
