package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/inkwell/internal/apperr"
)

// Op tells Mutate what to do with the value returned by its callback.
type Op int

const (
	// OpKeep leaves the stored document untouched.
	OpKeep Op = iota
	// OpPut stores the returned document.
	OpPut
	// OpDelete removes the key.
	OpDelete
)

// MutateFunc receives the current document (zero value and found=false when
// absent) and decides the next state. Returning an error aborts the mutation
// with nothing written.
type MutateFunc[T any] func(cur T, found bool) (next T, op Op, err error)

// Collection is a typed view of one namespace. Open exactly one Collection per
// namespace per process: the per-key locks that make Mutate atomic live here.
type Collection[T any] struct {
	backend Backend
	ns      string
	locks   *keyLocks
}

// Open ensures ns exists on the backend and returns a typed collection over it.
// A failure here is fatal for the namespace; callers should abort startup.
func Open[T any](ctx context.Context, backend Backend, ns string) (*Collection[T], error) {
	if err := ValidateName(ns); err != nil {
		return nil, err
	}
	if err := backend.EnsureNamespace(ctx, ns); err != nil {
		return nil, fmt.Errorf("docstore: open namespace %q: %w", ns, err)
	}
	return &Collection[T]{backend: backend, ns: ns, locks: newKeyLocks()}, nil
}

// Namespace returns the collection's namespace.
func (c *Collection[T]) Namespace() string { return c.ns }

// Get returns the document at key. A missing key (or one that could never be
// stored) is reported as found=false, never as an error.
func (c *Collection[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if ValidateName(key) != nil {
		return zero, false, nil
	}
	return c.get(ctx, key)
}

func (c *Collection[T]) get(ctx context.Context, key string) (T, bool, error) {
	var doc T
	data, err := c.backend.Get(ctx, c.ns, key)
	if errors.Is(err, ErrAbsent) {
		return doc, false, nil
	}
	if err != nil {
		return doc, false, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, false, apperr.Storage(fmt.Sprintf("docstore: decode %s/%s", c.ns, key), err)
	}
	return doc, true, nil
}

// Set creates or overwrites the document at key.
func (c *Collection[T]) Set(ctx context.Context, key string, doc T) error {
	if err := ValidateName(key); err != nil {
		return apperr.Validation(err)
	}
	unlock := c.locks.lock(key)
	defer unlock()
	return c.put(ctx, key, doc)
}

func (c *Collection[T]) put(ctx context.Context, key string, doc T) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: encode %s/%s: %w", c.ns, key, err)
	}
	return c.backend.Put(ctx, c.ns, key, data)
}

// Delete removes the document at key; absence is not an error.
func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	if ValidateName(key) != nil {
		return nil
	}
	unlock := c.locks.lock(key)
	defer unlock()
	return c.backend.Delete(ctx, c.ns, key)
}

// List returns the keys present at call time, in no particular order.
func (c *Collection[T]) List(ctx context.Context) ([]string, error) {
	return c.backend.Keys(ctx, c.ns)
}

// Scan reads every document in the namespace and returns those matching pred.
// Cost is linear in the namespace size; there is no index. Scans take no
// namespace-wide lock, so concurrent writes may or may not be reflected, and
// keys deleted between listing and reading are skipped.
func (c *Collection[T]) Scan(ctx context.Context, pred func(*T) bool) ([]T, error) {
	keys, err := c.backend.Keys(ctx, c.ns)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, found, err := c.get(ctx, k)
		if err != nil {
			return nil, err
		}
		if found && (pred == nil || pred(&doc)) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Mutate runs a read-check-write cycle on a single key while holding that
// key's lock. Concurrent Mutate, Set and Delete calls on the same key are
// serialised; calls on different keys never wait for each other.
//
// The returned document is the stored state after the mutation (the current
// document for OpKeep, the new one for OpPut, the removed one for OpDelete).
func (c *Collection[T]) Mutate(ctx context.Context, key string, fn MutateFunc[T]) (T, error) {
	return c.MutateCommit(ctx, key, fn, nil)
}

// CommitFunc observes a mutation that reached the backend.
type CommitFunc[T any] func(doc T, op Op)

// MutateCommit is Mutate with a hook that runs after a successful OpPut or
// OpDelete and before the key lock is released, so hooks for one key observe
// commits in the order they were stored.
func (c *Collection[T]) MutateCommit(ctx context.Context, key string, fn MutateFunc[T], committed CommitFunc[T]) (T, error) {
	var zero T
	if ValidateName(key) != nil {
		next, op, err := fn(zero, false)
		if err != nil {
			return zero, err
		}
		if op == OpPut {
			return zero, apperr.Invalid(fmt.Sprintf("invalid key %q", key))
		}
		return next, nil
	}

	unlock := c.locks.lock(key)
	defer unlock()

	cur, found, err := c.get(ctx, key)
	if err != nil {
		return zero, err
	}
	next, op, err := fn(cur, found)
	if err != nil {
		return zero, err
	}

	switch op {
	case OpPut:
		if err := c.put(ctx, key, next); err != nil {
			return zero, err
		}
	case OpDelete:
		if err := c.backend.Delete(ctx, c.ns, key); err != nil {
			return zero, err
		}
		next = cur
	default:
		return cur, nil
	}
	if committed != nil {
		committed(next, op)
	}
	return next, nil
}
