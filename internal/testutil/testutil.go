// Package testutil provides shared test helpers for wiring stores, repositories
// and credentials.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/starford/inkwell/internal/auth"
	"github.com/starford/inkwell/internal/docstore"
	"github.com/starford/inkwell/internal/notes"
	"github.com/starford/inkwell/internal/users"
)

// Key is a fixed token key for tests.
var Key = []byte("0123456789abcdef0123456789abcdef")

// FSBackend creates a file-backed store in a temporary directory.
func FSBackend(t *testing.T) *docstore.FS {
	t.Helper()
	fs, err := docstore.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

// MemoryBackend creates an in-memory Badger store that is closed on cleanup.
func MemoryBackend(t *testing.T) *docstore.Badger {
	t.Helper()
	b, err := docstore.NewBadger("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// NoteRepository opens the notes namespace of backend.
func NoteRepository(t *testing.T, backend docstore.Backend, opts ...notes.Option) *notes.Repository {
	t.Helper()
	docs, err := docstore.Open[notes.Note](context.Background(), backend, notes.Namespace)
	if err != nil {
		t.Fatal(err)
	}
	return notes.NewRepository(docs, opts...)
}

// UserService opens the users namespace of backend, issuing tokens with Key.
func UserService(t *testing.T, backend docstore.Backend) *users.Service {
	t.Helper()
	docs, err := docstore.Open[users.User](context.Background(), backend, users.Namespace)
	if err != nil {
		t.Fatal(err)
	}
	return users.NewService(docs, Issuer(t))
}

// Issuer returns a token issuer keyed with Key.
func Issuer(t *testing.T) *auth.Issuer {
	t.Helper()
	iss, err := auth.NewIssuer(Key, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return iss
}

// Gate returns an identity gate keyed with Key.
func Gate(t *testing.T) *auth.Gate {
	t.Helper()
	g, err := auth.NewGate(Key)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// Token issues a bearer token for a plain user with the given id.
func Token(t *testing.T, uid string) string {
	t.Helper()
	tok, _, err := Issuer(t).Issue(auth.Identity{UserID: uid, Username: uid, Role: auth.RoleUser})
	if err != nil {
		t.Fatal(err)
	}
	return tok
}
