package notes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/docstore"
)

// Change kinds published to the Notifier.
const (
	EventCreated = "note.created"
	EventUpdated = "note.updated"
	EventDeleted = "note.deleted"
)

// Change describes a committed mutation of one note.
type Change struct {
	Kind    string `json:"-"`
	NoteID  string `json:"id"`
	Version int64  `json:"version"`
}

// Notifier receives committed changes addressed to the note's owner.
type Notifier interface {
	Notify(ownerID string, c Change)
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDGenerator overrides how new note ids are produced.
func WithIDGenerator(gen func() string) Option {
	return func(r *Repository) { r.newID = gen }
}

// WithNotifier publishes every committed change to n.
func WithNotifier(n Notifier) Option {
	return func(r *Repository) { r.notifier = n }
}

// Repository scopes every note operation to the calling user.
type Repository struct {
	docs     *docstore.Collection[Note]
	now      func() time.Time
	newID    func() string
	notifier Notifier
}

// NewRepository builds a repository over the notes collection.
func NewRepository(docs *docstore.Collection[Note], opts ...Option) *Repository {
	r := &Repository{
		docs:  docs,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// List returns every note owned by uid.
func (r *Repository) List(ctx context.Context, uid string) ([]Note, error) {
	out, err := r.docs.Scan(ctx, func(n *Note) bool { return n.OwnedBy(uid) })
	if err != nil {
		return nil, fmt.Errorf("notes: list: %w", err)
	}
	return out, nil
}

// Search returns the notes of uid matching q.
func (r *Repository) Search(ctx context.Context, uid string, q Query) ([]Note, error) {
	out, err := r.docs.Scan(ctx, func(n *Note) bool { return n.OwnedBy(uid) && q.Matches(n) })
	if err != nil {
		return nil, fmt.Errorf("notes: search: %w", err)
	}
	return out, nil
}

// Get returns the note id if uid owns it. Missing and foreign notes both
// yield apperr.ErrNotFound.
func (r *Repository) Get(ctx context.Context, uid, id string) (Note, error) {
	n, found, err := r.docs.Get(ctx, id)
	if err != nil {
		return Note{}, fmt.Errorf("notes: get: %w", err)
	}
	if !found || !n.OwnedBy(uid) {
		return Note{}, apperr.ErrNotFound
	}
	return n, nil
}

// Create stores a new note for uid.
func (r *Repository) Create(ctx context.Context, uid string, d Draft) (Note, error) {
	if uid == "" {
		return Note{}, apperr.ErrUnauthorized
	}
	now := r.now()
	n := Note{
		ID:        r.newID(),
		OwnerID:   uid,
		Title:     d.Title,
		Content:   d.Content,
		Tags:      normalizeTags(d.Tags),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := n.Validate(); err != nil {
		return Note{}, apperr.Validation(err)
	}

	created, err := r.docs.MutateCommit(ctx, n.ID, func(_ Note, found bool) (Note, docstore.Op, error) {
		if found {
			return Note{}, docstore.OpKeep, fmt.Errorf("notes: create: id %s: %w", n.ID, apperr.ErrAlreadyExists)
		}
		return n, docstore.OpPut, nil
	}, r.committed(EventCreated))
	if err != nil {
		return Note{}, fmt.Errorf("notes: create: %w", err)
	}
	return created, nil
}

// Update applies p to the note id when the stored version still equals
// p.ExpectedVersion. On any failure the stored note is left untouched.
func (r *Repository) Update(ctx context.Context, uid, id string, p Patch) (Note, error) {
	if err := p.Validate(); err != nil {
		return Note{}, apperr.Validation(err)
	}

	updated, err := r.docs.MutateCommit(ctx, id, func(cur Note, found bool) (Note, docstore.Op, error) {
		if !found || !cur.OwnedBy(uid) {
			return Note{}, docstore.OpKeep, apperr.ErrNotFound
		}
		if cur.Version != p.ExpectedVersion {
			return Note{}, docstore.OpKeep, apperr.ErrVersionConflict
		}
		next := cur
		p.apply(&next)
		if err := next.Validate(); err != nil {
			return Note{}, docstore.OpKeep, apperr.Validation(err)
		}
		next.Version = cur.Version + 1
		next.UpdatedAt = r.now()
		return next, docstore.OpPut, nil
	}, r.committed(EventUpdated))
	if err != nil {
		return Note{}, err
	}
	return updated, nil
}

// Delete permanently removes the note id owned by uid.
func (r *Repository) Delete(ctx context.Context, uid, id string) error {
	_, err := r.docs.MutateCommit(ctx, id, func(cur Note, found bool) (Note, docstore.Op, error) {
		if !found || !cur.OwnedBy(uid) {
			return Note{}, docstore.OpKeep, apperr.ErrNotFound
		}
		return cur, docstore.OpDelete, nil
	}, r.committed(EventDeleted))
	return err
}

// ExternalChange forwards a change made outside this process (reported by the
// filesystem watcher) to the owner's subscribers. Deletions cannot be routed
// because the owner is gone with the file, so they are ignored.
func (r *Repository) ExternalChange(ctx context.Context, kind, id string) error {
	if r.notifier == nil || kind == docstore.ChangeDeleted {
		return nil
	}
	n, found, err := r.docs.Get(ctx, id)
	if err != nil || !found {
		return err
	}
	ev := EventUpdated
	if kind == docstore.ChangeCreated {
		ev = EventCreated
	}
	r.notify(n, ev)
	return nil
}

// committed publishes kind for every stored change while the note's key lock
// is still held, so subscribers see one note's versions in order.
func (r *Repository) committed(kind string) docstore.CommitFunc[Note] {
	return func(n Note, _ docstore.Op) { r.notify(n, kind) }
}

func (r *Repository) notify(n Note, kind string) {
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(n.OwnerID, Change{Kind: kind, NoteID: n.ID, Version: n.Version})
}
