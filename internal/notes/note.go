// Package notes is the per-user note domain: ownership scoping, identity and
// timestamps, search filtering and optimistic-concurrency updates over a
// docstore collection.
package notes

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Namespace is the docstore namespace holding notes.
const Namespace = "notes"

// Limits enforced on every write.
const (
	MaxTitleRunes   = 200
	MaxContentBytes = 1 << 20
	MaxTags         = 50
	MaxTagRunes     = 64
)

// Note is a single user note as persisted and returned to callers.
type Note struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the mutable fields of a note.
func (n *Note) Validate() error {
	return validation.ValidateStruct(n,
		validation.Field(&n.Title, validation.Required, notBlank, validation.RuneLength(1, MaxTitleRunes)),
		validation.Field(&n.Content, validation.Length(0, MaxContentBytes)),
		validation.Field(&n.Tags,
			validation.Length(0, MaxTags),
			validation.Each(validation.Required, notBlank, validation.RuneLength(1, MaxTagRunes)),
		),
	)
}

// OwnedBy reports whether uid owns the note.
func (n *Note) OwnedBy(uid string) bool {
	return uid != "" && n.OwnerID == uid
}

// Draft carries the caller-supplied fields of a new note.
type Draft struct {
	Title   string
	Content string
	Tags    []string
}

// Patch describes a partial update. Nil fields keep their stored value; a
// non-nil pointer to an empty value is applied as-is. ExpectedVersion is the
// version the caller last saw and is always compared.
type Patch struct {
	Title           *string
	Content         *string
	Tags            *[]string
	ExpectedVersion int64
}

// Validate checks the parts of a patch that do not depend on the stored note.
func (p *Patch) Validate() error {
	if p.ExpectedVersion < 1 {
		return validation.Errors{"version": errors.New("must be at least 1")}
	}
	return nil
}

func (p *Patch) apply(n *Note) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Tags != nil {
		n.Tags = normalizeTags(*p.Tags)
	}
}

var notBlank = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s != "" && strings.TrimSpace(s) == "" {
		return errors.New("must not be blank")
	}
	return nil
})

// normalizeTags drops repeated tags, keeping the first occurrence, and never
// returns nil so that notes always serialise with a tags array.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
