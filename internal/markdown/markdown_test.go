package markdown

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/inkwell/internal/notes"
)

func sampleNote() notes.Note {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return notes.Note{
		ID:        "550e8400-e29b-41d4-a716-446655440000",
		OwnerID:   "usr-1",
		Title:     "Weekly: review",
		Content:   "\n# Heading\n\n---\nbody with #hash\n",
		Tags:      []string{"work", "go lang"},
		Version:   4,
		CreatedAt: ts,
		UpdatedAt: ts.Add(time.Hour),
	}
}

func TestRenderParseRoundTrip(t *testing.T) {
	n := sampleNote()
	out, err := Render(n)
	require.NoError(t, err)

	s := string(out)
	assert.True(t, strings.HasPrefix(s, "---\nid: "))
	assert.Contains(t, s, n.ID)
	assert.Contains(t, s, "version: 4\n")
	assert.NotContains(t, s, "usr-1", "owner never leaves the service")

	doc, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, n.ID, doc.ID)
	assert.Equal(t, n.Title, doc.Title)
	assert.Equal(t, n.Tags, doc.Tags)
	assert.Equal(t, n.Version, doc.Version)
	assert.Equal(t, n.Content, doc.Body)
}

func TestRenderEmptyTags(t *testing.T) {
	n := sampleNote()
	n.Tags = nil
	out, err := Render(n)
	require.NoError(t, err)
	assert.Contains(t, string(out), "tags: []\n")

	doc, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, []string{}, doc.Tags)
}

func TestParseFallsBackToHeading(t *testing.T) {
	doc, err := Parse([]byte("# Just a heading\nSome text.\n"))
	require.NoError(t, err)
	assert.Nil(t, doc.Frontmatter)
	assert.Equal(t, "Just a heading", doc.Title)
	assert.Equal(t, "# Just a heading\nSome text.\n", doc.Body)
	assert.Equal(t, []string{}, doc.Tags)
}

func TestParseFrontmatterWithoutTitle(t *testing.T) {
	doc, err := Parse([]byte("---\ntags: a, b ,\n---\n# From body\n"))
	require.NoError(t, err)
	assert.Equal(t, "From body", doc.Title)
	assert.Equal(t, []string{"a", "b"}, doc.Tags)
	assert.Equal(t, "# From body\n", doc.Body)
}

func TestParseInvalidYAMLFallback(t *testing.T) {
	in := "---\n: invalid: yaml: {{{\n---\nBody\n"
	doc, err := Parse([]byte(in))
	require.NoError(t, err)
	assert.Nil(t, doc.Frontmatter)
	assert.Equal(t, in, doc.Body)
}

func TestParseUnclosedFrontmatter(t *testing.T) {
	in := "---\ntitle: x\nno closing line\n"
	doc, err := Parse([]byte(in))
	require.NoError(t, err)
	assert.Nil(t, doc.Frontmatter)
	assert.Equal(t, in, doc.Body)
}

func TestParseDelimiterMustBeOwnLine(t *testing.T) {
	in := "---title\nx\n---\n"
	doc, err := Parse([]byte(in))
	require.NoError(t, err)
	assert.Nil(t, doc.Frontmatter)
	assert.Equal(t, in, doc.Body)

	doc, err = Parse([]byte("---\ntitle: T\n---\n----\nbody"))
	require.NoError(t, err)
	assert.Equal(t, "T", doc.Title)
	assert.Equal(t, "----\nbody", doc.Body)
}

func TestParseCRLF(t *testing.T) {
	doc, err := Parse([]byte("---\r\ntitle: Windows\r\n---\r\nline\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "Windows", doc.Title)
	assert.Equal(t, "line\r\n", doc.Body)
}

func TestDocumentDraft(t *testing.T) {
	doc := Document{Title: "T", Body: "B", Tags: []string{"x"}}
	assert.Equal(t, notes.Draft{Title: "T", Content: "B", Tags: []string{"x"}}, doc.Draft())
}
