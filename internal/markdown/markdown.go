// Package markdown converts notes to and from Markdown files with a YAML
// frontmatter header.
package markdown

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/inkwell/internal/notes"
)

const delim = "---"

// Document is the result of parsing a Markdown file.
type Document struct {
	ID          string
	Title       string
	Tags        []string
	Version     int64
	Body        string
	Frontmatter map[string]interface{}
}

// Draft converts the document into a note draft.
func (d *Document) Draft() notes.Draft {
	return notes.Draft{Title: d.Title, Content: d.Body, Tags: d.Tags}
}

type header struct {
	ID      string    `yaml:"id,omitempty"`
	Title   string    `yaml:"title"`
	Tags    []string  `yaml:"tags,flow"`
	Version int64     `yaml:"version,omitempty"`
	Created time.Time `yaml:"created,omitempty"`
	Updated time.Time `yaml:"updated,omitempty"`
}

// Render writes n as frontmatter followed by its content verbatim.
func Render(n notes.Note) ([]byte, error) {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	fm, err := yaml.Marshal(header{
		ID:      n.ID,
		Title:   n.Title,
		Tags:    tags,
		Version: n.Version,
		Created: n.CreatedAt,
		Updated: n.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("markdown: render %s: %w", n.ID, err)
	}

	var buf bytes.Buffer
	buf.Grow(len(fm) + len(n.Content) + 8)
	buf.WriteString(delim + "\n")
	buf.Write(fm)
	buf.WriteString(delim + "\n")
	buf.WriteString(n.Content)
	return buf.Bytes(), nil
}

// Parse reads a Markdown file. Title comes from the frontmatter or, failing
// that, the first level-one heading. A missing or malformed header leaves the
// whole input as body.
func Parse(data []byte) (Document, error) {
	fm, body := splitFrontmatter(data)
	doc := Document{Frontmatter: fm, Body: body}

	if fm != nil {
		if v, ok := fm["id"].(string); ok {
			doc.ID = v
		}
		if v, ok := fm["title"]; ok && v != nil {
			doc.Title = strings.TrimSpace(fmt.Sprint(v))
		}
		switch v := fm["version"].(type) {
		case int:
			doc.Version = int64(v)
		case int64:
			doc.Version = v
		}
		doc.Tags = tagsFrom(fm["tags"])
	}
	if doc.Title == "" {
		doc.Title = firstHeading(body)
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	return doc, nil
}

func splitFrontmatter(data []byte) (map[string]interface{}, string) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim+"\n")) && !bytes.HasPrefix(trimmed, []byte(delim+"\r\n")) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	var block, after []byte
	for from := 0; ; {
		idx := bytes.Index(rest[from:], []byte("\n"+delim))
		if idx < 0 {
			return nil, string(data)
		}
		end := from + idx
		tail := rest[end+1+len(delim):]
		// The closing delimiter must be a line of its own.
		if len(tail) == 0 || tail[0] == '\n' || bytes.HasPrefix(tail, []byte("\r\n")) {
			block = rest[:end]
			after = bytes.TrimPrefix(bytes.TrimPrefix(tail, []byte("\r")), []byte("\n"))
			break
		}
		from = end + 1
	}

	var fm map[string]interface{}
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, string(data)
	}
	if fm == nil {
		fm = map[string]interface{}{}
	}
	return fm, string(after)
}

func tagsFrom(raw interface{}) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch v := raw.(type) {
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}
	return out
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
