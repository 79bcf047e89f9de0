// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes one user's notes to LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/auth"
	"github.com/starford/inkwell/internal/markdown"
	"github.com/starford/inkwell/internal/notes"
)

const formatURI = "inkwell://note-format"

// Repository is the subset of the note repository the tools need.
type Repository interface {
	List(ctx context.Context, uid string) ([]notes.Note, error)
	Search(ctx context.Context, uid string, q notes.Query) ([]notes.Note, error)
	Get(ctx context.Context, uid, id string) (notes.Note, error)
	Create(ctx context.Context, uid string, d notes.Draft) (notes.Note, error)
	Update(ctx context.Context, uid, id string, p notes.Patch) (notes.Note, error)
	Delete(ctx context.Context, uid, id string) error
}

// Server wraps the MCP server with note tools bound to a single identity.
type Server struct {
	mcp    *server.MCPServer
	repo   Repository
	id     auth.Identity
	logger *slog.Logger
}

// New creates an MCP server acting as id.
func New(repo Repository, id auth.Identity, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{repo: repo, id: id, logger: logger}

	s.mcp = server.NewMCPServer(
		"Inkwell",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all of your notes (id, title, tags, version, last update)."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search your notes. Text matches title or content case-insensitively; "+
			"tags match notes carrying any of the listed tags. Both filters are optional."),
		mcp.WithString("query", mcp.Description("Text to look for")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read one note as Markdown with a YAML header carrying id, title, tags and version."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note. Read the format contract first via get_note_contract or the "+
			formatURI+" resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note body, or a full Markdown document when title is omitted")),
		mcp.WithString("title", mcp.Description("Note title")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Update a note. Only the given fields change. Fails with a version conflict "+
			"when the note changed since you read it."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithNumber("version", mcp.Required(), mcp.Description("Version you last read")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New content")),
		mcp.WithString("tags", mcp.Description("New comma-separated tags (replaces all tags)")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Permanently delete a note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note format contract. Call this before creating or updating notes."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Note Format Contract",
			mcp.WithResourceDescription("How notes are rendered and which limits apply when writing them."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type listItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Server) listNotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.repo.List(ctx, s.id.UserID)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(summaries(list)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := notes.Query{
		Text: req.GetString("query", ""),
		Tags: splitTags(req.GetString("tags", "")),
	}
	list, err := s.repo.Search(ctx, s.id.UserID, q)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(summaries(list)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.repo.Get(ctx, s.id.UserID, id)
	if err != nil {
		return s.toolError(err), nil
	}
	out, err := markdown.Render(n)
	if err != nil {
		return s.toolError(err), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	draft := notes.Draft{
		Title:   req.GetString("title", ""),
		Content: content,
		Tags:    splitTags(req.GetString("tags", "")),
	}
	if draft.Title == "" {
		doc, err := markdown.Parse([]byte(content))
		if err != nil {
			return s.toolError(err), nil
		}
		draft.Title = doc.Title
		draft.Content = doc.Body
		if len(draft.Tags) == 0 {
			draft.Tags = doc.Tags
		}
	}

	n, err := s.repo.Create(ctx, s.id.UserID, draft)
	if err != nil {
		return s.toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (version %d)", n.ID, n.Version)), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := req.RequireFloat("version")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if v != math.Trunc(v) {
		return mcp.NewToolResultError("version must be a whole number"), nil
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if v < 1 || v >= math.MaxInt64 {
		return mcp.NewToolResultError("version is out of range"), nil
	}

	p := notes.Patch{ExpectedVersion: int64(v)}
	args := req.GetArguments()
	if _, ok := args["title"]; ok {
		t := req.GetString("title", "")
		p.Title = &t
	}
	if _, ok := args["content"]; ok {
		c := req.GetString("content", "")
		p.Content = &c
	}
	if _, ok := args["tags"]; ok {
		tags := splitTags(req.GetString("tags", ""))
		p.Tags = &tags
	}

	n, err := s.repo.Update(ctx, s.id.UserID, id, p)
	if err != nil {
		return s.toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (version %d)", n.ID, n.Version)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.repo.Delete(ctx, s.id.UserID, id); err != nil {
		return s.toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

// toolError turns a repository failure into a tool-level error result.
// Storage faults are logged and reported without detail.
func (s *Server) toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("note not found")
	case errors.Is(err, apperr.ErrVersionConflict):
		return mcp.NewToolResultError("version conflict: the note changed since you read it; read it again and retry")
	case errors.Is(err, apperr.ErrValidation):
		return mcp.NewToolResultError(err.Error())
	default:
		s.logger.Error("mcp: tool failed", slog.String("error", err.Error()))
		return mcp.NewToolResultError("internal error")
	}
}

func summaries(list []notes.Note) []listItem {
	out := make([]listItem, len(list))
	for i, n := range list {
		out[i] = listItem{ID: n.ID, Title: n.Title, Tags: n.Tags, Version: n.Version, UpdatedAt: n.UpdatedAt}
	}
	return out
}

func jsonResult(v interface{}) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func splitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
