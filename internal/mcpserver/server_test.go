package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/inkwell/internal/auth"
	"github.com/starford/inkwell/internal/notes"
	"github.com/starford/inkwell/internal/testutil"
)

var (
	alice = auth.Identity{UserID: "usr-alice", Username: "alice", Role: auth.RoleUser}
	bob   = auth.Identity{UserID: "usr-bob", Username: "bob", Role: auth.RoleUser}
)

func testRepo(t *testing.T) *notes.Repository {
	t.Helper()
	return testutil.NoteRepository(t, testutil.FSBackend(t))
}

func testServer(t *testing.T, repo *notes.Repository, id auth.Identity) *Server {
	t.Helper()
	return New(repo, id, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "create_note":
		result, err = srv.createNote(ctx, req)
	case "update_note":
		result, err = srv.updateNote(ctx, req)
	case "delete_note":
		result, err = srv.deleteNote(ctx, req)
	case "get_note_contract":
		result, err = srv.getNoteContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func listed(t *testing.T, r *mcp.CallToolResult) []listItem {
	t.Helper()
	if r.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(r))
	}
	var items []listItem
	if err := json.Unmarshal([]byte(resultText(r)), &items); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	return items
}

func TestCreateAndReadNote(t *testing.T) {
	repo := testRepo(t)
	srv := testServer(t, repo, alice)

	r := callTool(t, srv, "create_note", map[string]interface{}{
		"title":   "Test",
		"content": "Hello",
		"tags":    "a, b",
	})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}

	items := listed(t, callTool(t, srv, "list_notes", nil))
	if len(items) != 1 {
		t.Fatalf("list len = %d, want 1", len(items))
	}

	r = callTool(t, srv, "read_note", map[string]interface{}{"id": items[0].ID})
	text := resultText(r)
	if !strings.Contains(text, "title: Test") || !strings.Contains(text, "tags: [a, b]") {
		t.Errorf("read result header = %q", text)
	}
	if !strings.HasSuffix(text, "---\nHello") {
		t.Errorf("read result body = %q", text)
	}
}

func TestCreateFromMarkdown(t *testing.T) {
	repo := testRepo(t)
	srv := testServer(t, repo, alice)

	r := callTool(t, srv, "create_note", map[string]interface{}{
		"content": "---\ntags: [x]\n---\n# From heading\nbody\n",
	})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}

	list, err := repo.List(context.Background(), alice.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d", len(list))
	}
	n := list[0]
	if n.Title != "From heading" || n.Content != "# From heading\nbody\n" || len(n.Tags) != 1 || n.Tags[0] != "x" {
		t.Errorf("note = %+v", n)
	}
}

func TestCreateValidationError(t *testing.T) {
	srv := testServer(t, testRepo(t), alice)
	r := callTool(t, srv, "create_note", map[string]interface{}{"content": "no title anywhere"})
	if !r.IsError {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(resultText(r), "title") {
		t.Errorf("error should name the field: %q", resultText(r))
	}
}

func TestUpdateNoteVersioning(t *testing.T) {
	repo := testRepo(t)
	srv := testServer(t, repo, alice)
	n, err := repo.Create(context.Background(), alice.UserID, notes.Draft{Title: "T", Content: "C", Tags: []string{"keep"}})
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "update_note", map[string]interface{}{"id": n.ID, "version": float64(1), "content": ""})
	if r.IsError {
		t.Fatalf("update failed: %s", resultText(r))
	}
	got, err := repo.Get(context.Background(), alice.UserID, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "" || got.Title != "T" || len(got.Tags) != 1 || got.Version != 2 {
		t.Errorf("after update: %+v", got)
	}

	r = callTool(t, srv, "update_note", map[string]interface{}{"id": n.ID, "version": float64(1), "title": "stale"})
	if !r.IsError || !strings.Contains(resultText(r), "version conflict") {
		t.Errorf("expected version conflict, got %q", resultText(r))
	}

	r = callTool(t, srv, "update_note", map[string]interface{}{"id": n.ID, "version": 1.5})
	if !r.IsError {
		t.Error("expected error for fractional version")
	}

	r = callTool(t, srv, "update_note", map[string]interface{}{"id": n.ID})
	if !r.IsError {
		t.Error("expected error for missing version")
	}

	for _, v := range []float64{1e20, math.MaxInt64, math.Inf(1), -1e20, 0} {
		r = callTool(t, srv, "update_note", map[string]interface{}{"id": n.ID, "version": v, "title": "huge"})
		if !r.IsError || !strings.Contains(resultText(r), "out of range") {
			t.Errorf("version %g: expected out of range, got %q", v, resultText(r))
		}
	}
	got, err = repo.Get(context.Background(), alice.UserID, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "T" || got.Version != 2 {
		t.Errorf("out of range versions must not update: %+v", got)
	}
}

func TestSearchAndIsolation(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	for _, d := range []notes.Draft{
		{Title: "Hello world", Tags: []string{"greet"}},
		{Title: "bye", Tags: []string{"farewell"}},
	} {
		if _, err := repo.Create(ctx, alice.UserID, d); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := repo.Create(ctx, bob.UserID, notes.Draft{Title: "hello there"}); err != nil {
		t.Fatal(err)
	}

	srv := testServer(t, repo, alice)
	items := listed(t, callTool(t, srv, "search_notes", map[string]interface{}{"query": "HELLO"}))
	if len(items) != 1 || items[0].Title != "Hello world" {
		t.Errorf("text search = %+v", items)
	}
	items = listed(t, callTool(t, srv, "search_notes", map[string]interface{}{"tags": "farewell,greet"}))
	if len(items) != 2 {
		t.Errorf("tag search len = %d, want 2", len(items))
	}

	bobSrv := testServer(t, repo, bob)
	if got := listed(t, callTool(t, bobSrv, "list_notes", nil)); len(got) != 1 {
		t.Errorf("bob sees %d notes, want 1", len(got))
	}
}

func TestReadAndDeleteForeignNote(t *testing.T) {
	repo := testRepo(t)
	n, err := repo.Create(context.Background(), alice.UserID, notes.Draft{Title: "secret"})
	if err != nil {
		t.Fatal(err)
	}

	bobSrv := testServer(t, repo, bob)
	for _, tool := range []string{"read_note", "delete_note"} {
		r := callTool(t, bobSrv, tool, map[string]interface{}{"id": n.ID})
		if !r.IsError || resultText(r) != "note not found" {
			t.Errorf("%s on foreign note = %q", tool, resultText(r))
		}
	}

	aliceSrv := testServer(t, repo, alice)
	r := callTool(t, aliceSrv, "delete_note", map[string]interface{}{"id": n.ID})
	if r.IsError {
		t.Fatalf("delete failed: %s", resultText(r))
	}
	r = callTool(t, aliceSrv, "read_note", map[string]interface{}{"id": n.ID})
	if !r.IsError {
		t.Error("expected not found after delete")
	}
}

func TestNoteContract(t *testing.T) {
	srv := testServer(t, testRepo(t), alice)
	r := callTool(t, srv, "get_note_contract", nil)
	if !strings.Contains(resultText(r), "version conflict") {
		t.Error("contract should explain version conflicts")
	}

	res, err := srv.readNoteFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].(mcp.TextResourceContents).URI != formatURI {
		t.Errorf("resource = %+v", res)
	}
}
