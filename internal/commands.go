package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/inkwell/internal/markdown"
	"github.com/starford/inkwell/internal/mcpserver"
	"github.com/starford/inkwell/internal/notes"
)

// RunMCP serves the notes of the token's owner over MCP stdio until stdin
// closes. Logs must not go to stdout here; pass WithLogOutput(os.Stderr).
func RunMCP(ctx context.Context, token string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	svc, err := openServices(ctx, app.config)
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}
	defer svc.Close()

	id, err := svc.gate.Authenticate(token)
	if err != nil {
		return err
	}
	app.logger.Info("MCP server starting", slog.String("user_id", id.UserID))
	return mcpserver.New(svc.notes, id, app.logger).ServeStdio()
}

// ResetPassword sets a new password for username.
func ResetPassword(ctx context.Context, username, password string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	svc, err := openServices(ctx, app.config)
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}
	defer svc.Close()

	if err := svc.users.ResetPassword(ctx, username, password); err != nil {
		return err
	}
	app.logger.Info("password reset", slog.String("username", username))
	return nil
}

// Export writes every note of username to dir as <id>.md and returns how many
// were written.
func Export(ctx context.Context, username, dir string, opts ...Option) (int, error) {
	app, err := newApplication(opts)
	if err != nil {
		return 0, err
	}
	svc, err := openServices(ctx, app.config)
	if err != nil {
		return 0, fmt.Errorf("init services: %w", err)
	}
	defer svc.Close()

	u, err := svc.users.FindByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	list, err := svc.notes.List(ctx, u.ID)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create export dir: %w", err)
	}
	for _, n := range list {
		data, err := markdown.Render(n)
		if err != nil {
			return 0, fmt.Errorf("render %s: %w", n.ID, err)
		}
		if err := os.WriteFile(filepath.Join(dir, n.ID+".md"), data, 0o644); err != nil {
			return 0, fmt.Errorf("write %s: %w", n.ID, err)
		}
	}
	app.logger.Info("notes exported",
		slog.String("username", username), slog.Int("count", len(list)), slog.String("dir", dir))
	return len(list), nil
}

// Import creates a new note for username from every .md file in dir, in name
// order. Files are always created as new notes; ids and versions in their
// headers are ignored. It stops at the first invalid file and returns the
// number created so far.
func Import(ctx context.Context, username, dir string, opts ...Option) (int, error) {
	app, err := newApplication(opts)
	if err != nil {
		return 0, err
	}
	svc, err := openServices(ctx, app.config)
	if err != nil {
		return 0, fmt.Errorf("init services: %w", err)
	}
	defer svc.Close()

	u, err := svc.users.FindByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	return importDir(ctx, svc.notes, u.ID, dir)
}

func importDir(ctx context.Context, repo *notes.Repository, uid, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read import dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	created := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return created, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		doc, err := markdown.Parse(data)
		if err != nil {
			return created, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		draft := doc.Draft()
		if draft.Title == "" {
			draft.Title = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		}
		if _, err := repo.Create(ctx, uid, draft); err != nil {
			return created, fmt.Errorf("import %s: %w", e.Name(), err)
		}
		created++
	}
	return created, nil
}
