package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/inkwell/internal/auth"
	"github.com/starford/inkwell/internal/docstore"
	"github.com/starford/inkwell/internal/notes"
	"github.com/starford/inkwell/internal/users"
)

// services are the domain components shared by the server and the CLI
// commands. All of them sit on one backend, which the caller must close.
type services struct {
	backend docstore.Backend
	notes   *notes.Repository
	users   *users.Service
	gate    *auth.Gate
	issuer  *auth.Issuer
}

func openServices(ctx context.Context, cfg *Config, noteOpts ...notes.Option) (_ *services, err error) {
	backend, err := docstore.OpenBackend(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}
	defer func() {
		if err != nil {
			_ = backend.Close()
		}
	}()

	noteDocs, err := docstore.Open[notes.Note](ctx, backend, notes.Namespace)
	if err != nil {
		return nil, fmt.Errorf("open notes: %w", err)
	}
	userDocs, err := docstore.Open[users.User](ctx, backend, users.Namespace)
	if err != nil {
		return nil, fmt.Errorf("open users: %w", err)
	}

	key, err := tokenKey(&cfg.Auth)
	if err != nil {
		return nil, err
	}
	gate, err := auth.NewGate(key)
	if err != nil {
		return nil, err
	}
	issuer, err := auth.NewIssuer(key, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	return &services{
		backend: backend,
		notes:   notes.NewRepository(noteDocs, noteOpts...),
		users:   users.NewService(userDocs, issuer),
		gate:    gate,
		issuer:  issuer,
	}, nil
}

func (s *services) Close() error {
	return s.backend.Close()
}

func tokenKey(cfg *AuthConfig) ([]byte, error) {
	if cfg.TokenKey != "" {
		return auth.ParseKeyHex(cfg.TokenKey)
	}
	key, err := auth.LoadOrGenerateKey(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("load token key: %w", err)
	}
	return key, nil
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	var out io.Writer = os.Stdout
	if app.logOutput != nil {
		out = app.logOutput
	}
	app.logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(app.logger)
	return app, nil
}
