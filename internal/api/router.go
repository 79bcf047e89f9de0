package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Deps are the collaborators the router is assembled from. Events and
// AuthLimiter may be nil.
type Deps struct {
	Notes       NoteStore
	Accounts    Accounts
	Gate        Authenticator
	Events      http.Handler
	AuthLimiter Limiter
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter creates a chi router with all API routes mounted. Everything
// except /health and the account endpoints requires a bearer token.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d.Notes, d.Logger)
	ah := NewAuthHandler(d.Accounts, d.Logger)

	r := chi.NewRouter()
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "If-Match"},
			ExposedHeaders:   []string{"ETag"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		if d.AuthLimiter != nil {
			r.Use(RateLimit(d.AuthLimiter))
		}
		r.Post("/register", ah.Register)
		r.Post("/login", ah.Login)
		r.With(RequireIdentity(d.Gate)).Get("/me", ah.Me)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireIdentity(d.Gate))

		r.Get("/notes", h.ListNotes)
		r.Post("/notes", h.CreateNote)
		r.Get("/notes/search", h.Search)
		r.Get("/notes/{id}", h.GetNote)
		r.Put("/notes/{id}", h.UpdateNote)
		r.Patch("/notes/{id}", h.UpdateNote)
		r.Delete("/notes/{id}", h.DeleteNote)

		if d.Events != nil {
			r.Get("/events", d.Events.ServeHTTP)
		}
	})

	return r
}
