package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/inkwell/internal/auth"
	"github.com/starford/inkwell/internal/notes"
)

// NoteStore is the part of the note repository the handlers need.
type NoteStore interface {
	List(ctx context.Context, uid string) ([]notes.Note, error)
	Search(ctx context.Context, uid string, q notes.Query) ([]notes.Note, error)
	Get(ctx context.Context, uid, id string) (notes.Note, error)
	Create(ctx context.Context, uid string, d notes.Draft) (notes.Note, error)
	Update(ctx context.Context, uid, id string, p notes.Patch) (notes.Note, error)
	Delete(ctx context.Context, uid, id string) error
}

// Handler holds the note route handlers.
type Handler struct {
	notes    NoteStore
	validate *requestValidator
	logger   *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(store NoteStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{notes: store, validate: newRequestValidator(), logger: logger}
}

// ListNotes handles GET /api/notes.
//
//	@Summary	List the caller's notes
//	@Tags		notes
//	@Produce	json
//	@Success	200	{object}	NoteListResponse
//	@Security	BearerAuth
//	@Router		/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.caller(w, r)
	if !ok {
		return
	}
	items, err := h.notes.List(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items})
}

// Search handles GET /api/notes/search.
//
//	@Summary	Search the caller's notes by text and tags
//	@Tags		notes
//	@Produce	json
//	@Param		query	query		string	false	"Case-insensitive text in title or content (alias q)"
//	@Param		tags	query		string	false	"Comma list or JSON array; a note matches when it has any of them"
//	@Success	200		{object}	NoteListResponse
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	id, ok := h.caller(w, r)
	if !ok {
		return
	}
	tags, err := parseTags(r.URL.Query()["tags"])
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	text := r.URL.Query().Get("query")
	if text == "" {
		text = r.URL.Query().Get("q")
	}
	items, err := h.notes.Search(r.Context(), id.UserID, notes.Query{Text: text, Tags: tags})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary	Get a single note
//	@Tags		notes
//	@Produce	json
//	@Param		id	path		string	true	"Note ID"
//	@Success	200	{object}	NoteResponse
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.caller(w, r)
	if !ok {
		return
	}
	n, err := h.notes.Get(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	setETag(w, n.Version)
	writeJSON(w, http.StatusOK, NoteResponse{Note: n})
}

// CreateNote handles POST /api/notes.
//
//	@Summary	Create a note
//	@Tags		notes
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CreateNoteRequest	true	"Note to create"
//	@Success	201		{object}	NoteResponse
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req CreateNoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	n, err := h.notes.Create(r.Context(), id.UserID, notes.Draft{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	setETag(w, n.Version)
	writeJSON(w, http.StatusCreated, NoteResponse{Note: n})
}

// UpdateNote handles PUT and PATCH /api/notes/{id}.
//
//	@Summary	Partially update a note
//	@Tags		notes
//	@Accept		json
//	@Produce	json
//	@Param		id			path		string				true	"Note ID"
//	@Param		If-Match	header		string				false	"Expected version, when not in the body"
//	@Param		body		body		UpdateNoteRequest	true	"Fields to change"
//	@Success	200			{object}	NoteResponse
//	@Failure	400			{object}	errResponse
//	@Failure	404			{object}	errResponse
//	@Failure	409			{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{id} [patch]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req UpdateNoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	var version int64
	if req.Version != nil {
		version = *req.Version
	} else if v, present, err := ifMatchVersion(r); err != nil {
		badRequest(w, err.Error())
		return
	} else if present {
		version = v
	}
	n, err := h.notes.Update(r.Context(), id.UserID, chi.URLParam(r, "id"), notes.Patch{
		Title:           req.Title,
		Content:         req.Content,
		Tags:            req.Tags,
		ExpectedVersion: version,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	setETag(w, n.Version)
	writeJSON(w, http.StatusOK, NoteResponse{Note: n})
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary	Delete a note
//	@Tags		notes
//	@Param		id	path	string	true	"Note ID"
//	@Success	204
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.notes.Delete(r.Context(), id.UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
	}
	return id, ok
}

// decode reads and shape-checks a request body, writing the error response
// itself when it fails.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decodeAndValidate(w, r, h.logger, h.validate, dst)
}

// normalizer is implemented by requests that resolve field aliases after
// decoding.
type normalizer interface{ normalize() }

func decodeAndValidate(w http.ResponseWriter, r *http.Request, logger *slog.Logger, rv *requestValidator, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeError(w, r, logger, err)
		} else {
			badRequest(w, err.Error())
		}
		return false
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	if err := rv.Validate(dst); err != nil {
		writeError(w, r, logger, err)
		return false
	}
	return true
}

func setETag(w http.ResponseWriter, version int64) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(version, 10)))
}

// ifMatchVersion reads the expected version from an If-Match header such as
// `"3"` or `W/"3"`.
func ifMatchVersion(r *http.Request) (int64, bool, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" {
		return 0, false, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, errors.New("If-Match must hold a note version")
	}
	return v, true, nil
}

// parseTags accepts repeated tags parameters, each either a comma list or a
// JSON array of strings. Empty entries are dropped.
func parseTags(values []string) ([]string, error) {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "[") {
			var arr []string
			if err := json.Unmarshal([]byte(v), &arr); err != nil {
				return nil, errors.New("tags must be a comma list or a JSON array of strings")
			}
			for _, t := range arr {
				if t = strings.TrimSpace(t); t != "" {
					out = append(out, t)
				}
			}
			continue
		}
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out, nil
}
