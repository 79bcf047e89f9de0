package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/starford/inkwell/internal/auth"
	"github.com/starford/inkwell/internal/users"
)

// Accounts registers users and exchanges passwords for tokens.
type Accounts interface {
	Register(ctx context.Context, username, password string) (users.Session, error)
	Login(ctx context.Context, username, password string) (users.Session, error)
}

// AuthHandler serves the public account endpoints.
type AuthHandler struct {
	accounts Accounts
	validate *requestValidator
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts Accounts, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{accounts: accounts, validate: newRequestValidator(), logger: logger}
}

// Register handles POST /api/auth/register.
//
//	@Summary	Create an account and return a token
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		RegisterRequest	true	"Credentials"
//	@Success	201		{object}	SessionResponse
//	@Failure	400		{object}	errResponse
//	@Failure	409		{object}	errResponse
//	@Router		/auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, h.logger, h.validate, &req) {
		return
	}
	s, err := h.accounts.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("user registered", slog.String("user_id", s.User.ID))
	writeJSON(w, http.StatusCreated, sessionResponse(s))
}

// Login handles POST /api/auth/login.
//
//	@Summary	Exchange a password for a token
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		LoginRequest	true	"Credentials"
//	@Success	200		{object}	SessionResponse
//	@Failure	401		{object}	errResponse
//	@Router		/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, h.logger, h.validate, &req) {
		return
	}
	s, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(s))
}

// Me handles GET /api/auth/me.
//
//	@Summary	Describe the authenticated caller
//	@Tags		auth
//	@Produce	json
//	@Success	200	{object}	auth.Identity
//	@Security	BearerAuth
//	@Router		/auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}
	writeJSON(w, http.StatusOK, id)
}
