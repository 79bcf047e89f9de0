package api

import (
	"time"

	"github.com/starford/inkwell/internal/notes"
	"github.com/starford/inkwell/internal/users"
)

// RegisterRequest is the request body for creating an account. Email is
// accepted in place of Username for clients that post {email, password}.
type RegisterRequest struct {
	Username string `json:"username,omitempty" example:"alice" validate:"required,min=3,max=128"`
	Email    string `json:"email,omitempty" example:"alice@example.com"`
	Password string `json:"password" example:"correct horse" validate:"required,min=6,max=1024"`
}

func (r *RegisterRequest) normalize() {
	if r.Username == "" {
		r.Username = r.Email
	}
}

// LoginRequest is the request body for exchanging a password for a token.
type LoginRequest struct {
	Username string `json:"username,omitempty" example:"alice" validate:"required"`
	Email    string `json:"email,omitempty" example:"alice@example.com"`
	Password string `json:"password" validate:"required,max=1024"`
}

func (r *LoginRequest) normalize() {
	if r.Username == "" {
		r.Username = r.Email
	}
}

// UserDTO is the public view of an account.
type UserDTO struct {
	ID        string    `json:"id" example:"usr-V1StGXR8_Z5jdHi6B-myT"`
	Username  string    `json:"username" example:"alice"`
	Role      string    `json:"role" example:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserDTO   `json:"user"`
}

func sessionResponse(s users.Session) SessionResponse {
	return SessionResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		User: UserDTO{
			ID:        s.User.ID,
			Username:  s.User.Username,
			Role:      s.User.Role,
			CreatedAt: s.User.CreatedAt,
		},
	}
}

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title   string   `json:"title" example:"Hello" validate:"required"`
	Content string   `json:"content" example:"World"`
	Tags    []string `json:"tags" example:"go,notes" validate:"max=50"`
}

// UpdateNoteRequest is the request body for a partial update. Absent (or
// null) fields keep their stored value. Version may instead be sent in the
// If-Match header.
type UpdateNoteRequest struct {
	Title   *string   `json:"title,omitempty"`
	Content *string   `json:"content,omitempty"`
	Tags    *[]string `json:"tags,omitempty" validate:"omitempty,max=50"`
	Version *int64    `json:"version,omitempty" example:"3" validate:"omitempty,gte=1"`
}

// NoteResponse wraps a single note.
type NoteResponse struct {
	Note notes.Note `json:"note"`
}

// NoteListResponse wraps list and search results.
type NoteListResponse struct {
	Notes []notes.Note `json:"notes"`
}
