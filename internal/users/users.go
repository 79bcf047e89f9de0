// Package users registers accounts and exchanges passwords for bearer
// credentials.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/auth"
	"github.com/starford/inkwell/internal/docstore"
)

// Namespace is the docstore namespace holding users.
const Namespace = "users"

const (
	minUsernameRunes = 3
	maxUsernameRunes = 128
	minPasswordBytes = 6
)

// dummyPasswordHash carries the same argon2 parameters as real hashes. Login
// verifies against it for unknown usernames so both paths cost the same.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=3,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity returns the caller identity a credential for u carries.
func (u *User) Identity() auth.Identity {
	return auth.Identity{UserID: u.ID, Username: u.Username, Role: u.Role}
}

// Session is the result of a successful register or login.
type Session struct {
	User      User
	Token     string
	ExpiresAt time.Time
}

// Service manages accounts.
type Service struct {
	docs   *docstore.Collection[User]
	issuer *auth.Issuer
	now    func() time.Time
	verify func(hash, password string) bool

	// registerMu serialises the uniqueness scan with the insert.
	registerMu sync.Mutex
}

// NewService builds the account service.
func NewService(docs *docstore.Collection[User], issuer *auth.Issuer) *Service {
	return &Service{
		docs:   docs,
		issuer: issuer,
		now:    func() time.Time { return time.Now().UTC() },
		verify: auth.VerifyPassword,
	}
}

func validateCredentials(username, password string) error {
	return validation.Errors{
		"username": validation.Validate(username,
			validation.Required,
			validation.RuneLength(minUsernameRunes, maxUsernameRunes),
			validation.By(noSurroundingSpace),
		),
		"password": validation.Validate(password,
			validation.Required,
			validation.Length(minPasswordBytes, auth.MaxPasswordBytes),
		),
	}.Filter()
}

func noSurroundingSpace(value interface{}) error {
	s, _ := value.(string)
	if s != strings.TrimSpace(s) {
		return errors.New("must not start or end with whitespace")
	}
	return nil
}

// Register creates a user with role "user" and returns a fresh session.
func (s *Service) Register(ctx context.Context, username, password string) (Session, error) {
	if err := validateCredentials(username, password); err != nil {
		return Session{}, apperr.Validation(err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("users: register: %w", err)
	}
	id, err := gonanoid.New()
	if err != nil {
		return Session{}, fmt.Errorf("users: register: id: %w", err)
	}
	u := User{
		ID:           "usr-" + id,
		Username:     username,
		PasswordHash: hash,
		Role:         auth.RoleUser,
		CreatedAt:    s.now(),
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	if _, found, err := s.findByUsername(ctx, username); err != nil {
		return Session{}, fmt.Errorf("users: register: %w", err)
	} else if found {
		return Session{}, apperr.ErrAlreadyExists
	}
	if err := s.docs.Set(ctx, u.ID, u); err != nil {
		return Session{}, fmt.Errorf("users: register: %w", err)
	}
	return s.session(u)
}

// Login checks the password and returns a fresh session. An unknown
// username and a wrong password produce the same error.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	u, found, err := s.findByUsername(ctx, username)
	if err != nil {
		return Session{}, fmt.Errorf("users: login: %w", err)
	}
	if !found {
		s.verify(dummyPasswordHash, password)
		return Session{}, apperr.ErrInvalidCredentials
	}
	if !s.verify(u.PasswordHash, password) {
		return Session{}, apperr.ErrInvalidCredentials
	}
	return s.session(u)
}

// ResetPassword replaces the password of username.
func (s *Service) ResetPassword(ctx context.Context, username, password string) error {
	if err := validateCredentials(username, password); err != nil {
		return apperr.Validation(err)
	}
	u, found, err := s.findByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("users: reset password: %w", err)
	}
	if !found {
		return apperr.ErrNotFound
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("users: reset password: %w", err)
	}
	_, err = s.docs.Mutate(ctx, u.ID, func(cur User, ok bool) (User, docstore.Op, error) {
		if !ok {
			return User{}, docstore.OpKeep, apperr.ErrNotFound
		}
		cur.PasswordHash = hash
		return cur, docstore.OpPut, nil
	})
	return err
}

// Get returns the user with the given id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	u, found, err := s.docs.Get(ctx, id)
	if err != nil {
		return User{}, fmt.Errorf("users: get: %w", err)
	}
	if !found {
		return User{}, apperr.ErrNotFound
	}
	return u, nil
}

// FindByUsername returns the user registered under username.
func (s *Service) FindByUsername(ctx context.Context, username string) (User, error) {
	u, found, err := s.findByUsername(ctx, username)
	if err != nil {
		return User{}, fmt.Errorf("users: find: %w", err)
	}
	if !found {
		return User{}, apperr.ErrNotFound
	}
	return u, nil
}

func (s *Service) findByUsername(ctx context.Context, username string) (User, bool, error) {
	if username == "" {
		return User{}, false, nil
	}
	matches, err := s.docs.Scan(ctx, func(u *User) bool { return u.Username == username })
	if err != nil || len(matches) == 0 {
		return User{}, false, err
	}
	return matches[0], true, nil
}

func (s *Service) session(u User) (Session, error) {
	token, exp, err := s.issuer.Issue(u.Identity())
	if err != nil {
		return Session{}, fmt.Errorf("users: issue token: %w", err)
	}
	return Session{User: u, Token: token, ExpiresAt: exp}, nil
}
