// Package auth turns bearer credentials into caller identities and issues
// those credentials to users who have proven their password.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/starford/inkwell/internal/apperr"
)

const (
	tokenIssuer   = "inkwell"
	tokenAudience = "inkwell-client"

	claimUsername = "username"
	claimRole     = "role"
)

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Gate validates bearer credentials. It never consults the user store: a
// token is trusted for its whole lifetime.
type Gate struct {
	key paseto.V4SymmetricKey
	now func() time.Time
}

// NewGate builds a gate accepting tokens encrypted with key.
func NewGate(key []byte) (*Gate, error) {
	k, err := symmetricKey(key)
	if err != nil {
		return nil, err
	}
	return &Gate{key: k, now: time.Now}, nil
}

// Authenticate decrypts and checks credential. Every failure matches
// apperr.ErrUnauthorized.
func (g *Gate) Authenticate(credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, fmt.Errorf("auth: %w: missing credential", apperr.ErrUnauthorized)
	}

	parser := paseto.NewParser()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.NotExpired())
	parser.AddRule(paseto.ValidAt(g.now()))

	token, err := parser.ParseV4Local(g.key, credential, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("auth: %w: %w", apperr.ErrUnauthorized, err)
	}

	var id Identity
	if id.UserID, err = token.GetSubject(); err != nil || id.UserID == "" {
		return Identity{}, fmt.Errorf("auth: %w: missing subject", apperr.ErrUnauthorized)
	}
	if id.Username, err = token.GetString(claimUsername); err != nil {
		return Identity{}, fmt.Errorf("auth: %w: missing username", apperr.ErrUnauthorized)
	}
	if id.Role, err = token.GetString(claimRole); err != nil {
		return Identity{}, fmt.Errorf("auth: %w: missing role", apperr.ErrUnauthorized)
	}
	return id, nil
}

// FromHeader authenticates an Authorization header value of the form
// "Bearer <token>".
func (g *Gate) FromHeader(value string) (Identity, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return Identity{}, fmt.Errorf("auth: %w: expected bearer credential", apperr.ErrUnauthorized)
	}
	return g.Authenticate(strings.TrimSpace(token))
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID != ""
}

var errKeySize = errors.New("auth: key must be 32 bytes")

func symmetricKey(key []byte) (paseto.V4SymmetricKey, error) {
	if len(key) != keyLength {
		return paseto.V4SymmetricKey{}, errKeySize
	}
	k, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return paseto.V4SymmetricKey{}, fmt.Errorf("auth: symmetric key: %w", err)
	}
	return k, nil
}
