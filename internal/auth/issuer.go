package auth

import (
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultTokenTTL is how long issued credentials stay valid.
const DefaultTokenTTL = 24 * time.Hour

// Issuer mints bearer credentials for authenticated users.
type Issuer struct {
	key paseto.V4SymmetricKey
	ttl time.Duration
	now func() time.Time
}

// NewIssuer builds an issuer whose tokens are accepted by a Gate sharing key.
// A non-positive ttl selects DefaultTokenTTL.
func NewIssuer(key []byte, ttl time.Duration) (*Issuer, error) {
	k, err := symmetricKey(key)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{key: k, ttl: ttl, now: time.Now}, nil
}

// Issue returns a v4.local token for id and its expiry time.
func (i *Issuer) Issue(id Identity) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetAudience(tokenAudience)
	token.SetSubject(id.UserID)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(exp)

	jti, err := gonanoid.New()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: token id: %w", err)
	}
	token.SetJti(jti)

	//nolint:errcheck // Set only fails for values that cannot be JSON encoded
	_ = token.Set(claimUsername, id.Username)
	//nolint:errcheck
	_ = token.Set(claimRole, id.Role)

	return token.V4Encrypt(i.key, nil), exp, nil
}
