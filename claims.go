package users

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is the decoded payload of a signed bearer credential: the id of
// the token record minted at login plus the id of the user it binds to.
type AuthClaims interface {
	Subject() string
	TokenID() string
	UserID() string
	Expires() time.Time
	IssuedAt() time.Time
}

// APIClaims is the concrete claims implementation. The token record id rides
// in the registered jti claim, the user id in both sub and uid. Metadata is
// the only extension field decorators may populate.
type APIClaims struct {
	jwt.RegisteredClaims
	UID      string         `json:"uid,omitempty"`
	Metadata map[string]any `json:"meta,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*APIClaims)(nil)

// Subject returns the subject claim
func (c *APIClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// TokenID returns the id of the token record this credential was minted
// against (the jti claim).
func (c *APIClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

// UserID returns the user id
func (c *APIClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Expires returns the expiration time
func (c *APIClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *APIClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
