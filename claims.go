package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose scopes a token to the flow that minted it. It is also used as
// the JWT key id so each purpose can be signed with its own key.
type TokenPurpose string

const (
	PurposeSignup  TokenPurpose = "signup"
	PurposeReset   TokenPurpose = "reset"
	PurposeSession TokenPurpose = "session"
)

func (p TokenPurpose) String() string {
	return string(p)
}

// Valid reports whether p is one of the known purposes
func (p TokenPurpose) Valid() bool {
	switch p {
	case PurposeSignup, PurposeReset, PurposeSession:
		return true
	}
	return false
}

// AuthClaims is the read side of a verified token
type AuthClaims interface {
	Subject() string
	UserID() string
	Purpose() TokenPurpose
	TokenID() string
	Expires() time.Time
	IssuedAt() time.Time
}

// TokenClaims is the payload shared by signup, reset and session tokens.
// Signup tokens carry the email and the password, either in clear or
// sealed. Reset and session tokens carry only the user id.
type TokenClaims struct {
	jwt.RegisteredClaims
	Scope          TokenPurpose `json:"pur"`
	UID            string       `json:"uid,omitempty"`
	Email          string       `json:"email,omitempty"`
	Password       string       `json:"pwd,omitempty"`
	SealedPassword string       `json:"pwd_sealed,omitempty"`
}

var _ AuthClaims = (*TokenClaims)(nil)

// Subject returns the subject claim
func (c *TokenClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *TokenClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

func (c *TokenClaims) Purpose() TokenPurpose {
	return c.Scope
}

func (c *TokenClaims) TokenID() string {
	return c.ID
}

// Expires returns the expiration time
func (c *TokenClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAt returns the issued at time
func (c *TokenClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}
