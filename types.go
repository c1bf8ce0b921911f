package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Session holds attributes that are part of an auth session
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetExpiresAt() *time.Time
	GetData() map[string]any
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	SessionFromToken(token string) (Session, error)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	// GetSigningKeyFor returns the key used for the given token purpose,
	// an empty value means the shared signing key is used.
	GetSigningKeyFor(purpose TokenPurpose) string
	GetSealKey() string
	GetIssuer() string
	GetSignupTokenTTL() time.Duration
	GetResetTokenTTL() time.Duration
	GetSessionTokenTTL() time.Duration
	GetPasswordCost() int
	GetContextKey() string
	GetAuthScheme() string
	GetUseHashid() bool
}

// CredentialStore persists user records keyed by a unique email
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// Mailer delivers a message to a single recipient. The call blocks until the
// transport accepts or rejects the message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
