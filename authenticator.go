package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type LoginMessage struct {
	Email    string `json:"email" example:"user@example.com" doc:"Account email"`
	Password string `json:"password" example:"some_secret_word" doc:"Password"`
}

func (e LoginMessage) Type() string { return "auth.login" }

type LoginResult struct {
	Token     string
	UserID    uuid.UUID
	Email     string
	ExpiresAt time.Time
}

// Auther logs users in and turns session tokens back into sessions
type Auther struct {
	provider   IdentityProvider
	tokens     TokenService
	sessionTTL time.Duration
	logger     Logger
}

var _ Authenticator = (*Auther)(nil)

// NewAuther builds an authenticator over the credential store in deps
func NewAuther(deps Dependencies) *Auther {
	deps = deps.withDefaults()
	return &Auther{
		provider:   NewUserProvider(deps.Repo.Users(), deps.Hasher).WithLogger(deps.Logger),
		tokens:     deps.Tokens,
		sessionTTL: deps.SessionTTL,
		logger:     deps.Logger,
	}
}

// NewAuthenticator returns an authenticator for a custom identity provider
func NewAuthenticator(provider IdentityProvider, tokens TokenService, sessionTTL time.Duration) *Auther {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTokenTTL
	}
	return &Auther{
		provider:   provider,
		tokens:     tokens,
		sessionTTL: sessionTTL,
		logger:     defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Login checks the credentials and issues a session token
func (s *Auther) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	msg := LoginMessage{Email: email, Password: password}

	select {
	case <-ctx.Done():
		return nil, cancelledError(ctx, msg.Type())
	default:
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	identity, err := s.provider.VerifyIdentity(ctx, NormalizeEmail(email), password)
	if err != nil {
		s.logger.Debug("login rejected: %v", err)
		return nil, finalizeError(err, "failed to verify identity")
	}

	userID, err := uuid.Parse(identity.ID())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "identity has an invalid id")
	}

	token, expiresAt, err := MintUserToken(s.tokens, PurposeSession, userID, s.sessionTTL)
	if err != nil {
		return nil, finalizeError(err, "failed to issue session token")
	}

	s.logger.Info("user %s logged in", userID)

	return &LoginResult{
		Token:     token,
		UserID:    userID,
		Email:     identity.Email(),
		ExpiresAt: expiresAt,
	}, nil
}

// SessionFromToken verifies a session token
func (s Auther) SessionFromToken(raw string) (Session, error) {
	claims, err := s.tokens.Validate(raw)
	if err != nil {
		s.logger.Debug("SessionFromToken validation failed: %v", err)
		return nil, err
	}

	return sessionFromAuthClaims(claims)
}
