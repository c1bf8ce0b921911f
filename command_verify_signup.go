package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type VerifySignupMessage struct {
	Token string `json:"token" doc:"Signup token received by email"`
}

func (e VerifySignupMessage) Type() string { return "auth.signup.verify" }

type VerifyOutcome string

const (
	VerifyCreated           VerifyOutcome = "created"
	VerifyAlreadyRegistered VerifyOutcome = "already_registered"
)

type VerifySignupResult struct {
	Outcome VerifyOutcome
	UserID  uuid.UUID
	Email   string
}

// VerifySignupHandler redeems a signup token and creates the user. Two
// concurrent redemptions race on the unique email index and the loser
// reports VerifyAlreadyRegistered.
type VerifySignupHandler struct {
	deps Dependencies
}

func NewVerifySignupHandler(deps Dependencies) *VerifySignupHandler {
	return &VerifySignupHandler{deps: deps.withDefaults()}
}

func (h *VerifySignupHandler) Execute(ctx context.Context, event VerifySignupMessage) (*VerifySignupResult, error) {
	select {
	case <-ctx.Done():
		return nil, cancelledError(ctx, event.Type())
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifySignupHandler) execute(ctx context.Context, event VerifySignupMessage) (*VerifySignupResult, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	payload, err := DecodeSignupToken(h.deps.Tokens, h.deps.Sealer, event.Token)
	if err != nil {
		h.deps.Logger.Debug("signup token rejected: %v", err)
		return nil, ErrInvalidToken
	}

	if len(payload.Password) > MaxPasswordBytes {
		h.deps.Logger.Debug("signup token carries a password longer than %d bytes", MaxPasswordBytes)
		return nil, ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	email := NormalizeEmail(payload.Email)
	already := &VerifySignupResult{Outcome: VerifyAlreadyRegistered, Email: email}

	_, err = h.deps.Repo.Users().FindByEmail(ctx, email)
	switch {
	case err == nil:
		return already, nil
	case !HasTextCode(err, TextCodeIdentityNotFound):
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up email")
	}

	hash, err := h.deps.Hasher.HashPassword(payload.Password)
	if err != nil {
		return nil, finalizeError(err, "failed to hash password")
	}

	user := &User{
		Email:        email,
		PasswordHash: hash,
	}
	if h.deps.UserID != nil {
		id, err := h.deps.UserID(email)
		if err != nil {
			h.deps.Logger.Warn("could not derive user id for %s, using a random one: %v", email, err)
		} else {
			user.ID = id
		}
	}

	user, err = h.deps.Repo.Users().Insert(ctx, user)
	if err != nil {
		if HasTextCode(err, TextCodeDuplicateEmail) {
			return already, nil
		}
		return nil, finalizeError(err, "could not create user")
	}

	h.deps.Logger.Info("user %s registered for %s", user.ID, email)

	return &VerifySignupResult{
		Outcome: VerifyCreated,
		UserID:  user.ID,
		Email:   user.Email,
	}, nil
}
