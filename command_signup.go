package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type SignupMessage struct {
	Email    string `json:"email" example:"user@example.com" doc:"Account email"`
	Password string `json:"password" example:"some_secret_word" doc:"Password"`
}

func (e SignupMessage) Type() string { return "auth.signup" }

type SignupOutcome string

const (
	SignupVerificationSent  SignupOutcome = "verification_sent"
	SignupAlreadyRegistered SignupOutcome = "already_registered"
)

type SignupResult struct {
	Outcome   SignupOutcome
	Email     string
	ExpiresAt time.Time
}

// SignupHandler mails a signup token to a new email. No user record is
// written until the token comes back through VerifySignupHandler.
type SignupHandler struct {
	deps Dependencies
}

func NewSignupHandler(deps Dependencies) *SignupHandler {
	return &SignupHandler{deps: deps.withDefaults()}
}

func (h *SignupHandler) Execute(ctx context.Context, event SignupMessage) (*SignupResult, error) {
	select {
	case <-ctx.Done():
		return nil, cancelledError(ctx, event.Type())
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignupHandler) execute(ctx context.Context, event SignupMessage) (*SignupResult, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	email := NormalizeEmail(event.Email)

	_, err := h.deps.Repo.Users().FindByEmail(ctx, email)
	switch {
	case err == nil:
		return &SignupResult{Outcome: SignupAlreadyRegistered, Email: email}, nil
	case !HasTextCode(err, TextCodeIdentityNotFound):
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up email")
	}

	token, expiresAt, err := MintSignupToken(h.deps.Tokens, h.deps.Sealer, email, event.Password, h.deps.SignupTTL)
	if err != nil {
		return nil, finalizeError(err, "failed to issue signup token")
	}

	subject, body, err := h.deps.Composer.Verification(email, token, h.deps.SignupTTL)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render verification mail")
	}

	if err := h.deps.Mailer.Send(ctx, email, subject, body); err != nil {
		h.deps.Logger.Error("signup verification mail to %s failed: %v", email, err)
		return nil, ErrDeliveryFailed
	}

	h.deps.Logger.Info("signup verification sent to %s", email)

	return &SignupResult{
		Outcome:   SignupVerificationSent,
		Email:     email,
		ExpiresAt: expiresAt,
	}, nil
}
