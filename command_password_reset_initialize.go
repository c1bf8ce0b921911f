package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type InitializePasswordResetMessage struct {
	Email string `json:"email" example:"pepe.rone@example.com" doc:"Account email"`
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResult struct {
	Email     string
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// InitializePasswordResetHandler mails a single use reset token to an
// existing account.
type InitializePasswordResetHandler struct {
	deps Dependencies
}

func NewInitializePasswordResetHandler(deps Dependencies) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{deps: deps.withDefaults()}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) (*InitializePasswordResetResult, error) {
	select {
	case <-ctx.Done():
		return nil, cancelledError(ctx, event.Type())
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) (*InitializePasswordResetResult, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	email := NormalizeEmail(event.Email)

	user, err := h.deps.Repo.Users().FindByEmail(ctx, email)
	if err != nil {
		if HasTextCode(err, TextCodeIdentityNotFound) {
			return nil, ErrNoSuchUser
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up email")
	}

	token, expiresAt, err := MintUserToken(h.deps.Tokens, PurposeReset, user.ID, h.deps.ResetTTL)
	if err != nil {
		return nil, finalizeError(err, "failed to issue reset token")
	}

	subject, body, err := h.deps.Composer.PasswordReset(email, token, h.deps.ResetTTL)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render password reset mail")
	}

	if err := h.deps.Mailer.Send(ctx, email, subject, body); err != nil {
		h.deps.Logger.Error("password reset mail to %s failed: %v", email, err)
		return nil, ErrDeliveryFailed
	}

	h.deps.Logger.Info("password reset requested for user %s", user.ID)

	return &InitializePasswordResetResult{
		Email:     email,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	}, nil
}
