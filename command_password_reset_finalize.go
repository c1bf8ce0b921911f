package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token     string `json:"token" doc:"Reset password token"`
	Password1 string `json:"password1" example:"some_secret_word" doc:"New password"`
	Password2 string `json:"password2" example:"some_secret_word" doc:"New password confirmation"`
}

func (e FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

type FinalizePasswordResetResult struct {
	UserID uuid.UUID
}

// FinalizePasswordResetHandler redeems a reset token. The token id is
// recorded in the consumed tokens table in the same transaction that writes
// the new hash, so a token changes the password at most once.
type FinalizePasswordResetHandler struct {
	deps Dependencies
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(deps Dependencies) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{deps: deps.withDefaults()}
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) (*FinalizePasswordResetResult, error) {
	select {
	case <-ctx.Done():
		return nil, cancelledError(ctx, event.Type())
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) (*FinalizePasswordResetResult, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	if event.Password1 != event.Password2 {
		return nil, ErrPasswordMismatch
	}

	userID, claims, err := DecodeUserToken(h.deps.Tokens, PurposeReset, event.Token)
	if err != nil {
		h.deps.Logger.Debug("reset token rejected: %v", err)
		return nil, ErrInvalidToken
	}

	tokenID, err := uuid.Parse(claims.TokenID())
	if err != nil {
		return nil, ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if _, err := h.deps.Repo.Users().FindByID(ctx, userID); err != nil {
		if HasTextCode(err, TextCodeIdentityNotFound) {
			return nil, ErrNoSuchUser
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
	}

	passwordHash, err := h.deps.Hasher.HashPassword(event.Password1)
	if err != nil {
		return nil, finalizeError(err, "failed to hash password")
	}

	now := h.deps.Now().UTC()

	err = h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		consumed := &ConsumedToken{
			ID:         tokenID,
			Purpose:    PurposeReset,
			UserID:     &userID,
			ExpiresAt:  claims.Expires().UTC(),
			ConsumedAt: now,
		}

		if err := h.deps.Repo.ConsumedTokens().ConsumeTx(ctx, tx, consumed); err != nil {
			if HasTextCode(err, TextCodeTokenConsumed) {
				return ErrInvalidToken
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record consumed token")
		}

		if err := h.deps.Repo.Users().UpdatePasswordTx(ctx, tx, userID, passwordHash); err != nil {
			if HasTextCode(err, TextCodeIdentityNotFound) {
				return ErrNoSuchUser
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
		}

		return nil
	})

	if err != nil {
		return nil, finalizeError(err, "failed to finalize password reset")
	}

	h.deps.Logger.Info("password updated for user %s", userID)

	h.pruneConsumedTokens(ctx, now)

	return &FinalizePasswordResetResult{UserID: userID}, nil
}

// pruneConsumedTokens drops denylist rows for tokens that can no longer
// verify. Failures are logged only.
func (h *FinalizePasswordResetHandler) pruneConsumedTokens(ctx context.Context, now time.Time) {
	err := h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		n, err := h.deps.Repo.ConsumedTokens().PruneExpiredTx(ctx, tx, now)
		if err == nil && n > 0 {
			h.deps.Logger.Debug("pruned %d expired consumed tokens", n)
		}
		return err
	})
	if err != nil {
		h.deps.Logger.Warn("failed to prune consumed tokens: %v", err)
	}
}
