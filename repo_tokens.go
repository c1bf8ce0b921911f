package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConsumedTokens is the denylist of redeemed single use tokens
type ConsumedTokens interface {
	repository.Repository[*ConsumedToken]

	// ConsumeTx records the token, ErrTokenConsumed if it was already recorded
	ConsumeTx(ctx context.Context, tx bun.IDB, record *ConsumedToken) error
	IsConsumed(ctx context.Context, id uuid.UUID) (bool, error)
	// PruneExpiredTx drops rows whose token can no longer verify
	PruneExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error)
}

type consumedTokens struct {
	repository.Repository[*ConsumedToken]
	db *bun.DB
}

var _ ConsumedTokens = (*consumedTokens)(nil)

func NewConsumedTokensRepository(db *bun.DB) ConsumedTokens {
	repo := repository.NewRepository[*ConsumedToken](db, repository.ModelHandlers[*ConsumedToken]{
		NewRecord: func() *ConsumedToken { return &ConsumedToken{} },
		GetID: func(record *ConsumedToken) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *ConsumedToken, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &consumedTokens{
		Repository: repo,
		db:         db,
	}
}

func (c *consumedTokens) ConsumeTx(ctx context.Context, tx bun.IDB, record *ConsumedToken) error {
	if record == nil || record.ID == uuid.Nil {
		return ErrTokenMalformed
	}

	if record.ConsumedAt.IsZero() {
		record.ConsumedAt = time.Now()
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if IsUniqueViolation(err) {
			return ErrTokenConsumed
		}
		return err
	}
	return nil
}

func (c *consumedTokens) IsConsumed(ctx context.Context, id uuid.UUID) (bool, error) {
	return c.db.NewSelect().
		Model((*ConsumedToken)(nil)).
		Where("?TableAlias.id = ?", id).
		Exists(ctx)
}

func (c *consumedTokens) PruneExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error) {
	res, err := tx.NewDelete().
		Model((*ConsumedToken)(nil)).
		Where("expires_at < ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
