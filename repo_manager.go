package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	ConsumedTokens() ConsumedTokens
}

type mngr struct {
	db             *bun.DB
	users          Users
	consumedTokens ConsumedTokens
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:             db,
		users:          NewUsersRepository(db),
		consumedTokens: NewConsumedTokensRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.consumedTokens == nil {
		return errors.New("repository consumedTokens should be initialized")
	}

	return nil
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) ConsumedTokens() ConsumedTokens {
	return m.consumedTokens
}
