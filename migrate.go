package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Migrate applies the embedded schema migrations for the dialect of db.
func Migrate(ctx context.Context, db *bun.DB, logger Logger) error {
	if logger == nil {
		logger = defLogger{}
	}

	name := db.Dialect().Name()

	gooseDialect := goose.DialectSQLite3
	if name == dialect.PG {
		gooseDialect = goose.DialectPostgres
	}

	fsys, err := GetDialectMigrationsFS(name.String())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load migrations")
	}

	provider, err := goose.NewProvider(gooseDialect, db.DB, fsys)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create migration provider")
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply migrations")
	}

	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		logger.Info("applied migration %s in %s", res.Source.Path, res.Duration)
	}

	return nil
}
