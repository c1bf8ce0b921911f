package auth

import (
	"database/sql"

	goerrors "github.com/goliatone/go-errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// OpenDB opens a bun database for driver, sqlite or postgres. Debug adds a
// verbose query logger.
func OpenDB(driver, dsn string, debug bool) (*bun.DB, error) {
	var db *bun.DB

	switch driver {
	case DriverPostgres:
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open postgres")
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	case DriverSQLite, "":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite")
		}
		// a single connection keeps in memory databases alive and
		// serializes writers
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, goerrors.New("unsupported database driver", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"driver": driver})
	}

	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "database is unreachable")
	}

	return db, nil
}
