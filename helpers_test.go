package auth_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-auth-signup"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

var testDBSeq atomic.Int64

// newTestDB opens a private in memory sqlite database with the schema
// applied.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:authtest%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := auth.OpenDB(auth.DriverSQLite, dsn, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, auth.Migrate(context.Background(), db, testLogger{}))
	return db
}
