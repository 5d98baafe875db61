// Package dbtest opens in-memory SQLite databases carrying the service
// schema, for store and ledger tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-ticket-lifecycle/internal/models"
)

// New returns a fresh database closed at test cleanup. A single connection
// keeps every query on the same in-memory database.
func New(t testing.TB) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Event)(nil),
		(*models.Ticket)(nil),
		(*models.CheckIn)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}
	return bunDB
}
