package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Tables lists the tables the portal schema owns, in creation order.
var Tables = []string{"users", "settings"}

// HasTable reports whether name exists in the connected database. The
// catalog query differs between SQLite and PostgreSQL.
func HasTable(ctx context.Context, db *bun.DB, name string) (bool, error) {
	var query string
	switch db.Dialect().Name() {
	case dialect.SQLite:
		query = "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	case dialect.PG:
		query = "SELECT count(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?"
	default:
		return false, fmt.Errorf("unsupported dialect %s", db.Dialect().Name())
	}

	var count int
	if err := db.QueryRowContext(ctx, query, name).Scan(&count); err != nil {
		return false, fmt.Errorf("look up table %s: %w", name, err)
	}
	return count > 0, nil
}
