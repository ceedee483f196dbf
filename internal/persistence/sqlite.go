package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// OpenSQLite opens (or creates) the database at dbPath, enables foreign
// keys and applies pending migrations. ":memory:" yields a private
// in-memory database.
func OpenSQLite(ctx context.Context, dbPath string, logger *zap.Logger) (*sqlx.DB, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_time_format=sqlite"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection: an in-memory database exists per connection, and a
	// single writer avoids SQLITE_BUSY on the file.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if dbPath != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	applied, err := MigrateSQLite(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if logger != nil {
		logger.Info("sqlite ready", zap.String("path", dbPath), zap.Int("migrations_applied", applied))
	}
	return db, nil
}
