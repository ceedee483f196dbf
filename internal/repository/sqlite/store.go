// Package sqlite implements repository.Store on an embedded SQLite database
// through sqlx. It backs STORE_DRIVER=sqlite deployments and the test suite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/spec-kit/issue-engine/internal/repository"
)

// Store is the SQLite-backed repository.Store.
type Store struct {
	db   *sqlx.DB
	ext  sqlx.ExtContext
	inTx bool
}

// NewStore wraps a migrated database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, ext: db}
}

func (s *Store) Issues() repository.IssueRepository {
	return &issueRepository{db: s.ext}
}

func (s *Store) Assignments() repository.AssignmentRepository {
	return &assignmentRepository{db: s.ext}
}

func (s *Store) Users() repository.UserRepository {
	return &userRepository{db: s.ext}
}

func (s *Store) Notifications() repository.NotificationRepository {
	return &notificationRepository{db: s.ext}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{db: s.ext}
}

// WithinTx implements repository.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{db: s.db, ext: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Ping verifies the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var sqliteErr *moderncsqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %s", repository.ErrConflict, sqliteErr.Error())
		}
	}
	return err
}

func rowsAffected(result sql.Result) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return n, nil
}
