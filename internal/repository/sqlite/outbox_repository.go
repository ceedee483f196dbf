package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/repository"
)

type outboxRepository struct {
	db sqlx.ExtContext
}

func (r *outboxRepository) Enqueue(ctx context.Context, entry *domain.OutboxEntry) error {
	const query = `
		INSERT INTO outbox_events (id, event_type, issue_id, payload, attempts, next_attempt_at, last_error, created_at)
		VALUES (:id, :event_type, :issue_id, :payload, :attempts, :next_attempt_at, :last_error, :created_at)`
	_, err := sqlx.NamedExecContext(ctx, r.db, query, entry)
	return mapError(err)
}

func (r *outboxRepository) FetchDue(ctx context.Context, now time.Time, limit int) ([]domain.OutboxEntry, error) {
	const query = `
		SELECT id, event_type, issue_id, payload, attempts, next_attempt_at, last_error, dispatched_at, created_at
		FROM outbox_events
		WHERE dispatched_at IS NULL AND next_attempt_at <= ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`
	var entries []domain.OutboxEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, now, repository.NormaliseLimit(limit)); err != nil {
		return nil, fmt.Errorf("fetching due outbox entries: %w", err)
	}
	for i := range entries {
		entries[i].NextAttemptAt = entries[i].NextAttemptAt.UTC()
		entries[i].CreatedAt = entries[i].CreatedAt.UTC()
	}
	return entries, nil
}

func (r *outboxRepository) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE outbox_events SET dispatched_at = ? WHERE id = ?`
	return r.exec(ctx, query, at, id)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error {
	const query = `UPDATE outbox_events SET attempts = ?, next_attempt_at = ?, last_error = ? WHERE id = ?`
	return r.exec(ctx, query, attempts, nextAttemptAt, lastError, id)
}

func (r *outboxRepository) PendingCount(ctx context.Context) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM outbox_events WHERE dispatched_at IS NULL`); err != nil {
		return 0, fmt.Errorf("counting pending outbox entries: %w", err)
	}
	return count, nil
}

func (r *outboxRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating outbox entry: %w", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
