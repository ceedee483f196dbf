package repository

import (
	"context"
	"time"

	"github.com/spec-kit/issue-engine/internal/domain"
)

type outboxRepository struct {
	db querier
}

func (r *outboxRepository) Enqueue(ctx context.Context, entry *domain.OutboxEntry) error {
	const query = `
        INSERT INTO outbox_events (id, event_type, issue_id, payload, attempts, next_attempt_at, last_error, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.EventType,
		entry.IssueID,
		entry.Payload,
		entry.Attempts,
		entry.NextAttemptAt,
		entry.LastError,
		entry.CreatedAt,
	)
	return mapPgError(err)
}

func (r *outboxRepository) FetchDue(ctx context.Context, now time.Time, limit int) ([]domain.OutboxEntry, error) {
	const query = `
        SELECT id, event_type, issue_id, payload, attempts, next_attempt_at, last_error, dispatched_at, created_at
        FROM outbox_events
        WHERE dispatched_at IS NULL AND next_attempt_at <= $1
        ORDER BY created_at ASC, id ASC
        LIMIT $2`
	rows, err := r.db.Query(ctx, query, now, NormaliseLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.OutboxEntry
	for rows.Next() {
		var entry domain.OutboxEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.EventType,
			&entry.IssueID,
			&entry.Payload,
			&entry.Attempts,
			&entry.NextAttemptAt,
			&entry.LastError,
			&entry.DispatchedAt,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.NextAttemptAt = entry.NextAttemptAt.UTC()
		entry.CreatedAt = entry.CreatedAt.UTC()
		entry.DispatchedAt = utcPtr(entry.DispatchedAt)
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *outboxRepository) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE outbox_events SET dispatched_at=$1 WHERE id=$2`
	cmd, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error {
	const query = `UPDATE outbox_events SET attempts=$1, next_attempt_at=$2, last_error=$3 WHERE id=$4`
	cmd, err := r.db.Exec(ctx, query, attempts, nextAttemptAt, lastError, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *outboxRepository) PendingCount(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM outbox_events WHERE dispatched_at IS NULL`
	var count int
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
