package repository

import (
	"context"
	"time"

	"github.com/spec-kit/issue-engine/internal/domain"
)

type notificationRepository struct {
	db querier
}

func (r *notificationRepository) CreateIfAbsent(ctx context.Context, n *domain.Notification) (bool, error) {
	const query = `
        INSERT INTO notifications (id, recipient_id, event_id, issue_id, kind, message, is_read, read_at, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (id) DO NOTHING`
	cmd, err := r.db.Exec(ctx, query,
		n.ID,
		n.RecipientID,
		n.EventID,
		n.IssueID,
		n.Kind,
		n.Message,
		n.IsRead,
		n.ReadAt,
		n.CreatedAt,
	)
	if err != nil {
		return false, mapPgError(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	const query = `
        SELECT id, recipient_id, event_id, issue_id, kind, message, is_read, read_at, created_at
        FROM notifications WHERE id=$1`
	n, err := scanNotification(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapPgError(err)
	}
	return n, nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, filter NotificationFilter) ([]domain.Notification, error) {
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, recipient_id, event_id, issue_id, kind, message, is_read, read_at, created_at
        FROM notifications
        WHERE recipient_id=$1 AND ($2::boolean = FALSE OR is_read = FALSE)
        ORDER BY created_at DESC, id DESC
        LIMIT $3 OFFSET $4`
	rows, err := r.db.Query(ctx, query, filter.RecipientID, filter.UnreadOnly, NormaliseLimit(filter.Limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE recipient_id=$1 AND is_read = FALSE`
	var count int
	if err := r.db.QueryRow(ctx, query, recipientID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string, readAt time.Time) (bool, error) {
	const query = `UPDATE notifications SET is_read = TRUE, read_at = $1 WHERE id = $2 AND is_read = FALSE`
	cmd, err := r.db.Exec(ctx, query, readAt, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func scanNotification(row scanner) (*domain.Notification, error) {
	var n domain.Notification
	if err := row.Scan(
		&n.ID,
		&n.RecipientID,
		&n.EventID,
		&n.IssueID,
		&n.Kind,
		&n.Message,
		&n.IsRead,
		&n.ReadAt,
		&n.CreatedAt,
	); err != nil {
		return nil, err
	}
	n.CreatedAt = n.CreatedAt.UTC()
	n.ReadAt = utcPtr(n.ReadAt)
	return &n, nil
}
