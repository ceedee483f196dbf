package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/repository"
)

const notificationColumns = `id, recipient_id, event_id, issue_id, kind, message, is_read, read_at, created_at`

type notificationRepository struct {
	db sqlx.ExtContext
}

func (r *notificationRepository) CreateIfAbsent(ctx context.Context, n *domain.Notification) (bool, error) {
	const query = `
		INSERT INTO notifications (id, recipient_id, event_id, issue_id, kind, message, is_read, read_at, created_at)
		VALUES (:id, :recipient_id, :event_id, :issue_id, :kind, :message, :is_read, :read_at, :created_at)
		ON CONFLICT (id) DO NOTHING`
	result, err := sqlx.NamedExecContext(ctx, r.db, query, n)
	if err != nil {
		return false, mapError(err)
	}
	affected, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var n domain.Notification
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`
	if err := sqlx.GetContext(ctx, r.db, &n, query, id); err != nil {
		return nil, mapError(err)
	}
	normaliseNotification(&n)
	return &n, nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, filter repository.NotificationFilter) ([]domain.Notification, error) {
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id = ?`
	args := []any{filter.RecipientID}
	if filter.UnreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, repository.NormaliseLimit(filter.Limit), offset)

	var notifications []domain.Notification
	if err := sqlx.SelectContext(ctx, r.db, &notifications, query, args...); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	for i := range notifications {
		normaliseNotification(&notifications[i])
	}
	return notifications, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0`
	if err := sqlx.GetContext(ctx, r.db, &count, query, recipientID); err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string, readAt time.Time) (bool, error) {
	const query = `UPDATE notifications SET is_read = 1, read_at = ? WHERE id = ? AND is_read = 0`
	result, err := r.db.ExecContext(ctx, query, readAt, id)
	if err != nil {
		return false, fmt.Errorf("marking notification read: %w", err)
	}
	affected, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func normaliseNotification(n *domain.Notification) {
	n.CreatedAt = n.CreatedAt.UTC()
	if n.ReadAt != nil {
		readAt := n.ReadAt.UTC()
		n.ReadAt = &readAt
	}
}
