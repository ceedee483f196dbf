package domain

import "time"

// NotificationKind mirrors the lifecycle event that produced a notification.
type NotificationKind string

const (
	NotificationIssueCreated       NotificationKind = "ISSUE_CREATED"
	NotificationIssueAssigned      NotificationKind = "ISSUE_ASSIGNED"
	NotificationIssueStatusChanged NotificationKind = "ISSUE_STATUS_CHANGED"
	NotificationGeneric            NotificationKind = "GENERIC"
)

// Notification is a durable message for one recipient. Rows are never
// deleted; only IsRead/ReadAt change, once, by the recipient.
type Notification struct {
	ID          string           `db:"id"`
	RecipientID string           `db:"recipient_id"`
	EventID     string           `db:"event_id"`
	IssueID     *string          `db:"issue_id"`
	Kind        NotificationKind `db:"kind"`
	Message     string           `db:"message"`
	IsRead      bool             `db:"is_read"`
	ReadAt      *time.Time       `db:"read_at"`
	CreatedAt   time.Time        `db:"created_at"`
}
