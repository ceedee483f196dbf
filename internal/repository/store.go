package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/issue-engine/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict is returned for unique violations and stale optimistic writes.
	ErrConflict = errors.New("repository: conflict")
)

// IssueFilter narrows an issue listing. Nil fields are not applied. Rows
// come back ordered by created_at then id, so Limit and Offset page through
// the whole filtered set in a stable order.
type IssueFilter struct {
	ReporterID *string
	AssigneeID *string
	Statuses   []domain.IssueStatus
	Category   *domain.IssueCategory
	Limit      int
	Offset     int
}

// NotificationFilter selects one recipient's notifications, newest first.
type NotificationFilter struct {
	RecipientID string
	UnreadOnly  bool
	Limit       int
	Offset      int
}

// IssueRepository encapsulates issue persistence.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) error
	// Update writes the mutable columns when the stored version still equals
	// issue.Version and bumps the version. A stale version yields ErrConflict.
	Update(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	List(ctx context.Context, filter IssueFilter) ([]domain.Issue, error)
	// OpenCountsByAssignee counts non-resolved issues per assigned engineer.
	OpenCountsByAssignee(ctx context.Context) (map[string]int, error)
	Stats(ctx context.Context, now time.Time) (domain.IssueStats, error)
}

// AssignmentRepository stores the append-only assignment history.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.Assignment) error
	// ListByIssue returns an issue's history oldest first.
	ListByIssue(ctx context.Context, issueID string) ([]domain.Assignment, error)
	// List returns the global history newest first.
	List(ctx context.Context, limit, offset int) ([]domain.Assignment, error)
}

// UserRepository is the user directory.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// ListByRole lists users ordered by created_at then id. An empty role
	// lists everyone.
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
}

// NotificationRepository stores durable per-user notifications.
type NotificationRepository interface {
	// CreateIfAbsent inserts the row unless its id already exists and
	// reports whether a row was written.
	CreateIfAbsent(ctx context.Context, notification *domain.Notification) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByRecipient(ctx context.Context, filter NotificationFilter) ([]domain.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	// MarkRead flips an unread row to read and reports whether it changed.
	MarkRead(ctx context.Context, id string, readAt time.Time) (bool, error)
}

// OutboxRepository is the transactional outbox of lifecycle events.
type OutboxRepository interface {
	Enqueue(ctx context.Context, entry *domain.OutboxEntry) error
	// FetchDue returns undispatched entries whose next attempt is due, oldest first.
	FetchDue(ctx context.Context, now time.Time, limit int) ([]domain.OutboxEntry, error)
	MarkDispatched(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error
	PendingCount(ctx context.Context) (int, error)
}

// Store groups the repositories over one connection or transaction.
type Store interface {
	Issues() IssueRepository
	Assignments() AssignmentRepository
	Users() UserRepository
	Notifications() NotificationRepository
	Outbox() OutboxRepository
	// WithinTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Calling WithinTx on a transactional Store reuses the transaction.
	WithinTx(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
	Close() error
}

// DefaultListLimit caps listings that do not set a limit.
const DefaultListLimit = 500

// NormaliseLimit clamps limit into (0, DefaultListLimit].
func NormaliseLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}

// StatsAccumulator folds grouped (status, category, count, breached) rows
// into an IssueStats. Both drivers share it.
type StatsAccumulator struct {
	stats domain.IssueStats
}

// NewStatsAccumulator prepares zeroed counters for every status and category.
func NewStatsAccumulator() *StatsAccumulator {
	stats := domain.IssueStats{
		ByStatus:   make(map[domain.IssueStatus]int),
		ByCategory: make(map[domain.IssueCategory]int),
	}
	for _, status := range domain.Statuses() {
		stats.ByStatus[status] = 0
	}
	for _, category := range domain.Categories {
		stats.ByCategory[category] = 0
	}
	return &StatsAccumulator{stats: stats}
}

// Add records one grouped row.
func (a *StatsAccumulator) Add(status domain.IssueStatus, category domain.IssueCategory, count, breached int) {
	a.stats.Total += count
	a.stats.Breached += breached
	a.stats.ByStatus[status] += count
	a.stats.ByCategory[category] += count
}

// Result returns the accumulated stats.
func (a *StatsAccumulator) Result() domain.IssueStats {
	return a.stats
}

// StatsQuery groups issues by status and category. A resolved issue is
// breached when it was resolved at or after its deadline; an open one when
// the deadline has passed. The single parameter is the current time and is
// written with the driver's placeholder.
func StatsQuery(placeholder string) string {
	return `
        SELECT status, category, COUNT(*) AS total,
               COALESCE(SUM(CASE
                   WHEN resolved_at IS NULL AND due_at <= ` + placeholder + ` THEN 1
                   WHEN resolved_at IS NOT NULL AND resolved_at >= due_at THEN 1
                   ELSE 0 END), 0) AS breached
        FROM issues
        GROUP BY status, category`
}
