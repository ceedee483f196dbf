package domain

import "time"

// OutboxEntry is a lifecycle event committed together with the state
// change that caused it and drained asynchronously by the relay.
type OutboxEntry struct {
	ID            string     `db:"id"`
	EventType     string     `db:"event_type"`
	IssueID       string     `db:"issue_id"`
	Payload       []byte     `db:"payload"`
	Attempts      int        `db:"attempts"`
	NextAttemptAt time.Time  `db:"next_attempt_at"`
	LastError     string     `db:"last_error"`
	DispatchedAt  *time.Time `db:"dispatched_at"`
	CreatedAt     time.Time  `db:"created_at"`
}
