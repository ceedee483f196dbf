package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/spec-kit/issue-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueCreated       EventType = "issue.created"
	EventIssueAssigned      EventType = "issue.assigned"
	EventIssueStatusChanged EventType = "issue.status_changed"
)

// Actor identifies who caused an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// ActorFrom converts a request caller.
func ActorFrom(caller domain.Caller) Actor {
	return Actor{UserID: caller.ID, Role: caller.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	IssueID   string          `json:"issue_id"`
	Actor     Actor           `json:"actor"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// IssueCreatedPayload payload.
type IssueCreatedPayload struct {
	ReporterID    string               `json:"reporter_id"`
	Title         string               `json:"title"`
	Category      domain.IssueCategory `json:"category"`
	Severity      int                  `json:"severity"`
	PriorityScore float64              `json:"priority_score"`
	DueAt         time.Time            `json:"due_at"`
}

// IssueAssignedPayload payload.
type IssueAssignedPayload struct {
	ReporterID   string                    `json:"reporter_id"`
	Title        string                    `json:"title"`
	AssignmentID string                    `json:"assignment_id"`
	EngineerID   string                    `json:"engineer_id"`
	EngineerName string                    `json:"engineer_name"`
	Strategy     domain.AssignmentStrategy `json:"strategy"`
}

// IssueStatusChangedPayload payload.
type IssueStatusChangedPayload struct {
	ReporterID string             `json:"reporter_id"`
	Title      string             `json:"title"`
	EngineerID *string            `json:"engineer_id,omitempty"`
	OldStatus  domain.IssueStatus `json:"old_status"`
	NewStatus  domain.IssueStatus `json:"new_status"`
}

// New builds an event with a fresh id and an encoded payload.
func New(eventType EventType, issueID string, actor Actor, at time.Time, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		IssueID:   issueID,
		Actor:     actor,
		Timestamp: at.UTC(),
		Payload:   raw,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// ToOutbox serialises the whole event as an outbox row due immediately.
func ToOutbox(e Event) (domain.OutboxEntry, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return domain.OutboxEntry{}, fmt.Errorf("encode event %s: %w", e.ID, err)
	}
	return domain.OutboxEntry{
		ID:            e.ID,
		EventType:     string(e.Type),
		IssueID:       e.IssueID,
		Payload:       raw,
		NextAttemptAt: e.Timestamp,
		CreatedAt:     e.Timestamp,
	}, nil
}

// FromOutbox restores the event stored in entry.
func FromOutbox(entry domain.OutboxEntry) (Event, error) {
	var e Event
	if err := json.Unmarshal(entry.Payload, &e); err != nil {
		return Event{}, fmt.Errorf("decode outbox entry %s: %w", entry.ID, err)
	}
	return e, nil
}
