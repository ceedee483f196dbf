package domain

import "time"

// IssueCategory classifies the public service an issue affects.
type IssueCategory string

const (
	CategoryRoad       IssueCategory = "ROAD"
	CategoryWater      IssueCategory = "WATER"
	CategoryLighting   IssueCategory = "LIGHTING"
	CategorySanitation IssueCategory = "SANITATION"
	CategoryOther      IssueCategory = "OTHER"
)

// Categories lists every category in a stable order.
var Categories = []IssueCategory{
	CategoryRoad,
	CategoryWater,
	CategoryLighting,
	CategorySanitation,
	CategoryOther,
}

// Valid reports whether c is a known category.
func (c IssueCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// IssueStatus enumerates lifecycle states for issues.
type IssueStatus string

const (
	StatusReported   IssueStatus = "REPORTED"
	StatusVerified   IssueStatus = "VERIFIED"
	StatusInProgress IssueStatus = "IN_PROGRESS"
	StatusResolved   IssueStatus = "RESOLVED"
)

// statusOrder is the only path an issue may take.
var statusOrder = []IssueStatus{
	StatusReported,
	StatusVerified,
	StatusInProgress,
	StatusResolved,
}

// Statuses lists every status in lifecycle order.
func Statuses() []IssueStatus {
	return append([]IssueStatus(nil), statusOrder...)
}

func (s IssueStatus) rank() int {
	for i, candidate := range statusOrder {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known status.
func (s IssueStatus) Valid() bool {
	return s.rank() >= 0
}

// Terminal reports whether no further transition is possible.
func (s IssueStatus) Terminal() bool {
	return s == StatusResolved
}

// Next returns the immediate successor of s.
func (s IssueStatus) Next() (IssueStatus, bool) {
	rank := s.rank()
	if rank < 0 || rank+1 >= len(statusOrder) {
		return "", false
	}
	return statusOrder[rank+1], true
}

// AtLeast reports whether s has reached other in the lifecycle.
func (s IssueStatus) AtLeast(other IssueStatus) bool {
	return s.rank() >= other.rank()
}

// CanTransition reports whether to immediately follows from.
func CanTransition(from, to IssueStatus) bool {
	next, ok := from.Next()
	return ok && next == to
}

// Issue is the aggregate for a citizen report.
type Issue struct {
	ID            string        `db:"id"`
	Title         string        `db:"title"`
	Description   string        `db:"description"`
	Category      IssueCategory `db:"category"`
	Severity      int           `db:"severity"`
	Status        IssueStatus   `db:"status"`
	PriorityScore float64       `db:"priority_score"`
	Latitude      float64       `db:"latitude"`
	Longitude     float64       `db:"longitude"`
	ReportedBy    string        `db:"reported_by"`
	AssigneeID    *string       `db:"assignee_id"`
	DueAt         time.Time     `db:"due_at"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`
	ResolvedAt    *time.Time    `db:"resolved_at"`
	Version       int64         `db:"version"`
}

// AssignedTo reports whether userID holds the active assignment.
func (i *Issue) AssignedTo(userID string) bool {
	return i.AssigneeID != nil && *i.AssigneeID == userID
}

// IssueStats aggregates counts for the admin overview.
type IssueStats struct {
	Total      int
	Breached   int
	ByStatus   map[IssueStatus]int
	ByCategory map[IssueCategory]int
}
