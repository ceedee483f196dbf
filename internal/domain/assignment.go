package domain

import "time"

// AssignmentStrategy records how the engineer was chosen.
type AssignmentStrategy string

const (
	StrategyManual AssignmentStrategy = "MANUAL"
	StrategyAuto   AssignmentStrategy = "AUTO"
)

// Assignment is an immutable history row. The newest row for an issue is
// the active assignment; older rows are superseded, never modified.
type Assignment struct {
	ID         string             `db:"id"`
	IssueID    string             `db:"issue_id"`
	EngineerID string             `db:"engineer_id"`
	AssignedBy string             `db:"assigned_by"`
	Strategy   AssignmentStrategy `db:"strategy"`
	CreatedAt  time.Time          `db:"created_at"`
}
