package dto

import (
	"time"

	"github.com/spec-kit/issue-engine/internal/domain"
)

// ManualAssignRequest payload.
type ManualAssignRequest struct {
	EngineerID string `json:"engineerId"`
}

// AssignmentResponse is one history row.
type AssignmentResponse struct {
	ID         string                    `json:"id"`
	IssueID    string                    `json:"issueId"`
	EngineerID string                    `json:"engineerId"`
	AssignedBy string                    `json:"assignedBy"`
	Strategy   domain.AssignmentStrategy `json:"strategy"`
	CreatedAt  time.Time                 `json:"createdAt"`
}

// AssignResultResponse is returned by both assignment endpoints.
type AssignResultResponse struct {
	Issue      IssueResponse      `json:"issue"`
	Assignment AssignmentResponse `json:"assignment"`
}

// WorkloadResponse is one engineer's balancer entry.
type WorkloadResponse struct {
	Engineer  UserResponse `json:"engineer"`
	OpenCount int          `json:"openCount"`
}
