package dto

import (
	"time"

	"github.com/spec-kit/issue-engine/internal/domain"
)

// CreateIssueRequest payload.
type CreateIssueRequest struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Category    domain.IssueCategory `json:"category"`
	Severity    int                  `json:"severity"`
	Latitude    *float64             `json:"latitude"`
	Longitude   *float64             `json:"longitude"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	Status domain.IssueStatus `json:"status"`
}

// SLAResponse describes the deadline as seen at response time.
type SLAResponse struct {
	DueAt            time.Time `json:"dueAt"`
	RemainingSeconds int64     `json:"remainingSeconds"`
	State            string    `json:"state"`
}

// IssueResponse is the issue representation shared by every endpoint.
type IssueResponse struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	Category      domain.IssueCategory `json:"category"`
	Severity      int                  `json:"severity"`
	Status        domain.IssueStatus   `json:"status"`
	PriorityScore float64              `json:"priorityScore"`
	Latitude      float64              `json:"latitude"`
	Longitude     float64              `json:"longitude"`
	ReportedBy    string               `json:"reportedBy"`
	AssigneeID    *string              `json:"assigneeId"`
	DueAt         time.Time            `json:"dueAt"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
	ResolvedAt    *time.Time           `json:"resolvedAt"`
	SLA           SLAResponse          `json:"sla"`
}

// IssueListResponse is one page of issues.
type IssueListResponse struct {
	Items  []IssueResponse `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// StatsResponse is the admin overview.
type StatsResponse struct {
	Total      int                          `json:"total"`
	InProgress int                          `json:"inProgress"`
	Resolved   int                          `json:"resolved"`
	Breached   int                          `json:"breached"`
	ByCategory map[domain.IssueCategory]int `json:"byCategory"`
	ByStatus   map[domain.IssueStatus]int   `json:"byStatus"`
}
