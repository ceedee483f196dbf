package dto

import (
	"time"

	"github.com/spec-kit/issue-engine/internal/domain"
)

// NotificationResponse is one stored notification.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	EventID   string                  `json:"eventId"`
	IssueID   *string                 `json:"issueId"`
	Kind      domain.NotificationKind `json:"kind"`
	Message   string                  `json:"message"`
	IsRead    bool                    `json:"isRead"`
	ReadAt    *time.Time              `json:"readAt"`
	CreatedAt time.Time               `json:"createdAt"`
}

// NotificationListResponse is one page with the caller's unread total.
type NotificationListResponse struct {
	Items  []NotificationResponse `json:"items"`
	Unread int                    `json:"unread"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}
