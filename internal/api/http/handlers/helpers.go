package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-engine/internal/api/dto"
	"github.com/spec-kit/issue-engine/internal/auth"
	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/service"
	apperrors "github.com/spec-kit/issue-engine/pkg/util/errorutil"
)

func callerFrom(c *fiber.Ctx) (domain.Caller, error) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return domain.Caller{}, apperrors.NewUnauthenticated("caller required")
	}
	return caller, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func parseBoolQuery(c *fiber.Ctx, key string, defaultVal bool) bool {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultVal
}

func splitQuery(val string) []string {
	if val == "" {
		return nil
	}
	var parts []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func issueResponse(view *service.IssueView) dto.IssueResponse {
	return dto.IssueResponse{
		ID:            view.ID,
		Title:         view.Title,
		Description:   view.Description,
		Category:      view.Category,
		Severity:      view.Severity,
		Status:        view.Status,
		PriorityScore: view.PriorityScore,
		Latitude:      view.Latitude,
		Longitude:     view.Longitude,
		ReportedBy:    view.ReportedBy,
		AssigneeID:    view.AssigneeID,
		DueAt:         view.DueAt,
		CreatedAt:     view.CreatedAt,
		UpdatedAt:     view.UpdatedAt,
		ResolvedAt:    view.ResolvedAt,
		SLA: dto.SLAResponse{
			DueAt:            view.SLA.DueAt,
			RemainingSeconds: int64(view.SLA.Remaining.Seconds()),
			State:            string(view.SLA.State),
		},
	}
}

func assignmentResponse(assignment *domain.Assignment) dto.AssignmentResponse {
	return dto.AssignmentResponse{
		ID:         assignment.ID,
		IssueID:    assignment.IssueID,
		EngineerID: assignment.EngineerID,
		AssignedBy: assignment.AssignedBy,
		Strategy:   assignment.Strategy,
		CreatedAt:  assignment.CreatedAt,
	}
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

func notificationResponse(n *domain.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:        n.ID,
		EventID:   n.EventID,
		IssueID:   n.IssueID,
		Kind:      n.Kind,
		Message:   n.Message,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}
