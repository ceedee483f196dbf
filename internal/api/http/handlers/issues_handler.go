package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-engine/internal/api/dto"
	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/service"
)

// IssuesHandler serves issue intake, listing and status changes.
type IssuesHandler struct {
	service *service.IssueService
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issueService *service.IssueService) *IssuesHandler {
	return &IssuesHandler{service: issueService}
}

// CreateIssue POST /issues.
func (h *IssuesHandler) CreateIssue(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateIssueRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	view, err := h.service.Create(c.UserContext(), caller, service.CreateIssueInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Severity:    req.Severity,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": issueResponse(view)})
}

// ListIssues GET /issues.
func (h *IssuesHandler) ListIssues(c *fiber.Ctx) error {
	return h.list(c, c.Query("scope"))
}

// ListReported GET /issues/me.
func (h *IssuesHandler) ListReported(c *fiber.Ctx) error {
	return h.list(c, service.ScopeReported)
}

// ListAssigned GET /issues/engineers/me/issues.
func (h *IssuesHandler) ListAssigned(c *fiber.Ctx) error {
	return h.list(c, service.ScopeAssigned)
}

func (h *IssuesHandler) list(c *fiber.Ctx, scope string) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	page, err := h.service.List(c.UserContext(), caller, parseIssueQuery(c, scope))
	if err != nil {
		return err
	}
	items := make([]dto.IssueResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, issueResponse(&page.Items[i]))
	}
	return c.JSON(fiber.Map{"data": dto.IssueListResponse{
		Items:  items,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}})
}

// GetIssue GET /issues/:id.
func (h *IssuesHandler) GetIssue(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	view, err := h.service.Get(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(view)})
}

// UpdateStatus PATCH /issues/:id/status.
func (h *IssuesHandler) UpdateStatus(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	target := domain.IssueStatus(strings.ToUpper(strings.TrimSpace(string(req.Status))))
	view, err := h.service.Transition(c.UserContext(), caller, c.Params("id"), target)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(view)})
}

// Stats GET /stats.
func (h *IssuesHandler) Stats(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	stats, err := h.service.Stats(c.UserContext(), caller)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatsResponse{
		Total:      stats.Total,
		InProgress: stats.InProgress,
		Resolved:   stats.Resolved,
		Breached:   stats.Breached,
		ByCategory: stats.ByCategory,
		ByStatus:   stats.ByStatus,
	}})
}

func parseIssueQuery(c *fiber.Ctx, scope string) service.ListIssuesInput {
	input := service.ListIssuesInput{
		Scope:  strings.ToLower(strings.TrimSpace(scope)),
		Limit:  parseIntQuery(c, "limit", 0),
		Offset: parseIntQuery(c, "offset", 0),
	}
	for _, part := range splitQuery(c.Query("status")) {
		input.Statuses = append(input.Statuses, domain.IssueStatus(strings.ToUpper(part)))
	}
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		cat := domain.IssueCategory(strings.ToUpper(category))
		input.Category = &cat
	}
	return input
}
