package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-engine/internal/api/dto"
	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/service"
	apperrors "github.com/spec-kit/issue-engine/pkg/util/errorutil"
)

// AssignmentsHandler serves the admin assignment endpoints.
type AssignmentsHandler struct {
	service *service.AssignmentService
}

// NewAssignmentsHandler constructs handler.
func NewAssignmentsHandler(assignmentService *service.AssignmentService) *AssignmentsHandler {
	return &AssignmentsHandler{service: assignmentService}
}

// Assign POST /issues/:id/assign.
func (h *AssignmentsHandler) Assign(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	var req dto.ManualAssignRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	engineerID := strings.TrimSpace(req.EngineerID)
	if engineerID == "" {
		return apperrors.NewValidationError("invalid input", map[string]any{"engineerId": "required"})
	}
	result, err := h.service.ManualAssign(c.UserContext(), caller, c.Params("id"), engineerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignResult(result)})
}

// AutoAssign POST /issues/:id/auto-assign.
func (h *AssignmentsHandler) AutoAssign(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	result, err := h.service.AutoAssign(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignResult(result)})
}

// IssueHistory GET /issues/:id/assignments.
func (h *AssignmentsHandler) IssueHistory(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	history, err := h.service.History(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponses(history)})
}

// History GET /assignments/history.
func (h *AssignmentsHandler) History(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	history, err := h.service.GlobalHistory(c.UserContext(), caller, parseIntQuery(c, "limit", 0), parseIntQuery(c, "offset", 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponses(history)})
}

// Workload GET /assignments/workload.
func (h *AssignmentsHandler) Workload(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	loads, err := h.service.Workload(c.UserContext(), caller)
	if err != nil {
		return err
	}
	items := make([]dto.WorkloadResponse, 0, len(loads))
	for i := range loads {
		items = append(items, dto.WorkloadResponse{
			Engineer:  userResponse(&loads[i].Engineer),
			OpenCount: loads[i].OpenCount,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func assignResult(result *service.AssignmentResult) dto.AssignResultResponse {
	return dto.AssignResultResponse{
		Issue:      issueResponse(&result.Issue),
		Assignment: assignmentResponse(&result.Assignment),
	}
}

func assignmentResponses(history []domain.Assignment) []dto.AssignmentResponse {
	items := make([]dto.AssignmentResponse, 0, len(history))
	for i := range history {
		items = append(items, assignmentResponse(&history[i]))
	}
	return items
}
