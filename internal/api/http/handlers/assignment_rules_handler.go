package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk-service/internal/api/dto"
	"github.com/deskflow/helpdesk-service/internal/service"
)

// AssignmentRulesHandler manages auto-assignment rules.
type AssignmentRulesHandler struct {
	service *service.AssignmentService
}

// NewAssignmentRulesHandler constructs handler.
func NewAssignmentRulesHandler(assignmentService *service.AssignmentService) *AssignmentRulesHandler {
	return &AssignmentRulesHandler{service: assignmentService}
}

// ListRules GET /assignment-rules.
func (h *AssignmentRulesHandler) ListRules(c *fiber.Ctx) error {
	user, err := principal(c)
	if err != nil {
		return err
	}
	rules, err := h.service.ListRules(c.UserContext(), user)
	if err != nil {
		return err
	}
	items := make([]dto.AssignmentRuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, ruleResponse(&rules[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetRule GET /assignment-rules/:id.
func (h *AssignmentRulesHandler) GetRule(c *fiber.Ctx) error {
	user, err := principal(c)
	if err != nil {
		return err
	}
	rule, err := h.service.GetRule(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ruleResponse(rule)})
}

// CreateRule POST /assignment-rules.
func (h *AssignmentRulesHandler) CreateRule(c *fiber.Ctx) error {
	user, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.AssignmentRuleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rule, err := h.service.CreateRule(c.UserContext(), user, ruleInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ruleResponse(rule)})
}

// UpdateRule PUT /assignment-rules/:id.
func (h *AssignmentRulesHandler) UpdateRule(c *fiber.Ctx) error {
	user, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.AssignmentRuleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rule, err := h.service.UpdateRule(c.UserContext(), user, c.Params("id"), ruleInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ruleResponse(rule)})
}

// DeleteRule DELETE /assignment-rules/:id.
func (h *AssignmentRulesHandler) DeleteRule(c *fiber.Ctx) error {
	user, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteRule(c.UserContext(), user, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Resolve POST /assignment-rules/resolve previews who a new ticket would go to.
func (h *AssignmentRulesHandler) Resolve(c *fiber.Ctx) error {
	if _, err := principal(c); err != nil {
		return err
	}
	var req dto.ResolveAssigneeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	assignee, err := h.service.ResolveAutoAssignee(c.UserContext(), service.AssignmentRequest{
		Type:     req.Type,
		Priority: req.Priority,
	})
	if err != nil {
		return err
	}
	resp := dto.ResolveAssigneeResponse{}
	if assignee != nil {
		u := userResponse(assignee)
		resp.Assignee = &u
	}
	return c.JSON(fiber.Map{"data": resp})
}

func ruleInput(req dto.AssignmentRuleRequest) service.AssignmentRuleInput {
	return service.AssignmentRuleInput{
		Name:         req.Name,
		Orden:        req.Orden,
		Active:       boolOr(req.Active, true),
		TicketType:   req.TicketType,
		Priority:     req.Priority,
		TargetUserID: req.TargetUserID,
		TargetRole:   req.TargetRole,
		MaxActive:    req.MaxActive,
	}
}
