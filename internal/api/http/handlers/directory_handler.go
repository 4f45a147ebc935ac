package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk-service/internal/api/dto"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/service"
)

// DirectoryHandler manages departments and users.
type DirectoryHandler struct {
	service *service.DirectoryService
}

// NewDirectoryHandler constructs handler.
func NewDirectoryHandler(directoryService *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{service: directoryService}
}

// ListDepartments GET /departments?include_inactive=true.
func (h *DirectoryHandler) ListDepartments(c *fiber.Ctx) error {
	user, err := principal(c)
	if err != nil {
		return err
	}
	depts, err := h.service.ListDepartments(c.UserContext(), user, boolOr(queryBool(c, "include_inactive"), false))
	if err != nil {
		return err
	}
	resp := make([]dto.DepartmentResponse, 0, len(depts))
	for i := range depts {
		resp = append(resp, departmentResponse(&depts[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// CreateDepartment POST /departments.
func (h *DirectoryHandler) CreateDepartment(c *fiber.Ctx) error {
	user, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.DepartmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	dept, err := h.service.CreateDepartment(c.UserContext(), user, req.Name, req.Description)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": departmentResponse(dept)})
}

// UpdateDepartment PUT /departments/:id.
func (h *DirectoryHandler) UpdateDepartment(c *fiber.Ctx) error {
	user, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.DepartmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	dept, err := h.service.UpdateDepartment(c.UserContext(), user, c.Params("id"), req.Name, req.Description, boolOr(req.Active, true))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": departmentResponse(dept)})
}

// ListUsers GET /users.
func (h *DirectoryHandler) ListUsers(c *fiber.Ctx) error {
	user, err := principal(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c, 50)
	filters := service.UserListFilters{
		DepartmentID: queryString(c, "department_id"),
		Active:       queryBool(c, "active"),
		Limit:        limit,
		Offset:       offset,
	}
	if role := queryString(c, "role"); role != nil {
		r := domain.UserRole(*role)
		filters.Role = &r
	}
	users, err := h.service.ListUsers(c.UserContext(), user, filters)
	if err != nil {
		return err
	}
	resp := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, userResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Me GET /users/me.
func (h *DirectoryHandler) Me(c *fiber.Ctx) error {
	user, err := principal(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// GetUser GET /users/:id.
func (h *DirectoryHandler) GetUser(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	user, err := h.service.GetUser(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// CreateUser POST /users.
func (h *DirectoryHandler) CreateUser(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.service.CreateUser(c.UserContext(), actor, userInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

// UpdateUser PUT /users/:id.
func (h *DirectoryHandler) UpdateUser(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.service.UpdateUser(c.UserContext(), actor, c.Params("id"), userInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

func userInput(req dto.UserRequest) service.UserInput {
	return service.UserInput{
		Name:         req.Name,
		Email:        req.Email,
		Role:         req.Role,
		DepartmentID: req.DepartmentID,
		Active:       boolOr(req.Active, true),
	}
}
