package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/repository"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

var emailValidator = validator.New()

// DirectoryService manages departments and the users that tickets are
// requested by and assigned to.
type DirectoryService struct {
	departments repository.DepartmentRepository
	users       repository.UserRepository
}

// DirectoryDependencies encapsulates repositories required for directory management.
type DirectoryDependencies struct {
	DepartmentRepo repository.DepartmentRepository
	UserRepo       repository.UserRepository
}

// UserListFilters define listing parameters.
type UserListFilters struct {
	Role         *domain.UserRole
	DepartmentID *string
	Active       *bool
	Limit        int
	Offset       int
}

// UserInput describes a user to create or update.
type UserInput struct {
	Name         string
	Email        string
	Role         domain.UserRole
	DepartmentID *string
	Active       bool
}

// NewDirectoryService constructs the service.
func NewDirectoryService(deps DirectoryDependencies) *DirectoryService {
	return &DirectoryService{
		departments: deps.DepartmentRepo,
		users:       deps.UserRepo,
	}
}

// CreateDepartment creates a new department.
func (s *DirectoryService) CreateDepartment(ctx context.Context, actor *domain.User, name, description string) (*domain.Department, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("invalid department", map[string]any{"name": "required"})
	}
	dept := &domain.Department{
		Name:        name,
		Description: strings.TrimSpace(description),
		IsActive:    true,
	}
	if err := s.departments.Create(ctx, dept); err != nil {
		return nil, apperrors.MapError(err)
	}
	return dept, nil
}

// ListDepartments returns departments. Only admins may include inactive ones.
func (s *DirectoryService) ListDepartments(ctx context.Context, actor *domain.User, includeInactive bool) ([]domain.Department, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if includeInactive && actor.Role != domain.UserRoleAdmin {
		includeInactive = false
	}
	depts, err := s.departments.List(ctx, includeInactive)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return depts, nil
}

// UpdateDepartment modifies department metadata.
func (s *DirectoryService) UpdateDepartment(ctx context.Context, actor *domain.User, id, name, description string, active bool) (*domain.Department, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	dept, err := s.departments.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "department", "department_id", id)
	}
	if name = strings.TrimSpace(name); name != "" {
		dept.Name = name
	}
	dept.Description = strings.TrimSpace(description)
	dept.IsActive = active
	if err := s.departments.Update(ctx, dept); err != nil {
		return nil, apperrors.MapError(err)
	}
	return dept, nil
}

// CreateUser provisions a user account. Credentials are managed by the
// identity provider that issues bearer tokens.
func (s *DirectoryService) CreateUser(ctx context.Context, actor *domain.User, input UserInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	user := &domain.User{Active: true}
	if err := s.applyUserInput(ctx, user, input); err != nil {
		return nil, err
	}
	user.Active = input.Active
	if err := s.ensureEmailFree(ctx, user.Email, ""); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ListUsers lists users (SUPERVISOR/ADMIN), oldest first.
func (s *DirectoryService) ListUsers(ctx context.Context, actor *domain.User, filters UserListFilters) ([]domain.User, error) {
	if err := requireSupervisor(actor); err != nil {
		return nil, err
	}
	repoFilter := repository.UserFilter{
		DepartmentID: filters.DepartmentID,
		Active:       filters.Active,
		Limit:        filters.Limit,
		Offset:       filters.Offset,
	}
	if filters.Role != nil {
		repoFilter.Roles = []domain.UserRole{*filters.Role}
	}
	if repoFilter.Limit <= 0 {
		repoFilter.Limit = 50
	}
	users, err := s.users.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// GetUser fetches a user. Users may read themselves; supervisors read anyone.
func (s *DirectoryService) GetUser(ctx context.Context, actor *domain.User, id string) (*domain.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.ID != id && !actor.Role.IsSupervisor() {
		return nil, apperrors.NewForbidden("access denied")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user", "user_id", id)
	}
	return user, nil
}

// UpdateUser changes a user's profile, role or activity (ADMIN).
func (s *DirectoryService) UpdateUser(ctx context.Context, actor *domain.User, id string, input UserInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user", "user_id", id)
	}
	if err := s.applyUserInput(ctx, user, input); err != nil {
		return nil, err
	}
	user.Active = input.Active
	if err := s.ensureEmailFree(ctx, user.Email, user.ID); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

func (s *DirectoryService) applyUserInput(ctx context.Context, user *domain.User, input UserInput) error {
	details := map[string]any{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		details["name"] = "required"
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := emailValidator.Var(email, "required,email"); err != nil {
		details["email"] = "must be a valid address"
	}
	role := input.Role
	if role == "" {
		role = domain.UserRoleUser
	}
	if !role.Valid() {
		details["role"] = "must be one of ADMIN, SUPERVISOR, USER"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid user", details)
	}

	var departmentID *string
	if input.DepartmentID != nil && *input.DepartmentID != "" {
		dept, err := s.departments.GetByID(ctx, *input.DepartmentID)
		if err != nil {
			return lookupError(err, "department", "department_id", *input.DepartmentID)
		}
		if !dept.IsActive {
			return apperrors.NewConflict("department inactive", map[string]any{"department_id": dept.ID})
		}
		departmentID = &dept.ID
	}

	user.Name = name
	user.Email = email
	user.Role = role
	user.DepartmentID = departmentID
	return nil
}

func (s *DirectoryService) ensureEmailFree(ctx context.Context, email, ownerID string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return apperrors.MapError(err)
	}
	if existing.ID != ownerID {
		return apperrors.NewConflict("email already registered", map[string]any{"email": email})
	}
	return nil
}
