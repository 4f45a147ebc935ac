package dto

import (
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// DepartmentRequest creates or updates a department.
type DepartmentRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=2000"`
	Active      *bool  `json:"active"`
}

// DepartmentResponse represents a department.
type DepartmentResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserRequest creates or updates a user.
type UserRequest struct {
	Name         string          `json:"name" validate:"required,min=1,max=255"`
	Email        string          `json:"email" validate:"required,email"`
	Role         domain.UserRole `json:"role" validate:"omitempty,oneof=ADMIN SUPERVISOR USER"`
	DepartmentID *string         `json:"department_id" validate:"omitempty,uuid"`
	Active       *bool           `json:"active"`
}

// UserResponse represents a user.
type UserResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Role         domain.UserRole `json:"role"`
	DepartmentID *string         `json:"department_id"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
}
