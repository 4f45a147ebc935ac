package domain

import "time"

// UserRole enumerates access roles.
type UserRole string

const (
	UserRoleAdmin      UserRole = "ADMIN"
	UserRoleSupervisor UserRole = "SUPERVISOR"
	UserRoleUser       UserRole = "USER"
)

// DefaultAssignmentRole is the candidate pool used when a rule names no role.
const DefaultAssignmentRole = UserRoleUser

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleSupervisor, UserRoleUser:
		return true
	}
	return false
}

// IsSupervisor reports whether the role receives SLA alerts and manages rules.
func (r UserRole) IsSupervisor() bool {
	return r == UserRoleAdmin || r == UserRoleSupervisor
}

// User is an operator or requester of the helpdesk.
type User struct {
	ID           string
	Name         string
	Email        string
	Role         UserRole
	DepartmentID *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
