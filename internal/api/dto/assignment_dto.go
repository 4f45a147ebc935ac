package dto

import (
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// AssignmentRuleRequest creates or replaces a rule. Set target_user_id for a
// specific user, or target_role (optionally with max_active) for a role pool.
type AssignmentRuleRequest struct {
	Name         string                 `json:"name" validate:"required,min=1,max=255"`
	Orden        int                    `json:"orden" validate:"gte=0"`
	Active       *bool                  `json:"active"`
	TicketType   *string                `json:"ticket_type" validate:"omitempty,min=1,max=100"`
	Priority     *domain.TicketPriority `json:"priority" validate:"omitempty,oneof=HIGH MEDIUM LOW"`
	TargetUserID *string                `json:"target_user_id" validate:"omitempty,uuid"`
	TargetRole   *domain.UserRole       `json:"target_role" validate:"omitempty,oneof=ADMIN SUPERVISOR USER"`
	MaxActive    *int                   `json:"max_active" validate:"omitempty,gt=0"`
}

// ResolveAssigneeRequest previews the resolver for a would-be ticket.
type ResolveAssigneeRequest struct {
	Type     string                `json:"type" validate:"required,min=1,max=100"`
	Priority domain.TicketPriority `json:"priority" validate:"required,oneof=HIGH MEDIUM LOW"`
}

// AssignmentRuleResponse represents a rule.
type AssignmentRuleResponse struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Orden      int                    `json:"orden"`
	Active     bool                   `json:"active"`
	TicketType *string                `json:"ticket_type"`
	Priority   *domain.TicketPriority `json:"priority"`
	Target     AssignmentTargetDTO    `json:"target"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// AssignmentTargetDTO is the tagged target of a rule: kind is "user" or "role".
type AssignmentTargetDTO struct {
	Kind      string           `json:"kind"`
	UserID    *string          `json:"user_id,omitempty"`
	Role      *domain.UserRole `json:"role,omitempty"`
	MaxActive *int             `json:"max_active,omitempty"`
}

// ResolveAssigneeResponse carries the resolved user, or null.
type ResolveAssigneeResponse struct {
	Assignee *UserResponse `json:"assignee"`
}
