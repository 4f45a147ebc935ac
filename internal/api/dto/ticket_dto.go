package dto

import (
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload. The due date overrides replace the
// priority-derived SLA due dates.
type CreateTicketRequest struct {
	Title           string                `json:"title" validate:"required,min=1,max=255"`
	Description     string                `json:"description" validate:"max=10000"`
	Type            string                `json:"type" validate:"required,min=1,max=100"`
	Priority        domain.TicketPriority `json:"priority" validate:"omitempty,oneof=HIGH MEDIUM LOW"`
	DepartmentID    *string               `json:"department_id" validate:"omitempty,uuid"`
	ResponseDueAt   *time.Time            `json:"response_due_at"`
	ResolutionDueAt *time.Time            `json:"resolution_due_at"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status" validate:"required,oneof=CREATED ASSIGNED STARTED PENDING_VALIDATION FINISHED REOPENED"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AssigneeID string `json:"assignee_id" validate:"required,uuid"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body string `json:"body" validate:"required,min=1,max=10000"`
}

// TicketResponse is a ticket with its live SLA status.
type TicketResponse struct {
	ID              string                `json:"id"`
	Code            string                `json:"code"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Type            string                `json:"type"`
	Priority        domain.TicketPriority `json:"priority"`
	Status          domain.TicketStatus   `json:"status"`
	RequesterID     string                `json:"requester_id"`
	DepartmentID    *string               `json:"department_id"`
	AssigneeID      *string               `json:"assignee_id"`
	AssignedAt      *time.Time            `json:"assigned_at"`
	FirstResponseAt *time.Time            `json:"first_response_at"`
	ClosedAt        *time.Time            `json:"closed_at"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	SLA             SLAResponse           `json:"sla"`
}

// SLAResponse reports both SLA clocks of a ticket.
type SLAResponse struct {
	Overall    string               `json:"overall"`
	Response   SLADimensionResponse `json:"response"`
	Resolution SLADimensionResponse `json:"resolution"`
}

// SLADimensionResponse reports one SLA clock.
type SLADimensionResponse struct {
	State            string     `json:"state"`
	BudgetMinutes    int        `json:"budget_minutes"`
	DueAt            *time.Time `json:"due_at"`
	RemainingMinutes *int       `json:"remaining_minutes"`
	BreachedAt       *time.Time `json:"breached_at,omitempty"`
}

// TicketCommentResponse represents a thread message.
type TicketCommentResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketHistoryResponse represents an audit entry. A null changed_by_id marks
// a system change.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID *string                 `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value,omitempty"`
	NewValue    map[string]any          `json:"new_value,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// AlertResponse represents a raised SLA alert.
type AlertResponse struct {
	ID       string           `json:"id"`
	TicketID string           `json:"ticket_id"`
	Kind     domain.AlertKind `json:"kind"`
	SentAt   time.Time        `json:"sent_at"`
}
