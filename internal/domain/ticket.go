package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusCreated           TicketStatus = "CREATED"
	TicketStatusAssigned          TicketStatus = "ASSIGNED"
	TicketStatusStarted           TicketStatus = "STARTED"
	TicketStatusPendingValidation TicketStatus = "PENDING_VALIDATION"
	TicketStatusFinished          TicketStatus = "FINISHED"
	TicketStatusReopened          TicketStatus = "REOPENED"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusCreated, TicketStatusAssigned, TicketStatusStarted,
		TicketStatusPendingValidation, TicketStatusFinished, TicketStatusReopened:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID           string
	Code         string
	Title        string
	Description  string
	Type         string
	Priority     TicketPriority
	Status       TicketStatus
	RequesterID  string
	DepartmentID *string
	AssigneeID   *string
	AssignedAt   *time.Time

	CreatedAt       time.Time
	UpdatedAt       time.Time
	FirstResponseAt *time.Time
	ClosedAt        *time.Time
	DeletedAt       *time.Time

	SLA TicketSLA
}

// TicketSLA holds the budgets and due dates fixed when the ticket was created.
type TicketSLA struct {
	ResponseMinutes      int
	ResolutionMinutes    int
	ResponseDueAt        *time.Time
	ResolutionDueAt      *time.Time
	ResponseBreachedAt   *time.Time
	ResolutionBreachedAt *time.Time
}

// IsOpen reports whether the ticket still counts towards workload and SLA scans.
func (t *Ticket) IsOpen() bool {
	return t.DeletedAt == nil && t.Status != TicketStatusFinished
}

// IsAssignedTo reports whether userID is the current assignee.
func (t *Ticket) IsAssignedTo(userID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}
