package domain

import "time"

// AssignmentRule routes new tickets to an assignee. Rules are evaluated by
// ascending Orden and the first satisfiable match wins.
type AssignmentRule struct {
	ID         string
	Name       string
	Orden      int
	Active     bool
	TicketType *string
	Priority   *TicketPriority
	Target     AssignmentTarget
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Matches reports whether the rule filters accept the ticket type and priority.
// A nil filter matches anything.
func (r *AssignmentRule) Matches(ticketType string, priority TicketPriority) bool {
	if r.TicketType != nil && *r.TicketType != ticketType {
		return false
	}
	if r.Priority != nil && *r.Priority != priority {
		return false
	}
	return true
}

// AssignmentTarget is either a SpecificUserTarget or a RolePoolTarget.
type AssignmentTarget interface {
	isAssignmentTarget()
}

// SpecificUserTarget assigns to one named user.
type SpecificUserTarget struct {
	UserID string
}

// RolePoolTarget assigns to the least loaded active user holding Role.
// MaxActive, when set, excludes candidates already holding that many open tickets.
type RolePoolTarget struct {
	Role      UserRole
	MaxActive *int
}

func (SpecificUserTarget) isAssignmentTarget() {}
func (RolePoolTarget) isAssignmentTarget()     {}

// EffectiveRole returns the pool role, falling back to DefaultAssignmentRole.
func (t RolePoolTarget) EffectiveRole() UserRole {
	if t.Role == "" {
		return DefaultAssignmentRole
	}
	return t.Role
}
