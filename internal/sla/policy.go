// Package sla computes SLA budgets, due dates and live status for tickets.
// Everything here is pure; callers pass the current time explicitly.
package sla

import (
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// State is the SLA state of one dimension or of a ticket overall.
type State string

const (
	StateNone     State = "none"
	StateOK       State = "ok"
	StateWarning  State = "warning"
	StateBreached State = "breached"
	StateMet      State = "met"
)

// Budget is the time allowed for first response and for resolution.
type Budget struct {
	ResponseMinutes   int
	ResolutionMinutes int
}

var budgets = map[domain.TicketPriority]Budget{
	domain.TicketPriorityHigh:   {ResponseMinutes: 60, ResolutionMinutes: 480},
	domain.TicketPriorityMedium: {ResponseMinutes: 240, ResolutionMinutes: 1440},
	domain.TicketPriorityLow:    {ResponseMinutes: 480, ResolutionMinutes: 2880},
}

// BudgetFor returns the budget of a priority. Unknown priorities get MEDIUM's.
func BudgetFor(priority domain.TicketPriority) Budget {
	if b, ok := budgets[priority]; ok {
		return b
	}
	return budgets[domain.TicketPriorityMedium]
}

// DueDates are the budgets of a ticket anchored at its creation time.
type DueDates struct {
	ResponseMinutes   int
	ResolutionMinutes int
	ResponseDueAt     time.Time
	ResolutionDueAt   time.Time
}

// ComputeDueDates anchors the priority budget at base.
func ComputeDueDates(priority domain.TicketPriority, base time.Time) DueDates {
	b := BudgetFor(priority)
	return DueDates{
		ResponseMinutes:   b.ResponseMinutes,
		ResolutionMinutes: b.ResolutionMinutes,
		ResponseDueAt:     base.Add(time.Duration(b.ResponseMinutes) * time.Minute),
		ResolutionDueAt:   base.Add(time.Duration(b.ResolutionMinutes) * time.Minute),
	}
}

// Apply copies the due dates onto a ticket SLA block.
func (d DueDates) Apply(target *domain.TicketSLA) {
	responseDue := d.ResponseDueAt
	resolutionDue := d.ResolutionDueAt
	target.ResponseMinutes = d.ResponseMinutes
	target.ResolutionMinutes = d.ResolutionMinutes
	target.ResponseDueAt = &responseDue
	target.ResolutionDueAt = &resolutionDue
}

// Snapshot carries the ticket fields status computation depends on.
type Snapshot struct {
	Priority          domain.TicketPriority
	FirstResponseAt   *time.Time
	ClosedAt          *time.Time
	ResponseMinutes   int
	ResolutionMinutes int
	ResponseDueAt     *time.Time
	ResolutionDueAt   *time.Time
}

// SnapshotOf extracts the SLA-relevant fields of a ticket.
func SnapshotOf(t *domain.Ticket) Snapshot {
	return Snapshot{
		Priority:          t.Priority,
		FirstResponseAt:   t.FirstResponseAt,
		ClosedAt:          t.ClosedAt,
		ResponseMinutes:   t.SLA.ResponseMinutes,
		ResolutionMinutes: t.SLA.ResolutionMinutes,
		ResponseDueAt:     t.SLA.ResponseDueAt,
		ResolutionDueAt:   t.SLA.ResolutionDueAt,
	}
}

// DimensionStatus is the state of either the response or the resolution SLA.
// RemainingMinutes is only set while the dimension is still pending.
type DimensionStatus struct {
	State            State
	DueAt            *time.Time
	BudgetMinutes    int
	RemainingMinutes *int
}

// Status is the live SLA status of a ticket.
type Status struct {
	Response   DimensionStatus
	Resolution DimensionStatus
	Overall    State
}

// ComputeStatus evaluates both SLA dimensions at now and derives the overall state.
// A breach in either dimension dominates, then a warning in either dimension.
func ComputeStatus(s Snapshot, now time.Time) Status {
	budget := BudgetFor(s.Priority)
	responseBudget := s.ResponseMinutes
	if responseBudget <= 0 {
		responseBudget = budget.ResponseMinutes
	}
	resolutionBudget := s.ResolutionMinutes
	if resolutionBudget <= 0 {
		resolutionBudget = budget.ResolutionMinutes
	}

	status := Status{
		Response:   dimension(s.ResponseDueAt, s.FirstResponseAt, responseBudget, now),
		Resolution: dimension(s.ResolutionDueAt, s.ClosedAt, resolutionBudget, now),
	}

	switch {
	case s.ClosedAt != nil:
		status.Overall = status.Resolution.State
	case s.FirstResponseAt == nil:
		status.Overall = status.Response.State
	default:
		status.Overall = status.Resolution.State
		if status.Overall == StateNone {
			status.Overall = status.Response.State
		}
	}

	switch {
	case status.Response.State == StateBreached || status.Resolution.State == StateBreached:
		status.Overall = StateBreached
	case status.Response.State == StateWarning || status.Resolution.State == StateWarning:
		status.Overall = StateWarning
	}
	return status
}

func dimension(dueAt, completedAt *time.Time, budgetMinutes int, now time.Time) DimensionStatus {
	ds := DimensionStatus{DueAt: dueAt, BudgetMinutes: budgetMinutes}
	if dueAt == nil {
		ds.State = StateNone
		return ds
	}
	if completedAt != nil {
		if completedAt.After(*dueAt) {
			ds.State = StateBreached
		} else {
			ds.State = StateMet
		}
		return ds
	}

	remaining := ceilMinutes(dueAt.Sub(now))
	switch {
	case remaining <= 0:
		remaining = 0
		ds.State = StateBreached
	case remaining <= WarningThreshold(budgetMinutes):
		ds.State = StateWarning
	default:
		ds.State = StateOK
	}
	ds.RemainingMinutes = &remaining
	return ds
}

// WarningThreshold is the trailing 20% of a budget, never below one minute.
func WarningThreshold(budgetMinutes int) int {
	threshold := (budgetMinutes + 4) / 5
	if threshold < 1 {
		return 1
	}
	return threshold
}

func ceilMinutes(d time.Duration) int {
	minutes := d / time.Minute
	if d%time.Minute > 0 {
		minutes++
	}
	return int(minutes)
}
