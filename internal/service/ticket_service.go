package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/observability"
	"github.com/deskflow/helpdesk-service/internal/repository"
	"github.com/deskflow/helpdesk-service/internal/sla"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

// AutoAssigner picks an assignee for a new ticket, or nil for none.
type AutoAssigner interface {
	ResolveAutoAssignee(ctx context.Context, req AssignmentRequest) (*domain.User, error)
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	users       repository.UserRepository
	departments repository.DepartmentRepository
	history     repository.TicketHistoryRepository
	comments    repository.TicketCommentRepository
	alerts      repository.AlertRepository
	assigner    AutoAssigner
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         Clock
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	UserRepo       repository.UserRepository
	DepartmentRepo repository.DepartmentRepository
	HistoryRepo    repository.TicketHistoryRepository
	CommentRepo    repository.TicketCommentRepository
	AlertRepo      repository.AlertRepository
	Assigner       AutoAssigner
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	Clock          Clock
}

// TicketCreateInput describes ticket creation payload. The due date
// overrides replace the policy-derived due dates when set.
type TicketCreateInput struct {
	Title           string
	Description     string
	Type            string
	Priority        domain.TicketPriority
	DepartmentID    *string
	ResponseDueAt   *time.Time
	ResolutionDueAt *time.Time
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	Type         *string
	AssigneeID   *string
	DepartmentID *string
	SearchTerm   *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// TicketView is a ticket with its SLA status evaluated at read time.
type TicketView struct {
	Ticket domain.Ticket
	SLA    sla.Status
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	svc := &TicketService{
		tickets:     deps.TicketRepo,
		users:       deps.UserRepo,
		departments: deps.DepartmentRepo,
		history:     deps.HistoryRepo,
		comments:    deps.CommentRepo,
		alerts:      deps.AlertRepo,
		assigner:    deps.Assigner,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		now:         deps.Clock,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = systemClock
	}
	return svc
}

// CreateTicket opens a ticket for actor, fixes its SLA due dates and tries
// to auto-assign it. Resolver failures leave the ticket unassigned.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*TicketView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	priority := domain.TicketPriority(strings.ToUpper(strings.TrimSpace(string(input.Priority))))
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	details := map[string]any{}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		details["title"] = "required"
	}
	if !priority.Valid() {
		details["priority"] = "must be one of HIGH, MEDIUM, LOW"
	}
	now := s.now()
	if input.ResponseDueAt != nil && !input.ResponseDueAt.After(now) {
		details["response_due_at"] = "must be in the future"
	}
	if input.ResolutionDueAt != nil && !input.ResolutionDueAt.After(now) {
		details["resolution_due_at"] = "must be in the future"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}

	if input.DepartmentID != nil && *input.DepartmentID != "" {
		dept, err := s.departments.GetByID(ctx, *input.DepartmentID)
		if err != nil {
			return nil, lookupError(err, "department", "department_id", *input.DepartmentID)
		}
		if !dept.IsActive {
			return nil, apperrors.NewConflict("department inactive", map[string]any{"department_id": dept.ID})
		}
	}

	ticket := &domain.Ticket{
		Code:         generateTicketCode(),
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		Type:         strings.TrimSpace(input.Type),
		Priority:     priority,
		Status:       domain.TicketStatusCreated,
		RequesterID:  actor.ID,
		DepartmentID: input.DepartmentID,
		CreatedAt:    now,
	}
	if ticket.DepartmentID != nil && *ticket.DepartmentID == "" {
		ticket.DepartmentID = nil
	}
	sla.ComputeDueDates(priority, now).Apply(&ticket.SLA)
	if input.ResponseDueAt != nil {
		due := input.ResponseDueAt.UTC()
		ticket.SLA.ResponseDueAt = &due
	}
	if input.ResolutionDueAt != nil {
		due := input.ResolutionDueAt.UTC()
		ticket.SLA.ResolutionDueAt = &due
	}

	assignee := s.resolveAssignee(ctx, ticket)
	if assignee != nil {
		ticket.AssigneeID = &assignee.ID
		ticket.AssignedAt = &now
		ticket.Status = domain.TicketStatusAssigned
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	// The ticket is stored at this point; history failures are only logged.
	s.logHistoryFailure(ticket, s.recordHistory(ctx, &actor.ID, ticket.ID, domain.ChangeTypeCreated, nil, map[string]any{
		"status":   domain.TicketStatusCreated,
		"priority": ticket.Priority,
	}))
	s.publish(ctx, events.New(events.EventTicketCreated, ticket.ID, events.UserActor(actor.ID), now,
		events.TicketCreatedPayload{
			Code:        ticket.Code,
			Title:       ticket.Title,
			Type:        ticket.Type,
			Priority:    ticket.Priority,
			RequesterID: ticket.RequesterID,
			AssigneeID:  ticket.AssigneeID,
		}))

	if assignee != nil {
		s.logHistoryFailure(ticket, s.recordHistory(ctx, nil, ticket.ID, domain.ChangeTypeAssignee,
			map[string]any{"assignee_id": nil, "status": domain.TicketStatusCreated},
			map[string]any{"assignee_id": assignee.ID, "status": ticket.Status, "auto": true},
		))
		s.publish(ctx, events.New(events.EventTicketAssigned, ticket.ID, events.SystemActor, now,
			events.TicketAssignedPayload{
				Code:       ticket.Code,
				Title:      ticket.Title,
				AssigneeID: assignee.ID,
				Auto:       true,
			}))
	}

	return s.view(ticket, now), nil
}

func (s *TicketService) resolveAssignee(ctx context.Context, ticket *domain.Ticket) *domain.User {
	if s.assigner == nil {
		return nil
	}
	assignee, err := s.assigner.ResolveAutoAssignee(ctx, AssignmentRequest{Type: ticket.Type, Priority: ticket.Priority})
	if err != nil {
		s.metrics.RecordAutoAssignment("failed")
		s.logger.Error("auto-assignment failed; ticket left unassigned",
			zap.String("ticket_code", ticket.Code),
			zap.Error(err))
		return nil
	}
	if assignee == nil {
		s.metrics.RecordAutoAssignment("unassigned")
		return nil
	}
	s.metrics.RecordAutoAssignment("assigned")
	return assignee
}

// GetTicket returns a ticket the actor may see.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*TicketView, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	return s.view(ticket, s.now()), nil
}

// ListTickets lists tickets. Supervisors and admins see every ticket; other
// users only see tickets they requested or are assigned to.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, filter TicketListFilter) ([]TicketView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	repoFilter := repository.TicketFilter{
		Statuses:     filter.Statuses,
		Priorities:   filter.Priorities,
		Type:         filter.Type,
		AssigneeID:   filter.AssigneeID,
		DepartmentID: filter.DepartmentID,
		SearchTerm:   filter.SearchTerm,
		CreatedFrom:  filter.CreatedFrom,
		CreatedTo:    filter.CreatedTo,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}
	if !actor.Role.IsSupervisor() {
		repoFilter.VisibleTo = &actor.ID
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	now := s.now()
	views := make([]TicketView, 0, len(tickets))
	for i := range tickets {
		views = append(views, *s.view(&tickets[i], now))
	}
	return views, nil
}

// UpdateStatus moves a ticket through its lifecycle.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, ticketID string, next domain.TicketStatus) (*TicketView, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if !next.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": next})
	}
	if !canChangeStatus(actor, ticket, next) {
		return nil, apperrors.NewForbidden("not allowed to change ticket status")
	}
	if !isValidTransition(ticket.Status, next) {
		return nil, apperrors.NewConflict("invalid status transition", map[string]any{
			"from": ticket.Status,
			"to":   next,
		})
	}
	if next == domain.TicketStatusAssigned && ticket.AssigneeID == nil {
		return nil, apperrors.NewConflict("ticket has no assignee", map[string]any{"ticket_id": ticket.ID})
	}

	now := s.now()
	previous := ticket.Status
	ticket.Status = next
	switch next {
	case domain.TicketStatusStarted:
		if ticket.FirstResponseAt == nil {
			ticket.FirstResponseAt = &now
		}
	case domain.TicketStatusFinished:
		ticket.ClosedAt = &now
	case domain.TicketStatusReopened:
		ticket.ClosedAt = nil
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordHistory(ctx, &actor.ID, ticket.ID, domain.ChangeTypeStatus,
		map[string]any{"status": previous},
		map[string]any{"status": next},
	); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.New(events.EventTicketStatusChanged, ticket.ID, events.UserActor(actor.ID), now,
		events.TicketStatusChangedPayload{
			Code:        ticket.Code,
			OldStatus:   previous,
			NewStatus:   next,
			RequesterID: ticket.RequesterID,
			AssigneeID:  ticket.AssigneeID,
		}))
	return s.view(ticket, now), nil
}

// AssignTicket manually assigns a ticket (SUPERVISOR/ADMIN).
func (s *TicketService) AssignTicket(ctx context.Context, actor *domain.User, ticketID, assigneeID string) (*TicketView, error) {
	if err := requireSupervisor(actor); err != nil {
		return nil, err
	}
	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		return nil, lookupError(err, "user", "user_id", assigneeID)
	}
	if !assignee.Active {
		return nil, apperrors.NewConflict("assignee inactive", map[string]any{"user_id": assigneeID})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, lookupError(err, "ticket", "ticket_id", ticketID)
	}
	if ticket.Status == domain.TicketStatusFinished {
		return nil, apperrors.NewConflict("ticket is finished", map[string]any{"ticket_id": ticketID})
	}

	now := s.now()
	if ticket.IsAssignedTo(assignee.ID) {
		return s.view(ticket, now), nil
	}

	previousAssignee := ticket.AssigneeID
	previousStatus := ticket.Status
	ticket.AssigneeID = &assignee.ID
	ticket.AssignedAt = &now
	if ticket.Status == domain.TicketStatusCreated || ticket.Status == domain.TicketStatusReopened {
		ticket.Status = domain.TicketStatusAssigned
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordHistory(ctx, &actor.ID, ticket.ID, domain.ChangeTypeAssignee,
		map[string]any{"assignee_id": previousAssignee, "status": previousStatus},
		map[string]any{"assignee_id": assignee.ID, "status": ticket.Status},
	); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.New(events.EventTicketAssigned, ticket.ID, events.UserActor(actor.ID), now,
		events.TicketAssignedPayload{
			Code:               ticket.Code,
			Title:              ticket.Title,
			AssigneeID:         assignee.ID,
			PreviousAssigneeID: previousAssignee,
		}))
	return s.view(ticket, now), nil
}

// AddComment appends to the ticket thread. The first comment by anyone
// other than the requester counts as the first response.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.User, ticketID, body string) (*domain.TicketComment, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("invalid comment", map[string]any{"body": "required"})
	}

	comment := &domain.TicketComment{TicketID: ticket.ID, AuthorID: actor.ID, Body: body}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	now := s.now()
	if ticket.FirstResponseAt == nil && actor.ID != ticket.RequesterID {
		ticket.FirstResponseAt = &now
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	s.publish(ctx, events.New(events.EventTicketCommentAdded, ticket.ID, events.UserActor(actor.ID), now,
		events.TicketCommentAddedPayload{
			Code:        ticket.Code,
			CommentID:   comment.ID,
			AuthorID:    actor.ID,
			RequesterID: ticket.RequesterID,
			AssigneeID:  ticket.AssigneeID,
			BodyPreview: stringPreview(body, 120),
		}))
	return comment, nil
}

// ListComments returns the ticket thread, oldest first.
func (s *TicketService) ListComments(ctx context.Context, actor *domain.User, ticketID string, limit, offset int) ([]domain.TicketComment, error) {
	if _, err := s.loadVisible(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// DeleteTicket soft-deletes a ticket (ADMIN). Deleted tickets stop counting
// towards workload and SLA scans.
func (s *TicketService) DeleteTicket(ctx context.Context, actor *domain.User, ticketID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return lookupError(err, "ticket", "ticket_id", ticketID)
	}
	if err := s.recordHistory(ctx, &actor.ID, ticket.ID, domain.ChangeTypeDeleted,
		map[string]any{"status": ticket.Status}, nil); err != nil {
		return apperrors.MapError(err)
	}
	if err := s.tickets.SoftDelete(ctx, ticket.ID, s.now()); err != nil {
		return lookupError(err, "ticket", "ticket_id", ticketID)
	}
	return nil
}

// ListHistory returns the audit trail of a ticket.
func (s *TicketService) ListHistory(ctx context.Context, actor *domain.User, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.loadVisible(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// ListAlerts returns the SLA alerts raised for a ticket.
func (s *TicketService) ListAlerts(ctx context.Context, actor *domain.User, ticketID string) ([]domain.Alert, error) {
	if _, err := s.loadVisible(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	alerts, err := s.alerts.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return alerts, nil
}

func (s *TicketService) loadVisible(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, lookupError(err, "ticket", "ticket_id", ticketID)
	}
	if !canView(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

func (s *TicketService) view(ticket *domain.Ticket, now time.Time) *TicketView {
	return &TicketView{Ticket: *ticket, SLA: sla.ComputeStatus(sla.SnapshotOf(ticket), now)}
}

func (s *TicketService) recordHistory(ctx context.Context, actorID *string, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) error {
	if s.history == nil {
		return nil
	}
	if err := s.history.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: actorID,
		ChangeType:  changeType,
		OldValue:    oldValue,
		NewValue:    newValue,
	}); err != nil {
		return fmt.Errorf("record %s history: %w", changeType, err)
	}
	return nil
}

func (s *TicketService) logHistoryFailure(ticket *domain.Ticket, err error) {
	if err == nil {
		return
	}
	s.logger.Warn("ticket history write failed",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_code", ticket.Code),
		zap.Error(err))
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func canView(actor *domain.User, ticket *domain.Ticket) bool {
	return actor.Role.IsSupervisor() || ticket.RequesterID == actor.ID || ticket.IsAssignedTo(actor.ID)
}

// canChangeStatus lets supervisors and the assignee drive the workflow. The
// requester may only validate a pending ticket or reopen a finished one.
func canChangeStatus(actor *domain.User, ticket *domain.Ticket, next domain.TicketStatus) bool {
	if actor.Role.IsSupervisor() || ticket.IsAssignedTo(actor.ID) {
		return true
	}
	if ticket.RequesterID != actor.ID {
		return false
	}
	return ticket.Status == domain.TicketStatusPendingValidation || next == domain.TicketStatusReopened
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusCreated:           {domain.TicketStatusAssigned, domain.TicketStatusStarted},
	domain.TicketStatusAssigned:          {domain.TicketStatusStarted},
	domain.TicketStatusStarted:           {domain.TicketStatusPendingValidation},
	domain.TicketStatusPendingValidation: {domain.TicketStatusFinished, domain.TicketStatusStarted},
	domain.TicketStatusFinished:          {domain.TicketStatusReopened},
	domain.TicketStatusReopened:          {domain.TicketStatusAssigned, domain.TicketStatusStarted},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func generateTicketCode() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
