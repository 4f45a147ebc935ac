package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/observability"
	"github.com/deskflow/helpdesk-service/internal/repository"
	"github.com/deskflow/helpdesk-service/internal/sla"
)

// AlertService scans open tickets and raises SLA alerts with their notifications.
type AlertService struct {
	tickets    repository.TicketRepository
	alerts     repository.AlertRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        Clock
}

// AlertDependencies bundles collaborators for AlertService.
type AlertDependencies struct {
	TicketRepo repository.TicketRepository
	AlertRepo  repository.AlertRepository
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      Clock
}

// ScanResult summarizes one alert scan.
type ScanResult struct {
	Scanned int `json:"scanned"`
	Alerts  int `json:"alerts"`
}

// NewAlertService creates the service.
func NewAlertService(deps AlertDependencies) *AlertService {
	svc := &AlertService{
		tickets:    deps.TicketRepo,
		alerts:     deps.AlertRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = systemClock
	}
	return svc
}

// ScanOnce evaluates every open ticket and raises each SLA alert kind at most
// once per ticket. Notifications go out only for alerts this scan inserted.
func (s *AlertService) ScanOnce(ctx context.Context) (ScanResult, error) {
	started := time.Now()
	result, kinds, err := s.scan(ctx)
	s.metrics.RecordSLAScan(result.Scanned, kinds, time.Since(started), err)
	return result, err
}

type scannedTicket struct {
	ticket *domain.Ticket
	status sla.Status
}

func (s *AlertService) scan(ctx context.Context) (ScanResult, []string, error) {
	now := s.now()

	tickets, err := s.tickets.ListOpen(ctx)
	if err != nil {
		return ScanResult{}, nil, fmt.Errorf("list open tickets: %w", err)
	}
	result := ScanResult{Scanned: len(tickets)}
	if len(tickets) == 0 {
		return result, nil, nil
	}

	ids := make([]string, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
	}
	keys, err := s.alerts.ListKeysForTickets(ctx, ids)
	if err != nil {
		return result, nil, fmt.Errorf("list existing alerts: %w", err)
	}
	sent := make(map[domain.AlertKey]struct{}, len(keys))
	for _, key := range keys {
		sent[key] = struct{}{}
	}

	supervisors, err := s.users.List(ctx, repository.UserFilter{
		Roles:  []domain.UserRole{domain.UserRoleAdmin, domain.UserRoleSupervisor},
		Active: ptrBool(true),
	})
	if err != nil {
		return result, nil, fmt.Errorf("list supervisors: %w", err)
	}

	scanned := make(map[string]scannedTicket, len(tickets))
	var pending []domain.Alert
	for i := range tickets {
		ticket := &tickets[i]
		status := sla.ComputeStatus(sla.SnapshotOf(ticket), now)
		scanned[ticket.ID] = scannedTicket{ticket: ticket, status: status}

		for _, kind := range alertKindsFor(ticket, status) {
			key := domain.AlertKey{TicketID: ticket.ID, Kind: kind}
			if _, ok := sent[key]; ok {
				continue
			}
			sent[key] = struct{}{}
			pending = append(pending, domain.Alert{TicketID: ticket.ID, Kind: kind, SentAt: now})
		}
	}

	var notifications []domain.Notification
	var recipientCounts []int
	inserted, err := s.alerts.InsertWithNotifications(ctx, pending, func(inserted []domain.Alert) []domain.Notification {
		notifications = nil
		recipientCounts = make([]int, len(inserted))
		for i, alert := range inserted {
			entry := scanned[alert.TicketID]
			recipients := alertRecipients(supervisors, entry.ticket, alert.Kind)
			recipientCounts[i] = len(recipients)
			for _, recipientID := range recipients {
				notifications = append(notifications, alertNotification(recipientID, entry.ticket, entry.status, alert.Kind, now))
			}
		}
		return notifications
	})
	if err != nil {
		return result, nil, fmt.Errorf("insert alerts: %w", err)
	}
	result.Alerts = len(inserted)

	kinds := make([]string, len(inserted))
	for i, alert := range inserted {
		kinds[i] = string(alert.Kind)
		entry := scanned[alert.TicketID]
		if alert.Kind.IsBreach() {
			s.markBreached(ctx, entry.ticket, alert.Kind.Dimension(), now)
		}
		s.publish(ctx, events.New(events.EventSLAAlertRaised, alert.TicketID, events.SystemActor, now,
			events.SLAAlertRaisedPayload{
				AlertID:    alert.ID,
				Code:       entry.ticket.Code,
				Kind:       alert.Kind,
				Recipients: recipientCounts[i],
			}))
	}

	if result.Alerts > 0 {
		s.logger.Info("sla alerts raised",
			zap.Int("scanned", result.Scanned),
			zap.Int("alerts", result.Alerts),
			zap.Int("notifications", len(notifications)))
	}
	return result, kinds, nil
}

// alertKindsFor lists the alert kinds the ticket's status currently calls for.
// Completed dimensions never alert.
func alertKindsFor(ticket *domain.Ticket, status sla.Status) []domain.AlertKind {
	var kinds []domain.AlertKind
	if ticket.FirstResponseAt == nil {
		switch status.Response.State {
		case sla.StateBreached:
			kinds = append(kinds, domain.AlertSLAResponseBreached)
		case sla.StateWarning:
			kinds = append(kinds, domain.AlertSLAResponseWarning)
		}
	}
	if ticket.ClosedAt == nil {
		switch status.Resolution.State {
		case sla.StateBreached:
			kinds = append(kinds, domain.AlertSLAResolutionBreached)
		case sla.StateWarning:
			kinds = append(kinds, domain.AlertSLAResolutionWarning)
		}
	}
	return kinds
}

// alertRecipients returns supervisors plus, when the kind calls for it, the
// assignee. Each user appears once.
func alertRecipients(supervisors []domain.User, ticket *domain.Ticket, kind domain.AlertKind) []string {
	seen := make(map[string]struct{}, len(supervisors)+1)
	recipients := make([]string, 0, len(supervisors)+1)
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}
	for _, supervisor := range supervisors {
		add(supervisor.ID)
	}
	if kind.NotifiesAssignee() && ticket.AssigneeID != nil {
		add(*ticket.AssigneeID)
	}
	return recipients
}

func alertNotification(recipientID string, ticket *domain.Ticket, status sla.Status, kind domain.AlertKind, now time.Time) domain.Notification {
	dim := status.Resolution
	if kind.Dimension() == domain.SLADimensionResponse {
		dim = status.Response
	}
	due := "unknown"
	if dim.DueAt != nil {
		due = dim.DueAt.UTC().Format(time.RFC3339)
	}

	n := domain.Notification{
		RecipientID:   recipientID,
		Kind:          domain.NotificationKindWarning,
		ReferenceType: domain.ReferenceTypeTicket,
		ReferenceID:   ticket.ID,
		CreatedAt:     now,
	}
	switch kind {
	case domain.AlertSLAResponseWarning:
		n.Title = "SLA response due soon"
		n.Message = fmt.Sprintf("Ticket %s (%s) needs a first response by %s.", ticket.Code, ticket.Title, due)
	case domain.AlertSLAResponseBreached:
		n.Kind = domain.NotificationKindError
		n.Title = "SLA response breached"
		n.Message = fmt.Sprintf("Ticket %s (%s) missed its first response due at %s.", ticket.Code, ticket.Title, due)
	case domain.AlertSLAResolutionWarning:
		n.Title = "SLA resolution due soon"
		n.Message = fmt.Sprintf("Ticket %s (%s) must be resolved by %s.", ticket.Code, ticket.Title, due)
	case domain.AlertSLAResolutionBreached:
		n.Kind = domain.NotificationKindError
		n.Title = "SLA resolution breached"
		n.Message = fmt.Sprintf("Ticket %s (%s) missed its resolution due at %s.", ticket.Code, ticket.Title, due)
	}
	return n
}

// markBreached stamps the breach time on the ticket. A failure only costs the
// stamp, so it is logged rather than failing the scan.
func (s *AlertService) markBreached(ctx context.Context, ticket *domain.Ticket, dimension domain.SLADimension, at time.Time) {
	if err := s.tickets.MarkBreached(ctx, ticket.ID, dimension, at); err != nil {
		s.logger.Warn("mark sla breach failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("dimension", string(dimension)),
			zap.Error(err))
	}
}

func (s *AlertService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}
