package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/repository"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

// NotificationService turns ticket events into inbox notifications and
// serves each user's inbox.
type NotificationService struct {
	dispatcher    events.Dispatcher
	notifications repository.NotificationRepository
	logger        *zap.Logger
	cfg           config.NotificationConfig
	httpClient    *http.Client
	now           Clock
}

// NotificationDependencies bundles collaborators for NotificationService.
type NotificationDependencies struct {
	Dispatcher       events.Dispatcher
	NotificationRepo repository.NotificationRepository
	Logger           *zap.Logger
	Config           config.NotificationConfig
	HTTPClient       *http.Client
	Clock            Clock
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	svc := &NotificationService{
		dispatcher:    deps.Dispatcher,
		notifications: deps.NotificationRepo,
		logger:        deps.Logger,
		cfg:           deps.Config,
		httpClient:    deps.HTTPClient,
		now:           deps.Clock,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = systemClock
	}
	if svc.httpClient == nil {
		svc.httpClient = &http.Client{Timeout: svc.cfg.WebhookTimeout()}
	}
	return svc
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketCommentAdded, n.handleTicketCommentAdded)
	n.dispatcher.Subscribe(events.EventSLAAlertRaised, n.handleSLAAlertRaised)
}

// ListForUser returns the actor's notifications, newest first.
func (n *NotificationService) ListForUser(ctx context.Context, actor *domain.User, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	items, err := n.notifications.ListByRecipient(ctx, actor.ID, unreadOnly, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// MarkRead marks one of the actor's notifications as read.
func (n *NotificationService) MarkRead(ctx context.Context, actor *domain.User, id string) (*domain.Notification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	item, err := n.notifications.MarkRead(ctx, id, actor.ID, n.now())
	if err != nil {
		return nil, lookupError(err, "notification", "notification_id", id)
	}
	return item, nil
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.deliverWebhook(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("TicketAssigned", zap.String("ticket_id", event.TicketID), zap.String("assignee_id", payload.AssigneeID))
	n.deliverWebhook(ctx, event)

	if isActor(event.Actor, payload.AssigneeID) {
		return nil
	}
	message := fmt.Sprintf("Ticket %s (%s) was assigned to you.", payload.Code, payload.Title)
	if payload.Auto {
		message = fmt.Sprintf("Ticket %s (%s) was automatically assigned to you.", payload.Code, payload.Title)
	}
	return n.store(ctx, event.TicketID, "Ticket assigned", message, payload.AssigneeID)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.TicketID),
		zap.String("old_status", string(payload.OldStatus)),
		zap.String("new_status", string(payload.NewStatus)))
	n.deliverWebhook(ctx, event)

	message := fmt.Sprintf("Ticket %s moved from %s to %s.", payload.Code, payload.OldStatus, payload.NewStatus)
	recipients := []string{payload.RequesterID}
	if payload.AssigneeID != nil {
		recipients = append(recipients, *payload.AssigneeID)
	}
	return n.store(ctx, event.TicketID, "Ticket status updated", message, n.excludeActor(event.Actor, recipients)...)
}

func (n *NotificationService) handleTicketCommentAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCommentAddedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("TicketCommentAdded", zap.String("ticket_id", event.TicketID), zap.String("comment_id", payload.CommentID))
	n.deliverWebhook(ctx, event)

	message := fmt.Sprintf("New comment on ticket %s: %s", payload.Code, payload.BodyPreview)
	recipients := []string{payload.RequesterID}
	if payload.AssigneeID != nil {
		recipients = append(recipients, *payload.AssigneeID)
	}
	return n.store(ctx, event.TicketID, "New comment", message, n.excludeActor(event.Actor, recipients)...)
}

// handleSLAAlertRaised only forwards the event to the webhook; the alert
// engine stores SLA notifications itself in one batch.
func (n *NotificationService) handleSLAAlertRaised(ctx context.Context, event events.Event) error {
	n.logger.Info("SLAAlertRaised", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.deliverWebhook(ctx, event)
	return nil
}

func (n *NotificationService) store(ctx context.Context, ticketID, title, message string, recipients ...string) error {
	if n.notifications == nil || len(recipients) == 0 {
		return nil
	}
	now := n.now()
	seen := make(map[string]struct{}, len(recipients))
	batch := make([]domain.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		if _, dup := seen[recipient]; dup {
			continue
		}
		seen[recipient] = struct{}{}
		batch = append(batch, domain.Notification{
			RecipientID:   recipient,
			Kind:          domain.NotificationKindInfo,
			Title:         title,
			Message:       message,
			ReferenceType: domain.ReferenceTypeTicket,
			ReferenceID:   ticketID,
			CreatedAt:     now,
		})
	}
	if len(batch) == 1 {
		return n.notifications.Create(ctx, &batch[0])
	}
	return n.notifications.CreateBatch(ctx, batch)
}

func (n *NotificationService) excludeActor(actor events.Actor, recipients []string) []string {
	out := make([]string, 0, len(recipients))
	for _, recipient := range recipients {
		if !isActor(actor, recipient) {
			out = append(out, recipient)
		}
	}
	return out
}

func isActor(actor events.Actor, userID string) bool {
	return actor.UserID != nil && *actor.UserID == userID
}

// deliverWebhook posts the event as JSON to the configured webhook. Delivery
// failures are logged and never block inbox notifications.
func (n *NotificationService) deliverWebhook(ctx context.Context, event events.Event) {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return
	}
	if err := n.postWebhook(ctx, url, event); err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return
	}
	n.logger.Debug("webhook delivered",
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) postWebhook(ctx context.Context, url string, event events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.WebhookTimeout())
	defer cancel()

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Helpdesk-Event", string(event.Type))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}
