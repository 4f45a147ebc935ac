package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketCommentAdded  EventType = "ticket_comment_added"
	EventSLAAlertRaised      EventType = "sla_alert_raised"
)

// Actor identifies who caused an event. A nil UserID means the system.
type Actor struct {
	UserID *string `json:"user_id,omitempty"`
}

// SystemActor is the actor of scheduler and auto-assignment events.
var SystemActor = Actor{}

// UserActor returns an actor for the given user.
func UserActor(userID string) Actor {
	return Actor{UserID: &userID}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New builds an event with a fresh id.
func New(eventType EventType, ticketID string, actor Actor, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: at,
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Code        string                `json:"code"`
	Title       string                `json:"title"`
	Type        string                `json:"type"`
	Priority    domain.TicketPriority `json:"priority"`
	RequesterID string                `json:"requester_id"`
	AssigneeID  *string               `json:"assignee_id,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	Code        string              `json:"code"`
	OldStatus   domain.TicketStatus `json:"old_status"`
	NewStatus   domain.TicketStatus `json:"new_status"`
	RequesterID string              `json:"requester_id"`
	AssigneeID  *string             `json:"assignee_id,omitempty"`
}

// TicketAssignedPayload payload. Auto is set when the resolver picked the assignee.
type TicketAssignedPayload struct {
	Code               string  `json:"code"`
	Title              string  `json:"title"`
	AssigneeID         string  `json:"assignee_id"`
	PreviousAssigneeID *string `json:"previous_assignee_id,omitempty"`
	Auto               bool    `json:"auto"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	Code        string  `json:"code"`
	CommentID   string  `json:"comment_id"`
	AuthorID    string  `json:"author_id"`
	RequesterID string  `json:"requester_id"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	BodyPreview string  `json:"body_preview"`
}

// SLAAlertRaisedPayload payload.
type SLAAlertRaisedPayload struct {
	AlertID    string           `json:"alert_id"`
	Code       string           `json:"code"`
	Kind       domain.AlertKind `json:"kind"`
	Recipients int              `json:"recipients"`
}
