package domain

import "time"

// NotificationKind is the severity shown by notification consumers.
type NotificationKind string

const (
	NotificationKindInfo    NotificationKind = "info"
	NotificationKindWarning NotificationKind = "warning"
	NotificationKindError   NotificationKind = "error"
)

// ReferenceTypeTicket marks notifications that point at a ticket.
const ReferenceTypeTicket = "TICKET"

// Notification is an inbox entry for a single recipient.
type Notification struct {
	ID            string
	RecipientID   string
	Kind          NotificationKind
	Title         string
	Message       string
	ReferenceType string
	ReferenceID   string
	CreatedAt     time.Time
	ReadAt        *time.Time
}
