package domain

import "time"

// TicketComment is a message in a ticket thread.
type TicketComment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}
