package domain

import "time"

// Department is an organizational unit that tickets and users can belong to.
type Department struct {
	ID          string
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
