package domain

import "time"

// Token represents the verified metadata of a bearer token.
type Token struct {
	ID        string
	SubjectID string
	Role      UserRole
	ExpiresAt time.Time
	IssuedAt  time.Time
}
