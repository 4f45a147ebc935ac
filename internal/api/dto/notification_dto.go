package dto

import (
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// NotificationResponse represents an inbox entry.
type NotificationResponse struct {
	ID            string                  `json:"id"`
	Kind          domain.NotificationKind `json:"kind"`
	Title         string                  `json:"title"`
	Message       string                  `json:"message"`
	ReferenceType string                  `json:"reference_type"`
	ReferenceID   string                  `json:"reference_id"`
	CreatedAt     time.Time               `json:"created_at"`
	ReadAt        *time.Time              `json:"read_at"`
}

// ScanResponse reports a manual SLA scan.
type ScanResponse struct {
	Scanned int `json:"scanned"`
	Alerts  int `json:"alerts"`
}
