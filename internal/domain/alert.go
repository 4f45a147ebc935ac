package domain

import "time"

// AlertKind identifies an SLA event for a ticket.
type AlertKind string

const (
	AlertSLAResponseWarning    AlertKind = "SLA_RESPONSE_WARNING"
	AlertSLAResponseBreached   AlertKind = "SLA_RESPONSE_BREACHED"
	AlertSLAResolutionWarning  AlertKind = "SLA_RESOLUTION_WARNING"
	AlertSLAResolutionBreached AlertKind = "SLA_RESOLUTION_BREACHED"
)

// NotifiesAssignee reports whether the ticket assignee receives this alert
// in addition to supervisors.
func (k AlertKind) NotifiesAssignee() bool {
	switch k {
	case AlertSLAResponseWarning, AlertSLAResponseBreached,
		AlertSLAResolutionWarning, AlertSLAResolutionBreached:
		return true
	}
	return false
}

// IsBreach reports whether the kind marks a missed due date.
func (k AlertKind) IsBreach() bool {
	return k == AlertSLAResponseBreached || k == AlertSLAResolutionBreached
}

// Alert records that an SLA event was raised for a ticket. At most one exists
// per (TicketID, Kind).
type Alert struct {
	ID       string
	TicketID string
	Kind     AlertKind
	SentAt   time.Time
}

// AlertKey is the idempotency key of an Alert.
type AlertKey struct {
	TicketID string
	Kind     AlertKind
}

// Key returns the idempotency key.
func (a Alert) Key() AlertKey {
	return AlertKey{TicketID: a.TicketID, Kind: a.Kind}
}

// SLADimension names one of the two SLA clocks of a ticket.
type SLADimension string

const (
	SLADimensionResponse   SLADimension = "response"
	SLADimensionResolution SLADimension = "resolution"
)

// Dimension returns the SLA clock the alert kind belongs to.
func (k AlertKind) Dimension() SLADimension {
	if k == AlertSLAResponseWarning || k == AlertSLAResponseBreached {
		return SLADimensionResponse
	}
	return SLADimensionResolution
}
