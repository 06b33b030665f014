package events

import (
	"time"

	"github.com/fleetops/maintenance-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated            EventType = "ticket_created"
	EventTicketStatusChanged      EventType = "ticket_status_changed"
	EventTicketResponsibleChanged EventType = "ticket_responsible_changed"
	EventTicketFaultTypeChanged   EventType = "ticket_fault_type_changed"
	EventEstimatedSolutionAdded   EventType = "estimated_solution_added"
	EventTicketCommentAdded       EventType = "ticket_comment_added"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  int64     `json:"ticket_id"`
	ActorID   *int64    `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	InstallationID int64            `json:"installation_id"`
	ResponsibleID  *int64           `json:"responsible_id,omitempty"`
	FaultType      domain.FaultType `json:"fault_type"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketResponsibleChangedPayload payload.
type TicketResponsibleChangedPayload struct {
	OldResponsibleName string `json:"old_responsible_name"`
	NewResponsibleName string `json:"new_responsible_name"`
}

// TicketFaultTypeChangedPayload payload.
type TicketFaultTypeChangedPayload struct {
	InstallationID int64            `json:"installation_id"`
	OldFaultType   domain.FaultType `json:"old_fault_type"`
	NewFaultType   domain.FaultType `json:"new_fault_type"`
}

// EstimatedSolutionAddedPayload payload.
type EstimatedSolutionAddedPayload struct {
	EstimateID int64     `json:"estimate_id"`
	Date       time.Time `json:"date"`
	Comment    string    `json:"comment,omitempty"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	EntryID     int64  `json:"entry_id"`
	BodyPreview string `json:"body_preview"`
}
