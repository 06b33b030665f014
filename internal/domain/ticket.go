package domain

import "time"

// TicketStatus enumerates lifecycle states for maintenance tickets.
type TicketStatus string

const (
	TicketStatusRequested TicketStatus = "SOLICITADO"
	TicketStatusInProcess TicketStatus = "EN_PROCESO"
	TicketStatusCompleted TicketStatus = "COMPLETADO"
	TicketStatusCancelled TicketStatus = "CANCELADO"
)

// IsTerminal reports whether no further transitions are allowed.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusCompleted || s == TicketStatusCancelled
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusRequested, TicketStatusInProcess, TicketStatusCompleted, TicketStatusCancelled:
		return true
	}
	return false
}

// Label is the display name used in reports.
func (s TicketStatus) Label() string {
	switch s {
	case TicketStatusRequested:
		return "Solicitado"
	case TicketStatusInProcess:
		return "En proceso"
	case TicketStatusCompleted:
		return "Completado"
	case TicketStatusCancelled:
		return "Cancelado"
	}
	return string(s)
}

// OpenStatuses are the non-terminal statuses.
var OpenStatuses = []TicketStatus{TicketStatusInProcess, TicketStatusRequested}

// FaultType is the fault category of a ticket. Custom types are allowed.
type FaultType string

const (
	FaultTypeOrdinary    FaultType = "Ordinaria"
	FaultTypeEquipment   FaultType = "Equipo"
	FaultTypeOperational FaultType = "Operativa"
)

// EstimatedSolution is a target resolution date appended to a ticket.
type EstimatedSolution struct {
	ID        int64
	TicketID  int64
	Date      time.Time
	Comment   string
	CreatedAt time.Time
}

// MaintenanceTicket is the aggregate for a reported fault.
type MaintenanceTicket struct {
	ID               int64
	Folio            string
	InstallationID   int64
	InstallationName string
	EquipmentName    string
	EquipmentSubarea string
	ResponsibleID    *int64
	ResponsibleName  string
	ResponsibleEmail string
	FaultType        FaultType
	Description      string
	ActionsTaken     string
	Status           TicketStatus
	RealSolution     *time.Time
	CreatedByID      *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	// EstimatedSolutions is ordered most recently added first.
	EstimatedSolutions []EstimatedSolution
}

// CurrentEstimate returns the authoritative estimate, if any.
func (t *MaintenanceTicket) CurrentEstimate() (EstimatedSolution, bool) {
	if len(t.EstimatedSolutions) == 0 {
		return EstimatedSolution{}, false
	}
	return t.EstimatedSolutions[0], true
}

// ActionLogEntry is a free-text comment recorded against a ticket.
type ActionLogEntry struct {
	ID        int64
	TicketID  int64
	AuthorID  *int64
	Comment   string
	CreatedAt time.Time
}

// TicketStats summarizes the ticket backlog.
type TicketStats struct {
	Requested           int `json:"requested"`
	InProcess           int `json:"in_process"`
	Overdue             int `json:"overdue"`
	CompletedLast30Days int `json:"completed_last_30_days"`
}
