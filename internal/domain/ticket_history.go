package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeCreated      TicketChangeType = "CREATED"
	ChangeTypeStatus       TicketChangeType = "STATUS_CHANGE"
	ChangeTypeResponsible  TicketChangeType = "RESPONSIBLE_CHANGE"
	ChangeTypeFaultType    TicketChangeType = "FAULT_TYPE_CHANGE"
	ChangeTypeEstimate     TicketChangeType = "ESTIMATED_SOLUTION_ADDED"
	ChangeTypeRealSolution TicketChangeType = "REAL_SOLUTION_CHANGE"
	ChangeTypeDescription  TicketChangeType = "DESCRIPTION_CHANGE"
	ChangeTypeActions      TicketChangeType = "ACTIONS_TAKEN_CHANGE"
	ChangeTypeComment      TicketChangeType = "COMMENT_ADDED"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID          int64
	TicketID    int64
	ChangedByID *int64
	ChangeType  TicketChangeType
	OldValue    map[string]any
	NewValue    map[string]any
	CreatedAt   time.Time
}
