package dto

import (
	"time"

	"github.com/fleetops/maintenance-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	InstallationID   int64  `json:"installation_id" validate:"required,gt=0"`
	EquipmentName    string `json:"equipment_name" validate:"required,max=200"`
	EquipmentSubarea string `json:"equipment_subarea" validate:"max=200"`
	ResponsibleID    *int64 `json:"responsible_id" validate:"omitempty,gt=0"`
	FaultType        string `json:"fault_type" validate:"required,max=50"`
	Description      string `json:"description" validate:"required"`
	ActionsTaken     string `json:"actions_taken"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=SOLICITADO EN_PROCESO COMPLETADO CANCELADO"`
}

// UpdateResponsibleRequest payload.
type UpdateResponsibleRequest struct {
	ResponsibleID int64 `json:"responsible_id" validate:"required,gt=0"`
}

// UpdateFaultTypeRequest payload.
type UpdateFaultTypeRequest struct {
	FaultType string `json:"fault_type" validate:"required,max=50"`
}

// UpdateDetailsRequest payload. Omitted fields are left unchanged.
type UpdateDetailsRequest struct {
	EquipmentName    *string `json:"equipment_name" validate:"omitempty,max=200"`
	EquipmentSubarea *string `json:"equipment_subarea" validate:"omitempty,max=200"`
	Description      *string `json:"description"`
	ActionsTaken     *string `json:"actions_taken"`
}

// AddEstimateRequest payload.
type AddEstimateRequest struct {
	Date    time.Time `json:"date" validate:"required"`
	Comment string    `json:"comment" validate:"max=500"`
}

// AddCommentRequest payload.
type AddCommentRequest struct {
	Comment string `json:"comment" validate:"required,max=2000"`
}

// EstimateResponse describes an estimated solution date.
type EstimateResponse struct {
	ID        int64     `json:"id"`
	Date      time.Time `json:"date"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ProgressResponse is the deadline classification as of the request.
type ProgressResponse struct {
	Percentage float64 `json:"percentage"`
	Bucket     string  `json:"bucket"`
}

// TicketResponse describes a maintenance ticket.
type TicketResponse struct {
	ID               int64               `json:"id"`
	Folio            string              `json:"folio"`
	InstallationID   int64               `json:"installation_id"`
	InstallationName string              `json:"installation_name"`
	EquipmentName    string              `json:"equipment_name"`
	EquipmentSubarea string              `json:"equipment_subarea"`
	ResponsibleID    *int64              `json:"responsible_id"`
	ResponsibleName  string              `json:"responsible_name,omitempty"`
	FaultType        domain.FaultType    `json:"fault_type"`
	Description      string              `json:"description"`
	ActionsTaken     string              `json:"actions_taken"`
	Status           domain.TicketStatus `json:"status"`
	RealSolution     *time.Time          `json:"real_solution"`
	Link             string              `json:"link,omitempty"`
	Progress         *ProgressResponse   `json:"progress,omitempty"`
	Estimates        []EstimateResponse  `json:"estimated_solutions"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// PendingTicketResponse is a ticket with days left to its current estimate.
type PendingTicketResponse struct {
	Ticket        TicketResponse `json:"ticket"`
	TargetDate    time.Time      `json:"target_date"`
	DaysRemaining int            `json:"days_remaining"`
}

// CommentResponse describes an action log entry.
type CommentResponse struct {
	ID        int64     `json:"id"`
	AuthorID  *int64    `json:"author_id"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketHistoryResponse describes an audit entry.
type TicketHistoryResponse struct {
	ID          int64                   `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID *int64                  `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// NotificationResponse describes a generated notification.
type NotificationResponse struct {
	ID        int64                      `json:"id"`
	TicketID  int64                      `json:"ticket_id"`
	Type      domain.NotificationType    `json:"type"`
	Title     string                     `json:"title"`
	Message   string                     `json:"message"`
	Group     domain.NotificationGroupID `json:"notification_group_id"`
	CreatedAt time.Time                  `json:"created_at"`
}

// CreateInstallationRequest payload.
type CreateInstallationRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	FolioCode string `json:"folio_code" validate:"required,alphanum,max=10"`
}
