package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fleetops/maintenance-service/internal/domain"
	"github.com/fleetops/maintenance-service/internal/escalation"
	"github.com/fleetops/maintenance-service/internal/events"
	"github.com/fleetops/maintenance-service/internal/repository"
	apperrors "github.com/fleetops/maintenance-service/pkg/util/errorutil"
)

// MaintenanceService coordinates maintenance ticket workflows.
type MaintenanceService struct {
	tickets       repository.TicketRepository
	installations repository.InstallationRepository
	responsibles  repository.ResponsibleRepository
	actionLogs    repository.ActionLogRepository
	history       repository.TicketHistoryRepository
	dispatcher    events.Dispatcher
	now           func() time.Time
}

// MaintenanceDependencies bundles repositories for the maintenance service.
type MaintenanceDependencies struct {
	TicketRepo       repository.TicketRepository
	InstallationRepo repository.InstallationRepository
	ResponsibleRepo  repository.ResponsibleRepository
	ActionLogRepo    repository.ActionLogRepository
	HistoryRepo      repository.TicketHistoryRepository
	Dispatcher       events.Dispatcher
	Clock            func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	InstallationID   int64
	EquipmentName    string
	EquipmentSubarea string
	ResponsibleID    *int64
	FaultType        domain.FaultType
	Description      string
	ActionsTaken     string
}

// TicketDetailsInput carries optional free-text edits.
type TicketDetailsInput struct {
	EquipmentName    *string
	EquipmentSubarea *string
	Description      *string
	ActionsTaken     *string
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	InstallationID *int64
	ResponsibleID  *int64
	Statuses       []domain.TicketStatus
	FaultTypes     []domain.FaultType
	SearchTerm     *string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Limit          int
	Offset         int
}

// PendingTicket is an in-process ticket with the days left to its current estimate.
type PendingTicket struct {
	Ticket        domain.MaintenanceTicket
	TargetDate    time.Time
	DaysRemaining int
}

// NewMaintenanceService constructs the service.
func NewMaintenanceService(deps MaintenanceDependencies) *MaintenanceService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &MaintenanceService{
		tickets:       deps.TicketRepo,
		installations: deps.InstallationRepo,
		responsibles:  deps.ResponsibleRepo,
		actionLogs:    deps.ActionLogRepo,
		history:       deps.HistoryRepo,
		dispatcher:    deps.Dispatcher,
		now:           clock,
	}
}

// Create registers a new ticket in SOLICITADO.
func (s *MaintenanceService) Create(ctx context.Context, actorID *int64, input TicketCreateInput) (*domain.MaintenanceTicket, error) {
	faultType := domain.FaultType(strings.TrimSpace(string(input.FaultType)))
	if faultType == "" {
		return nil, apperrors.NewValidationError("fault type is required", nil)
	}
	inst, err := s.installations.GetByID(ctx, input.InstallationID)
	if err != nil {
		return nil, notFound(err, "installation", input.InstallationID)
	}
	ticket := &domain.MaintenanceTicket{
		InstallationID:   inst.ID,
		InstallationName: inst.Name,
		EquipmentName:    strings.TrimSpace(input.EquipmentName),
		EquipmentSubarea: strings.TrimSpace(input.EquipmentSubarea),
		FaultType:        faultType,
		Description:      strings.TrimSpace(input.Description),
		ActionsTaken:     strings.TrimSpace(input.ActionsTaken),
		Status:           domain.TicketStatusRequested,
		CreatedByID:      actorID,
	}
	if input.ResponsibleID != nil {
		responsible, err := s.responsibles.GetByID(ctx, *input.ResponsibleID)
		if err != nil {
			return nil, notFound(err, "responsible", *input.ResponsibleID)
		}
		ticket.ResponsibleID = &responsible.ID
		ticket.ResponsibleName = responsible.Name
		ticket.ResponsibleEmail = responsible.Email
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	if err := s.recordChange(ctx, actorID, ticket.ID, domain.ChangeTypeCreated, nil, map[string]any{
		"status":     ticket.Status,
		"fault_type": ticket.FaultType,
	}); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.TicketCreatedPayload{
			InstallationID: ticket.InstallationID,
			ResponsibleID:  ticket.ResponsibleID,
			FaultType:      ticket.FaultType,
		},
	})
	return ticket, nil
}

// Get fetches a single ticket.
func (s *MaintenanceService) Get(ctx context.Context, id int64) (*domain.MaintenanceTicket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "ticket", id)
	}
	return ticket, nil
}

// List returns tickets matching the filter.
func (s *MaintenanceService) List(ctx context.Context, filter TicketListFilter) ([]domain.MaintenanceTicket, error) {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, apperrors.NewValidationError("invalid status filter", map[string]any{"status": status})
		}
	}
	return s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		InstallationID: filter.InstallationID,
		ResponsibleID:  filter.ResponsibleID,
		Statuses:       filter.Statuses,
		FaultTypes:     filter.FaultTypes,
		SearchTerm:     filter.SearchTerm,
		CreatedFrom:    filter.CreatedFrom,
		CreatedTo:      filter.CreatedTo,
		Limit:          filter.Limit,
		Offset:         filter.Offset,
	})
}

// UpdateStatus moves a ticket through its lifecycle.
func (s *MaintenanceService) UpdateStatus(ctx context.Context, actorID *int64, id int64, newStatus domain.TicketStatus) (*domain.MaintenanceTicket, error) {
	if !newStatus.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": newStatus})
	}
	ticket, err := s.mutable(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isValidTransition(ticket.Status, newStatus) {
		return nil, apperrors.NewConflict("invalid status transition", map[string]any{
			"from": ticket.Status,
			"to":   newStatus,
		})
	}
	if err := s.applyStatus(ctx, actorID, ticket, newStatus); err != nil {
		return nil, err
	}
	return ticket, nil
}

// UpdateResponsible reassigns the ticket.
func (s *MaintenanceService) UpdateResponsible(ctx context.Context, actorID *int64, id, responsibleID int64) (*domain.MaintenanceTicket, error) {
	ticket, err := s.mutable(ctx, id)
	if err != nil {
		return nil, err
	}
	responsible, err := s.responsibles.GetByID(ctx, responsibleID)
	if err != nil {
		return nil, notFound(err, "responsible", responsibleID)
	}
	if ticket.ResponsibleID != nil && *ticket.ResponsibleID == responsible.ID {
		return ticket, nil
	}

	oldID, oldName := ticket.ResponsibleID, ticket.ResponsibleName
	ticket.ResponsibleID = &responsible.ID
	ticket.ResponsibleName = responsible.Name
	ticket.ResponsibleEmail = responsible.Email
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	if err := s.recordChange(ctx, actorID, ticket.ID, domain.ChangeTypeResponsible,
		map[string]any{"responsible_id": oldID, "responsible": oldName},
		map[string]any{"responsible_id": responsible.ID, "responsible": responsible.Name},
	); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketResponsibleChanged,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.TicketResponsibleChangedPayload{
			OldResponsibleName: oldName,
			NewResponsibleName: responsible.Name,
		},
	})
	return ticket, nil
}

// UpdateFaultType recategorizes the ticket.
func (s *MaintenanceService) UpdateFaultType(ctx context.Context, actorID *int64, id int64, faultType domain.FaultType) (*domain.MaintenanceTicket, error) {
	faultType = domain.FaultType(strings.TrimSpace(string(faultType)))
	if faultType == "" {
		return nil, apperrors.NewValidationError("fault type is required", nil)
	}
	ticket, err := s.mutable(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.FaultType == faultType {
		return ticket, nil
	}
	old := ticket.FaultType
	ticket.FaultType = faultType
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	if err := s.recordChange(ctx, actorID, ticket.ID, domain.ChangeTypeFaultType,
		map[string]any{"fault_type": old},
		map[string]any{"fault_type": faultType},
	); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketFaultTypeChanged,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.TicketFaultTypeChangedPayload{
			InstallationID: ticket.InstallationID,
			OldFaultType:   old,
			NewFaultType:   faultType,
		},
	})
	return ticket, nil
}

// UpdateDetails edits free-text fields. Only provided fields change.
func (s *MaintenanceService) UpdateDetails(ctx context.Context, actorID *int64, id int64, input TicketDetailsInput) (*domain.MaintenanceTicket, error) {
	ticket, err := s.mutable(ctx, id)
	if err != nil {
		return nil, err
	}

	type change struct {
		kind     domain.TicketChangeType
		field    string
		old, new string
	}
	var changes []change
	apply := func(dst *string, v *string, kind domain.TicketChangeType, field string) {
		if v == nil {
			return
		}
		next := strings.TrimSpace(*v)
		if next == *dst {
			return
		}
		changes = append(changes, change{kind: kind, field: field, old: *dst, new: next})
		*dst = next
	}
	apply(&ticket.EquipmentName, input.EquipmentName, domain.ChangeTypeDescription, "equipment_name")
	apply(&ticket.EquipmentSubarea, input.EquipmentSubarea, domain.ChangeTypeDescription, "equipment_subarea")
	apply(&ticket.Description, input.Description, domain.ChangeTypeDescription, "description")
	apply(&ticket.ActionsTaken, input.ActionsTaken, domain.ChangeTypeActions, "actions_taken")
	if len(changes) == 0 {
		return ticket, nil
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	for _, c := range changes {
		if err := s.recordChange(ctx, actorID, ticket.ID, c.kind,
			map[string]any{c.field: c.old},
			map[string]any{c.field: c.new},
		); err != nil {
			return nil, err
		}
	}
	return ticket, nil
}

// AddEstimatedSolution appends a target date. The first estimate on a SOLICITADO
// ticket moves it to EN_PROCESO.
func (s *MaintenanceService) AddEstimatedSolution(ctx context.Context, actorID *int64, id int64, date time.Time, comment string) (*domain.EstimatedSolution, error) {
	if date.IsZero() {
		return nil, apperrors.NewValidationError("estimated date is required", nil)
	}
	ticket, err := s.mutable(ctx, id)
	if err != nil {
		return nil, err
	}
	estimate := &domain.EstimatedSolution{
		TicketID: ticket.ID,
		Date:     date,
		Comment:  strings.TrimSpace(comment),
	}
	if err := s.tickets.AddEstimatedSolution(ctx, estimate); err != nil {
		return nil, err
	}
	if err := s.recordChange(ctx, actorID, ticket.ID, domain.ChangeTypeEstimate, nil, map[string]any{
		"estimated_date": estimate.Date,
		"comment":        estimate.Comment,
	}); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventEstimatedSolutionAdded,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.EstimatedSolutionAddedPayload{
			EstimateID: estimate.ID,
			Date:       estimate.Date,
			Comment:    estimate.Comment,
		},
	})

	if ticket.Status == domain.TicketStatusRequested {
		if err := s.applyStatus(ctx, actorID, ticket, domain.TicketStatusInProcess); err != nil {
			return nil, err
		}
	}
	return estimate, nil
}

// AddComment appends an action log entry.
func (s *MaintenanceService) AddComment(ctx context.Context, actorID *int64, id int64, comment string) (*domain.ActionLogEntry, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, apperrors.NewValidationError("comment is required", nil)
	}
	ticket, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	entry := &domain.ActionLogEntry{
		TicketID: ticket.ID,
		AuthorID: actorID,
		Comment:  comment,
	}
	if err := s.actionLogs.Create(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.recordChange(ctx, actorID, ticket.ID, domain.ChangeTypeComment, nil, map[string]any{
		"entry_id": entry.ID,
	}); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.TicketCommentAddedPayload{
			EntryID:     entry.ID,
			BodyPreview: stringPreview(entry.Comment, 120),
		},
	})
	return entry, nil
}

// History returns the audit trail of a ticket.
func (s *MaintenanceService) History(ctx context.Context, id int64) ([]domain.TicketHistory, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.history.ListByTicket(ctx, id)
}

// Comments returns the action log of a ticket.
func (s *MaintenanceService) Comments(ctx context.Context, id int64) ([]domain.ActionLogEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.actionLogs.ListByTicket(ctx, id)
}

// Stats summarizes the backlog as of now.
func (s *MaintenanceService) Stats(ctx context.Context) (domain.TicketStats, error) {
	return s.tickets.Stats(ctx, s.now())
}

// Pending lists in-process tickets with an estimate, closest deadline first.
func (s *MaintenanceService) Pending(ctx context.Context) ([]PendingTicket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusInProcess},
	})
	if err != nil {
		return nil, err
	}
	now := s.now()
	pending := make([]PendingTicket, 0, len(tickets))
	for _, t := range tickets {
		estimate, ok := t.CurrentEstimate()
		if !ok {
			continue
		}
		pending = append(pending, PendingTicket{
			Ticket:        t,
			TargetDate:    estimate.Date,
			DaysRemaining: escalation.DaysRemaining(estimate.Date, now),
		})
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].DaysRemaining < pending[j].DaysRemaining
	})
	return pending, nil
}

func (s *MaintenanceService) mutable(ctx context.Context, id int64) (*domain.MaintenanceTicket, error) {
	ticket, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.Status.IsTerminal() {
		return nil, apperrors.NewConflict("ticket is closed", map[string]any{"status": ticket.Status})
	}
	return ticket, nil
}

func (s *MaintenanceService) applyStatus(ctx context.Context, actorID *int64, ticket *domain.MaintenanceTicket, newStatus domain.TicketStatus) error {
	oldStatus := ticket.Status
	ticket.Status = newStatus
	if newStatus == domain.TicketStatusCompleted {
		now := s.now()
		ticket.RealSolution = &now
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return err
	}
	newValue := map[string]any{"status": newStatus}
	if ticket.RealSolution != nil {
		newValue["real_solution"] = *ticket.RealSolution
	}
	if err := s.recordChange(ctx, actorID, ticket.ID, domain.ChangeTypeStatus,
		map[string]any{"status": oldStatus},
		newValue,
	); err != nil {
		return err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
		},
	})
	return nil
}

func (s *MaintenanceService) recordChange(ctx context.Context, actorID *int64, ticketID int64, kind domain.TicketChangeType, oldValue, newValue map[string]any) error {
	if s.history == nil {
		return nil
	}
	return s.history.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: actorID,
		ChangeType:  kind,
		OldValue:    oldValue,
		NewValue:    newValue,
	})
}

func (s *MaintenanceService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusRequested: {domain.TicketStatusInProcess, domain.TicketStatusCancelled},
	domain.TicketStatusInProcess: {domain.TicketStatusCompleted, domain.TicketStatusCancelled},
	domain.TicketStatusCompleted: {},
	domain.TicketStatusCancelled: {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// notFound converts a missing-row error into a NOT_FOUND domain error.
func notFound(err error, resource string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) || apperrors.IsNotFound(err) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return err
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
