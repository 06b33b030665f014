package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleetops/maintenance-service/internal/domain"
	"github.com/fleetops/maintenance-service/internal/escalation"
	"github.com/fleetops/maintenance-service/internal/events"
	"github.com/fleetops/maintenance-service/internal/notify"
	"github.com/fleetops/maintenance-service/internal/observability"
	"github.com/fleetops/maintenance-service/internal/repository"
)

const (
	reportNewRequest = "new_request"
	reportCompletion = "completion"

	unknownLabel = "Desconocido"
)

// NotificationService turns ticket events into in-app notifications and emails.
type NotificationService struct {
	notifications repository.NotificationRepository
	tickets       repository.TicketRepository
	responsibles  repository.ResponsibleRepository
	recipients    repository.RecipientRepository
	critical      CriticalEvaluator
	mailer        notify.Mailer
	renderer      *notify.Renderer
	resolver      escalation.DepartmentResolver
	metrics       *observability.Metrics
	logger        *zap.Logger
	concurrency   int
	now           func() time.Time
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	TicketRepo       repository.TicketRepository
	ResponsibleRepo  repository.ResponsibleRepository
	RecipientRepo    repository.RecipientRepository
	Critical         CriticalEvaluator
	Mailer           notify.Mailer
	Renderer         *notify.Renderer
	Resolver         escalation.DepartmentResolver
	Metrics          *observability.Metrics
	Logger           *zap.Logger
	Concurrency      int
	Clock            func() time.Time
}

// NotificationListFilter pages through generated notifications.
type NotificationListFilter struct {
	Groups   []domain.NotificationGroupID
	TicketID *int64
	Limit    int
	Offset   int
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = escalation.NewFragmentResolver(escalation.DefaultDepartmentFragments())
	}
	return &NotificationService{
		notifications: deps.NotificationRepo,
		tickets:       deps.TicketRepo,
		responsibles:  deps.ResponsibleRepo,
		recipients:    deps.RecipientRepo,
		critical:      deps.Critical,
		mailer:        deps.Mailer,
		renderer:      deps.Renderer,
		resolver:      resolver,
		metrics:       deps.Metrics,
		logger:        logger,
		concurrency:   deps.Concurrency,
		now:           clock,
	}
}

// EventTypes lists the events the service reacts to.
func (n *NotificationService) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketResponsibleChanged,
		events.EventTicketFaultTypeChanged,
		events.EventEstimatedSolutionAdded,
		events.EventTicketCommentAdded,
	}
}

// RegisterHandlers subscribes the service synchronously to the dispatcher.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	for _, t := range n.EventTypes() {
		dispatcher.Subscribe(t, n.Handle)
	}
}

// Handle routes an event to its handler.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.EventTicketCreated:
		return n.handleTicketCreated(ctx, event)
	case events.EventTicketStatusChanged:
		return n.handleTicketStatusChanged(ctx, event)
	case events.EventTicketResponsibleChanged:
		return n.handleResponsibleChanged(ctx, event)
	case events.EventTicketFaultTypeChanged:
		return n.handleFaultTypeChanged(ctx, event)
	case events.EventEstimatedSolutionAdded:
		return n.handleEstimateAdded(ctx, event)
	case events.EventTicketCommentAdded:
		return n.handleCommentAdded(ctx, event)
	}
	return nil
}

// List returns generated notifications, newest first.
func (n *NotificationService) List(ctx context.Context, filter NotificationListFilter) ([]domain.GeneratedNotification, error) {
	return n.notifications.List(ctx, repository.NotificationFilter{
		Groups:   filter.Groups,
		TicketID: filter.TicketID,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	ticket, err := n.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		return err
	}
	if err := n.generate(ctx, ticket, domain.NotificationNewRequest, domain.GroupNewRequest,
		"Nuevo requerimiento de mantención",
		fmt.Sprintf("Tipo de Falla: %s, Estado: %s en %s, Instalación: %s con Folio %s.",
			ticket.FaultType, ticket.Status.Label(), orUnknown(ticket.EquipmentName), orUnknown(ticket.InstallationName), ticket.Folio),
	); err != nil {
		return err
	}

	now := n.now()
	if err := n.notifyResponsible(ctx, ticket, now); err != nil {
		n.logger.Warn("intake email to responsible", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
	}
	if dept, ok := n.resolver.Resolve(ticket.ResponsibleEmail); ok {
		msg, err := n.renderer.NewRequest(ticket, dept, now)
		if err != nil {
			return err
		}
		if err := n.send(ctx, reportNewRequest, msg, repository.RecipientQuery{
			Group: domain.GroupNewRequest,
			Roles: []domain.RoleID{dept.HeadRole()},
		}); err != nil {
			n.logger.Warn("intake email to area head", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		}
	}

	n.evaluateCritical(ctx, ticket.InstallationID)
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	ticket, err := n.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		return err
	}
	if err := n.generate(ctx, ticket, domain.NotificationStatusChanged, domain.GroupStatus,
		"Cambio de estado",
		fmt.Sprintf(`El estado de la solicitud con folio %s, Tipo de Falla: %s, cambió de "%s" a "%s".`,
			ticket.Folio, ticket.FaultType, payload.OldStatus.Label(), payload.NewStatus.Label()),
	); err != nil {
		return err
	}
	if payload.NewStatus != domain.TicketStatusCompleted {
		return nil
	}

	if err := n.generate(ctx, ticket, domain.NotificationCompleted, domain.GroupCompleted,
		"Solicitud completada",
		fmt.Sprintf("La solicitud con folio %s, Tipo de Falla: %s se completó.", ticket.Folio, ticket.FaultType),
	); err != nil {
		return err
	}
	dept, ok := n.resolver.Resolve(ticket.ResponsibleEmail)
	if !ok {
		return nil
	}
	msg, err := n.renderer.Completion(ticket, dept, n.now())
	if err != nil {
		return err
	}
	return n.send(ctx, reportCompletion, msg, repository.RecipientQuery{
		Group: domain.GroupCompletionNotice,
		Roles: []domain.RoleID{dept.HeadRole()},
	})
}

func (n *NotificationService) handleResponsibleChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketResponsibleChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	ticket, err := n.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		return err
	}
	return n.generate(ctx, ticket, domain.NotificationResponsibleChanged, domain.GroupResponsible,
		"Cambio de responsable",
		fmt.Sprintf("El responsable de la solicitud con folio %s cambió de %s a %s.",
			ticket.Folio, orNA(payload.OldResponsibleName), orNA(payload.NewResponsibleName)),
	)
}

func (n *NotificationService) handleFaultTypeChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketFaultTypeChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	n.evaluateCritical(ctx, payload.InstallationID)
	return nil
}

func (n *NotificationService) handleEstimateAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.EstimatedSolutionAddedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	ticket, err := n.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		return err
	}
	return n.generate(ctx, ticket, domain.NotificationEstimatedDates, domain.GroupComments,
		"Nuevas fechas estimadas",
		fmt.Sprintf("Se agregaron nuevas fechas estimadas: %s, para la solicitud con folio %s, Tipo de Falla: %s.",
			longDate(payload.Date, n.renderer.Location()), ticket.Folio, ticket.FaultType),
	)
}

func (n *NotificationService) handleCommentAdded(ctx context.Context, event events.Event) error {
	ticket, err := n.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		return err
	}
	return n.generate(ctx, ticket, domain.NotificationCommentAdded, domain.GroupComments,
		"Nuevo comentario",
		fmt.Sprintf("Se agregó un nuevo comentario a la solicitud de mantenimiento con folio %s.", ticket.Folio),
	)
}

func (n *NotificationService) notifyResponsible(ctx context.Context, ticket *domain.MaintenanceTicket, now time.Time) error {
	if ticket.ResponsibleID == nil {
		return nil
	}
	responsible, err := n.responsibles.GetByID(ctx, *ticket.ResponsibleID)
	if err != nil {
		return err
	}
	if responsible.UserID == nil {
		return nil
	}
	msg, err := n.renderer.NewRequest(ticket, "", now)
	if err != nil {
		return err
	}
	return n.send(ctx, reportNewRequest, msg, repository.RecipientQuery{
		Group:   domain.GroupNewRequest,
		UserIDs: []int64{*responsible.UserID},
	})
}

func (n *NotificationService) send(ctx context.Context, report string, msg notify.Message, query repository.RecipientQuery) error {
	recipients, err := n.recipients.ListRecipients(ctx, query)
	if err != nil {
		return err
	}
	emails := recipientEmails(recipients)
	if len(emails) == 0 {
		return nil
	}
	results := notify.Dispatch(ctx, n.mailer, emails, msg, n.concurrency)
	recordDeliveries(n.metrics, n.logger, report, results)
	return nil
}

func (n *NotificationService) generate(ctx context.Context, ticket *domain.MaintenanceTicket, kind domain.NotificationType, group domain.NotificationGroupID, title, message string) error {
	return n.notifications.Create(ctx, &domain.GeneratedNotification{
		TicketID:            ticket.ID,
		Type:                kind,
		Title:               title,
		Message:             message,
		NotificationGroupID: group,
	})
}

func (n *NotificationService) evaluateCritical(ctx context.Context, installationID int64) {
	if n.critical == nil {
		return
	}
	if _, err := n.critical.Evaluate(ctx, installationID); err != nil {
		n.logger.Warn("critical condition evaluation", zap.Int64("installation_id", installationID), zap.Error(err))
	}
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// longDate renders dates as "5 de marzo de 2025".
func longDate(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%d de %s de %d", t.Day(), spanishMonths[t.Month()-1], t.Year())
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownLabel
	}
	return s
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
