package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fleetops/maintenance-service/internal/api/dto"
	"github.com/fleetops/maintenance-service/internal/auth"
	"github.com/fleetops/maintenance-service/internal/domain"
	"github.com/fleetops/maintenance-service/internal/escalation"
	"github.com/fleetops/maintenance-service/internal/service"
	apperrors "github.com/fleetops/maintenance-service/pkg/util/errorutil"
)

// Maintenance is the ticket workflow the maintenance endpoints drive.
type Maintenance interface {
	Create(ctx context.Context, actorID *int64, input service.TicketCreateInput) (*domain.MaintenanceTicket, error)
	Get(ctx context.Context, id int64) (*domain.MaintenanceTicket, error)
	List(ctx context.Context, filter service.TicketListFilter) ([]domain.MaintenanceTicket, error)
	UpdateStatus(ctx context.Context, actorID *int64, id int64, status domain.TicketStatus) (*domain.MaintenanceTicket, error)
	UpdateResponsible(ctx context.Context, actorID *int64, id, responsibleID int64) (*domain.MaintenanceTicket, error)
	UpdateFaultType(ctx context.Context, actorID *int64, id int64, faultType domain.FaultType) (*domain.MaintenanceTicket, error)
	UpdateDetails(ctx context.Context, actorID *int64, id int64, input service.TicketDetailsInput) (*domain.MaintenanceTicket, error)
	AddEstimatedSolution(ctx context.Context, actorID *int64, id int64, date time.Time, comment string) (*domain.EstimatedSolution, error)
	AddComment(ctx context.Context, actorID *int64, id int64, comment string) (*domain.ActionLogEntry, error)
	History(ctx context.Context, id int64) ([]domain.TicketHistory, error)
	Comments(ctx context.Context, id int64) ([]domain.ActionLogEntry, error)
	Stats(ctx context.Context) (domain.TicketStats, error)
	Pending(ctx context.Context) ([]service.PendingTicket, error)
}

// MaintenanceHandler manages maintenance ticket endpoints.
type MaintenanceHandler struct {
	service Maintenance
	link    func(ticketID int64) string
	now     func() time.Time
}

// NewMaintenanceHandler constructs handler. link may be nil.
func NewMaintenanceHandler(svc Maintenance, link func(ticketID int64) string) *MaintenanceHandler {
	return &MaintenanceHandler{service: svc, link: link, now: time.Now}
}

// Create POST /api/maintenance.
func (h *MaintenanceHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	ticket, err := h.service.Create(c.UserContext(), actorID(c), service.TicketCreateInput{
		InstallationID:   req.InstallationID,
		EquipmentName:    req.EquipmentName,
		EquipmentSubarea: req.EquipmentSubarea,
		ResponsibleID:    req.ResponsibleID,
		FaultType:        domain.FaultType(req.FaultType),
		Description:      req.Description,
		ActionsTaken:     req.ActionsTaken,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": h.ticketResponse(ticket)})
}

// List GET /api/maintenance.
func (h *MaintenanceHandler) List(c *fiber.Ctx) error {
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, h.ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /api/maintenance/:id.
func (h *MaintenanceHandler) Get(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(ticket)})
}

// UpdateStatus PATCH /api/maintenance/:id/status.
func (h *MaintenanceHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	ticket, err := h.service.UpdateStatus(c.UserContext(), actorID(c), id, domain.TicketStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(ticket)})
}

// UpdateResponsible PATCH /api/maintenance/:id/responsible.
func (h *MaintenanceHandler) UpdateResponsible(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateResponsibleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	ticket, err := h.service.UpdateResponsible(c.UserContext(), actorID(c), id, req.ResponsibleID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(ticket)})
}

// UpdateFaultType PATCH /api/maintenance/:id/fault-type.
func (h *MaintenanceHandler) UpdateFaultType(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateFaultTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	ticket, err := h.service.UpdateFaultType(c.UserContext(), actorID(c), id, domain.FaultType(req.FaultType))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(ticket)})
}

// UpdateDetails PATCH /api/maintenance/:id.
func (h *MaintenanceHandler) UpdateDetails(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateDetailsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	ticket, err := h.service.UpdateDetails(c.UserContext(), actorID(c), id, service.TicketDetailsInput{
		EquipmentName:    req.EquipmentName,
		EquipmentSubarea: req.EquipmentSubarea,
		Description:      req.Description,
		ActionsTaken:     req.ActionsTaken,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(ticket)})
}

// AddEstimate POST /api/maintenance/:id/estimates.
func (h *MaintenanceHandler) AddEstimate(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.AddEstimateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	estimate, err := h.service.AddEstimatedSolution(c.UserContext(), actorID(c), id, req.Date, req.Comment)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": estimateResponse(*estimate)})
}

// AddComment POST /api/maintenance/:id/comments.
func (h *MaintenanceHandler) AddComment(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.AddCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	entry, err := h.service.AddComment(c.UserContext(), actorID(c), id, req.Comment)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": commentResponse(*entry)})
}

// Comments GET /api/maintenance/:id/comments.
func (h *MaintenanceHandler) Comments(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	entries, err := h.service.Comments(c.UserContext(), id)
	if err != nil {
		return err
	}
	resp := make([]dto.CommentResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, commentResponse(e))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// History GET /api/maintenance/:id/history.
func (h *MaintenanceHandler) History(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}

// Stats GET /api/maintenance/stats.
func (h *MaintenanceHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// Pending GET /api/maintenance/pending.
func (h *MaintenanceHandler) Pending(c *fiber.Ctx) error {
	pending, err := h.service.Pending(c.UserContext())
	if err != nil {
		return err
	}
	resp := make([]dto.PendingTicketResponse, 0, len(pending))
	for i := range pending {
		resp = append(resp, dto.PendingTicketResponse{
			Ticket:        h.ticketResponse(&pending[i].Ticket),
			TargetDate:    pending[i].TargetDate,
			DaysRemaining: pending[i].DaysRemaining,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

func actorID(c *fiber.Ctx) *int64 {
	principal, _ := auth.PrincipalFromContext(c)
	return principal.UserID()
}

func ticketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", map[string]any{"id": c.Params("id")})
	}
	return id, nil
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if faultStr := c.Query("fault_type"); faultStr != "" {
		for _, part := range strings.Split(faultStr, ",") {
			filter.FaultTypes = append(filter.FaultTypes, domain.FaultType(strings.TrimSpace(part)))
		}
	}
	var err error
	if filter.InstallationID, err = parseID(c.Query("installation_id"), "installation_id"); err != nil {
		return filter, err
	}
	if filter.ResponsibleID, err = parseID(c.Query("responsible_id"), "responsible_id"); err != nil {
		return filter, err
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		filter.SearchTerm = &q
	}
	filter.CreatedFrom = parseTime(c.Query("created_from"))
	filter.CreatedTo = parseTime(c.Query("created_to"))
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}

func parseID(val, field string) (*int64, error) {
	if val == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperrors.NewValidationError("invalid "+field, map[string]any{field: val})
	}
	return &id, nil
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func (h *MaintenanceHandler) ticketResponse(ticket *domain.MaintenanceTicket) dto.TicketResponse {
	resp := dto.TicketResponse{
		ID:               ticket.ID,
		Folio:            ticket.Folio,
		InstallationID:   ticket.InstallationID,
		InstallationName: ticket.InstallationName,
		EquipmentName:    ticket.EquipmentName,
		EquipmentSubarea: ticket.EquipmentSubarea,
		ResponsibleID:    ticket.ResponsibleID,
		ResponsibleName:  ticket.ResponsibleName,
		FaultType:        ticket.FaultType,
		Description:      ticket.Description,
		ActionsTaken:     ticket.ActionsTaken,
		Status:           ticket.Status,
		RealSolution:     ticket.RealSolution,
		Estimates:        make([]dto.EstimateResponse, 0, len(ticket.EstimatedSolutions)),
		CreatedAt:        ticket.CreatedAt,
		UpdatedAt:        ticket.UpdatedAt,
	}
	if h.link != nil {
		resp.Link = h.link(ticket.ID)
	}
	if progress, ok := escalation.Progress(ticket, h.now()); ok {
		resp.Progress = &dto.ProgressResponse{
			Percentage: progress.ProgressPercentage,
			Bucket:     string(progress.Bucket),
		}
	}
	for _, e := range ticket.EstimatedSolutions {
		resp.Estimates = append(resp.Estimates, estimateResponse(e))
	}
	return resp
}

func estimateResponse(e domain.EstimatedSolution) dto.EstimateResponse {
	return dto.EstimateResponse{ID: e.ID, Date: e.Date, Comment: e.Comment, CreatedAt: e.CreatedAt}
}

func commentResponse(e domain.ActionLogEntry) dto.CommentResponse {
	return dto.CommentResponse{ID: e.ID, AuthorID: e.AuthorID, Comment: e.Comment, CreatedAt: e.CreatedAt}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:          entry.ID,
			ChangeType:  entry.ChangeType,
			ChangedByID: entry.ChangedByID,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return resp
}
