package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/maintenance-service/internal/auth"
	"github.com/fleetops/maintenance-service/internal/domain"
	"github.com/fleetops/maintenance-service/internal/service"
	apperrors "github.com/fleetops/maintenance-service/pkg/util/errorutil"
)

type fakeMaintenance struct {
	ticket      domain.MaintenanceTicket
	created     service.TicketCreateInput
	filter      service.TicketListFilter
	status      domain.TicketStatus
	actor       *int64
	responsible int64
	err         error
}

func (f *fakeMaintenance) Create(_ context.Context, actorID *int64, input service.TicketCreateInput) (*domain.MaintenanceTicket, error) {
	f.actor = actorID
	f.created = input
	t := f.ticket
	return &t, f.err
}

func (f *fakeMaintenance) Get(_ context.Context, id int64) (*domain.MaintenanceTicket, error) {
	if f.err != nil {
		return nil, f.err
	}
	if id != f.ticket.ID {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	t := f.ticket
	return &t, nil
}

func (f *fakeMaintenance) List(_ context.Context, filter service.TicketListFilter) ([]domain.MaintenanceTicket, error) {
	f.filter = filter
	return []domain.MaintenanceTicket{f.ticket}, f.err
}

func (f *fakeMaintenance) UpdateStatus(_ context.Context, actorID *int64, _ int64, status domain.TicketStatus) (*domain.MaintenanceTicket, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.actor = actorID
	f.status = status
	t := f.ticket
	t.Status = status
	return &t, nil
}

func (f *fakeMaintenance) UpdateResponsible(_ context.Context, actorID *int64, _ int64, responsibleID int64) (*domain.MaintenanceTicket, error) {
	f.actor = actorID
	f.responsible = responsibleID
	t := f.ticket
	return &t, f.err
}

func (f *fakeMaintenance) UpdateFaultType(_ context.Context, _ *int64, _ int64, faultType domain.FaultType) (*domain.MaintenanceTicket, error) {
	t := f.ticket
	t.FaultType = faultType
	return &t, f.err
}

func (f *fakeMaintenance) UpdateDetails(_ context.Context, _ *int64, _ int64, input service.TicketDetailsInput) (*domain.MaintenanceTicket, error) {
	t := f.ticket
	if input.Description != nil {
		t.Description = *input.Description
	}
	return &t, f.err
}

func (f *fakeMaintenance) AddEstimatedSolution(_ context.Context, _ *int64, id int64, date time.Time, comment string) (*domain.EstimatedSolution, error) {
	return &domain.EstimatedSolution{ID: 1, TicketID: id, Date: date, Comment: comment}, f.err
}

func (f *fakeMaintenance) AddComment(_ context.Context, actorID *int64, id int64, comment string) (*domain.ActionLogEntry, error) {
	return &domain.ActionLogEntry{ID: 1, TicketID: id, AuthorID: actorID, Comment: comment}, f.err
}

func (f *fakeMaintenance) History(_ context.Context, id int64) ([]domain.TicketHistory, error) {
	return []domain.TicketHistory{{ID: 1, TicketID: id, ChangeType: domain.ChangeTypeCreated}}, f.err
}

func (f *fakeMaintenance) Comments(_ context.Context, _ int64) ([]domain.ActionLogEntry, error) {
	return nil, f.err
}

func (f *fakeMaintenance) Stats(_ context.Context) (domain.TicketStats, error) {
	return domain.TicketStats{Requested: 2, InProcess: 3, Overdue: 1}, f.err
}

func (f *fakeMaintenance) Pending(_ context.Context) ([]service.PendingTicket, error) {
	return []service.PendingTicket{{Ticket: f.ticket, TargetDate: time.Now().Add(48 * time.Hour), DaysRemaining: 2}}, f.err
}

func newApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": fiber.Map{
				"code":    de.Code,
				"message": de.Message,
				"details": de.Details,
			}})
		},
	})
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, headers ...string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func sampleTicket() domain.MaintenanceTicket {
	created := time.Now().Add(-80 * time.Hour)
	return domain.MaintenanceTicket{
		ID:             3,
		Folio:          "BU-3",
		InstallationID: 1,
		EquipmentName:  "Bomba",
		FaultType:      domain.FaultTypeEquipment,
		Status:         domain.TicketStatusInProcess,
		CreatedAt:      created,
		EstimatedSolutions: []domain.EstimatedSolution{
			{ID: 1, Date: created.Add(100 * time.Hour)},
		},
	}
}

func maintenanceApp(svc *fakeMaintenance) *fiber.App {
	app := newApp()
	h := NewMaintenanceHandler(svc, func(id int64) string { return "https://geop.example.com/maintenance/3" })
	app.Post("/maintenance", h.Create)
	app.Get("/maintenance", h.List)
	app.Get("/maintenance/:id", h.Get)
	app.Patch("/maintenance/:id/status", h.UpdateStatus)
	app.Patch("/maintenance/:id", h.UpdateDetails)
	app.Post("/maintenance/:id/estimates", h.AddEstimate)
	app.Get("/maintenance/:id/history", h.History)
	return app
}

func TestMaintenanceCreateValidation(t *testing.T) {
	svc := &fakeMaintenance{ticket: sampleTicket()}
	app := maintenanceApp(svc)

	status, body := doJSON(t, app, http.MethodPost, "/maintenance", map[string]any{"equipment_name": "Bomba"})
	assert.Equal(t, http.StatusBadRequest, status)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_FAILED", errBody["code"])
	details := errBody["details"].(map[string]any)
	assert.Equal(t, "required", details["installation_id"])
	assert.Equal(t, "required", details["fault_type"])
}

func TestMaintenanceCreate(t *testing.T) {
	svc := &fakeMaintenance{ticket: sampleTicket()}
	app := maintenanceApp(svc)

	status, body := doJSON(t, app, http.MethodPost, "/maintenance", map[string]any{
		"installation_id": 1,
		"equipment_name":  "Bomba",
		"fault_type":      "Equipo",
		"description":     "pierde presión",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, int64(1), svc.created.InstallationID)
	assert.Equal(t, domain.FaultTypeEquipment, svc.created.FaultType)
	assert.Nil(t, svc.actor)

	data := body["data"].(map[string]any)
	assert.Equal(t, "BU-3", data["folio"])
	assert.Equal(t, "https://geop.example.com/maintenance/3", data["link"])
	progress := data["progress"].(map[string]any)
	assert.Equal(t, "aboutToExpire", progress["bucket"])
}

func TestMaintenanceGetNotFoundAndBadID(t *testing.T) {
	app := maintenanceApp(&fakeMaintenance{ticket: sampleTicket()})

	status, body := doJSON(t, app, http.MethodGet, "/maintenance/99", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])

	status, _ = doJSON(t, app, http.MethodGet, "/maintenance/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMaintenanceListParsesQuery(t *testing.T) {
	svc := &fakeMaintenance{ticket: sampleTicket()}
	app := maintenanceApp(svc)

	status, body := doJSON(t, app, http.MethodGet, "/maintenance?status=EN_PROCESO,SOLICITADO&installation_id=4&q=bomba&page=3&page_size=10", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)
	assert.Equal(t, []domain.TicketStatus{domain.TicketStatusInProcess, domain.TicketStatusRequested}, svc.filter.Statuses)
	require.NotNil(t, svc.filter.InstallationID)
	assert.Equal(t, int64(4), *svc.filter.InstallationID)
	require.NotNil(t, svc.filter.SearchTerm)
	assert.Equal(t, "bomba", *svc.filter.SearchTerm)
	assert.Equal(t, 20, svc.filter.Offset)
	assert.Equal(t, 10, svc.filter.Limit)

	status, _ = doJSON(t, app, http.MethodGet, "/maintenance?responsible_id=x", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMaintenanceUpdateStatus(t *testing.T) {
	svc := &fakeMaintenance{ticket: sampleTicket()}
	app := maintenanceApp(svc)

	status, _ := doJSON(t, app, http.MethodPatch, "/maintenance/3/status", map[string]any{"status": "CERRADO"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := doJSON(t, app, http.MethodPatch, "/maintenance/3/status", map[string]any{"status": "COMPLETADO"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.TicketStatusCompleted, svc.status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "COMPLETADO", data["status"])
	assert.NotContains(t, data, "progress")

	svc.err = apperrors.NewConflict("ticket is closed", nil)
	status, _ = doJSON(t, app, http.MethodPatch, "/maintenance/3/status", map[string]any{"status": "CANCELADO"})
	assert.Equal(t, http.StatusConflict, status)
}

func TestMaintenanceAddEstimateAndDetails(t *testing.T) {
	svc := &fakeMaintenance{ticket: sampleTicket()}
	app := maintenanceApp(svc)

	status, _ := doJSON(t, app, http.MethodPost, "/maintenance/3/estimates", map[string]any{"comment": "repuesto"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := doJSON(t, app, http.MethodPost, "/maintenance/3/estimates", map[string]any{
		"date":    "2024-12-05T15:00:00Z",
		"comment": "repuesto",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "repuesto", body["data"].(map[string]any)["comment"])

	status, body = doJSON(t, app, http.MethodPatch, "/maintenance/3", map[string]any{"description": "nueva"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "nueva", body["data"].(map[string]any)["description"])
}

func TestMaintenanceActorFromPrincipal(t *testing.T) {
	svc := &fakeMaintenance{ticket: sampleTicket()}
	tokens := auth.NewTokenManager("secret", 5)
	users := userLoader{7: {ID: 7, Username: "jefe", Roles: []domain.UserRole{{RoleID: domain.RoleBahiaHead}}}}
	token, _, err := tokens.GenerateToken(7, []domain.RoleID{domain.RoleBahiaHead})
	require.NoError(t, err)

	app := newApp()
	h := NewMaintenanceHandler(svc, nil)
	app.Patch("/maintenance/:id/responsible", auth.NewAuthMiddleware(tokens, users).Handle, h.UpdateResponsible)

	status, body := doJSON(t, app, http.MethodPatch, "/maintenance/3/responsible", map[string]any{"responsible_id": 12},
		"Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, svc.actor)
	assert.Equal(t, int64(7), *svc.actor)
	assert.Equal(t, int64(12), svc.responsible)
	assert.NotContains(t, body["data"].(map[string]any), "link")
}

type userLoader map[int64]*domain.User

func (u userLoader) GetByID(_ context.Context, id int64) (*domain.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, pgx.ErrNoRows
}

type fakeNotifications struct {
	filter service.NotificationListFilter
}

func (f *fakeNotifications) List(_ context.Context, filter service.NotificationListFilter) ([]domain.GeneratedNotification, error) {
	f.filter = filter
	return []domain.GeneratedNotification{{ID: 1, TicketID: 3, Type: domain.NotificationStatusChanged, NotificationGroupID: domain.GroupStatus}}, nil
}

func TestNotificationListFilters(t *testing.T) {
	svc := &fakeNotifications{}
	app := newApp()
	app.Get("/notifications", NewNotificationHandler(svc).List)

	status, body := doJSON(t, app, http.MethodGet, "/notifications?group=6,7&ticket_id=3&page_size=5", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []domain.NotificationGroupID{domain.GroupResponsible, domain.GroupStatus}, svc.filter.Groups)
	require.NotNil(t, svc.filter.TicketID)
	assert.Equal(t, int64(3), *svc.filter.TicketID)
	assert.Equal(t, 5, svc.filter.Limit)
	item := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(7), item["notification_group_id"])

	status, _ = doJSON(t, app, http.MethodGet, "/notifications?group=abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

type fakeRunner struct {
	summary  *service.RunSummary
	err      error
	ctxAlive bool
}

func (f *fakeRunner) Run(ctx context.Context) (*service.RunSummary, error) {
	f.ctxAlive = ctx.Done() == nil
	return f.summary, f.err
}

func (f *fakeRunner) LastRun(_ context.Context) (*service.RunSummary, error) {
	if f.summary == nil {
		return nil, apperrors.NewNotFound("escalation run", nil)
	}
	return f.summary, nil
}

type fakeEvaluator struct{}

func (fakeEvaluator) Evaluate(_ context.Context, id int64) (*service.CriticalSummary, error) {
	if id != 1 {
		return nil, apperrors.NewNotFound("installation", map[string]any{"id": id})
	}
	return &service.CriticalSummary{InstallationID: 1, InstallationName: "Barco Uno", Conditions: []string{"15 fallas ordinarias"}}, nil
}

func TestEscalationEndpoints(t *testing.T) {
	runner := &fakeRunner{}
	app := newApp()
	h := NewEscalationHandler(runner, fakeEvaluator{})
	app.Post("/escalation/run", h.Run)
	app.Get("/escalation/last-run", h.LastRun)
	app.Post("/installations/:id/critical-conditions", h.EvaluateInstallation)

	status, _ := doJSON(t, app, http.MethodGet, "/escalation/last-run", nil)
	assert.Equal(t, http.StatusNotFound, status)

	runner.err = apperrors.NewConflict("escalation run already in progress", nil)
	status, _ = doJSON(t, app, http.MethodPost, "/escalation/run", nil)
	assert.Equal(t, http.StatusConflict, status)

	runner.err = nil
	runner.summary = &service.RunSummary{RunID: "r1", TicketsEvaluated: 4, Expired: 1}
	status, body := doJSON(t, app, http.MethodPost, "/escalation/run", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, runner.ctxAlive)
	assert.Equal(t, "r1", body["data"].(map[string]any)["run_id"])

	status, body = doJSON(t, app, http.MethodPost, "/installations/1/critical-conditions", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Barco Uno", body["data"].(map[string]any)["installation_name"])

	status, _ = doJSON(t, app, http.MethodPost, "/installations/2/critical-conditions", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

type fakeInstallations struct {
	items []domain.Installation
}

func (f *fakeInstallations) Create(_ context.Context, inst *domain.Installation) error {
	inst.ID = int64(len(f.items) + 1)
	f.items = append(f.items, *inst)
	return nil
}

func (f *fakeInstallations) List(_ context.Context) ([]domain.Installation, error) {
	return f.items, nil
}

type fakeResponsibles struct{ err error }

func (f fakeResponsibles) List(_ context.Context) ([]domain.ResponsibleParty, error) {
	return []domain.ResponsibleParty{{ID: 7, Name: "Juan"}}, f.err
}

func TestReferenceEndpoints(t *testing.T) {
	installations := &fakeInstallations{}
	app := newApp()
	h := NewReferenceHandler(installations, fakeResponsibles{})
	app.Post("/installations", h.CreateInstallation)
	app.Get("/installations", h.ListInstallations)
	app.Get("/responsibles", h.ListResponsibles)

	status, _ := doJSON(t, app, http.MethodPost, "/installations", map[string]any{"name": "Barco Uno", "folio_code": "B-U"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := doJSON(t, app, http.MethodPost, "/installations", map[string]any{"name": "Barco Uno", "folio_code": "BU"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, float64(1), body["data"].(map[string]any)["id"])

	status, body = doJSON(t, app, http.MethodGet, "/installations", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, body = doJSON(t, app, http.MethodGet, "/responsibles", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Juan", body["data"].([]any)[0].(map[string]any)["name"])
}

type fakeAccounts struct {
	input service.CreateUserInput
}

func (f *fakeAccounts) Login(_ context.Context, username, password string) (*domain.User, string, time.Time, error) {
	if username != "oopp" || password != "correcta" {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	return &domain.User{ID: 1}, "token", time.Now().Add(time.Hour), nil
}

func (f *fakeAccounts) CreateUser(_ context.Context, input service.CreateUserInput) (*domain.User, error) {
	f.input = input
	return &domain.User{ID: 5, Username: input.Username, Email: input.Email, Roles: input.Roles}, nil
}

func TestAuthEndpoints(t *testing.T) {
	accounts := &fakeAccounts{}
	app := newApp()
	h := NewAuthHandler(accounts)
	app.Post("/auth/login", h.Login)
	app.Post("/users", h.CreateUser)

	status, _ := doJSON(t, app, http.MethodPost, "/auth/login", map[string]any{"username": "oopp", "password": "mala"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := doJSON(t, app, http.MethodPost, "/auth/login", map[string]any{"username": "oopp", "password": "correcta"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "token", body["data"].(map[string]any)["token"])

	status, body = doJSON(t, app, http.MethodPost, "/users", map[string]any{
		"username": "jefe.bahia",
		"email":    "jefe.bahia@fleet.cl",
		"password": "suficiente",
		"roles":    []map[string]any{{"role_id": 6, "notification_group_id": 3, "email_notifications": true}},
	})
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, accounts.input.Roles, 1)
	assert.Equal(t, domain.RoleBahiaHead, accounts.input.Roles[0].RoleID)
	require.NotNil(t, accounts.input.Roles[0].NotificationGroupID)
	assert.Equal(t, domain.GroupDeadlineAlerts, *accounts.input.Roles[0].NotificationGroupID)
	roles := body["data"].(map[string]any)["roles"].([]any)
	assert.Equal(t, float64(3), roles[0].(map[string]any)["notification_group_id"])
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealthReadiness(t *testing.T) {
	app := newApp()
	healthy := NewHealthHandler("maintenance-service", "test", map[string]Pinger{"postgres": pinger{}, "redis": pinger{}})
	app.Get("/ready", healthy.Ready)
	status, body := doJSON(t, app, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	app = newApp()
	degraded := NewHealthHandler("maintenance-service", "test", map[string]Pinger{"postgres": pinger{}, "redis": pinger{err: errors.New("dial tcp: refused")}})
	app.Get("/ready", degraded.Ready)
	status, body = doJSON(t, app, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "dial tcp: refused", details["redis"])
	assert.Equal(t, "ok", details["postgres"])
}
