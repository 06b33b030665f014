package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/maintenance-service/internal/domain"
	"github.com/fleetops/maintenance-service/internal/events"
	apperrors "github.com/fleetops/maintenance-service/pkg/util/errorutil"
)

type maintenanceFixture struct {
	svc        *MaintenanceService
	tickets    *fakeTicketRepo
	history    *fakeHistoryRepo
	actionLogs *fakeActionLogRepo
	published  []events.Event
	now        time.Time
}

func newMaintenanceFixture(t *testing.T, seed ...domain.MaintenanceTicket) *maintenanceFixture {
	t.Helper()
	f := &maintenanceFixture{
		history:    &fakeHistoryRepo{},
		actionLogs: &fakeActionLogRepo{},
		now:        time.Date(2024, 11, 9, 8, 0, 0, 0, time.UTC),
	}
	f.tickets = newFakeTicketRepo(fixedClock(f.now), seed...)

	dispatcher := events.NewInMemoryDispatcher(nil)
	record := func(_ context.Context, e events.Event) error {
		f.published = append(f.published, e)
		return nil
	}
	for _, et := range []events.EventType{
		events.EventTicketCreated, events.EventTicketStatusChanged, events.EventTicketResponsibleChanged,
		events.EventTicketFaultTypeChanged, events.EventEstimatedSolutionAdded, events.EventTicketCommentAdded,
	} {
		dispatcher.Subscribe(et, record)
	}

	userID := int64(40)
	f.svc = NewMaintenanceService(MaintenanceDependencies{
		TicketRepo:       f.tickets,
		InstallationRepo: fakeInstallationRepo{1: {ID: 1, Name: "Barco Uno", FolioCode: "BU"}},
		ResponsibleRepo: fakeResponsibleRepo{
			7: {ID: 7, Name: "Juan", UserID: &userID, Email: "user_mantencion2@fleet.cl"},
			8: {ID: 8, Name: "Pedro", Email: "user_mantencion5@fleet.cl"},
		},
		ActionLogRepo: f.actionLogs,
		HistoryRepo:   f.history,
		Dispatcher:    dispatcher,
		Clock:         fixedClock(f.now),
	})
	return f
}

func (f *maintenanceFixture) eventTypes() []events.EventType {
	out := make([]events.EventType, 0, len(f.published))
	for _, e := range f.published {
		out = append(out, e.Type)
	}
	return out
}

func codeOf(err error) string {
	return apperrors.ToDomainError(err).Code
}

func TestMaintenanceCreate(t *testing.T) {
	f := newMaintenanceFixture(t)
	actor := int64(3)
	responsible := int64(7)

	ticket, err := f.svc.Create(context.Background(), &actor, TicketCreateInput{
		InstallationID: 1,
		EquipmentName:  " Bomba ",
		ResponsibleID:  &responsible,
		FaultType:      domain.FaultTypeEquipment,
		Description:    "fuga",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusRequested, ticket.Status)
	assert.Equal(t, "Bomba", ticket.EquipmentName)
	assert.Equal(t, "Juan", ticket.ResponsibleName)
	assert.Equal(t, "user_mantencion2@fleet.cl", ticket.ResponsibleEmail)
	assert.NotEmpty(t, ticket.Folio)
	assert.Equal(t, []domain.TicketChangeType{domain.ChangeTypeCreated}, f.history.changeTypes())
	require.Equal(t, []events.EventType{events.EventTicketCreated}, f.eventTypes())
	assert.Equal(t, &actor, f.published[0].ActorID)
	assert.NotEmpty(t, f.published[0].ID)
}

func TestMaintenanceCreateValidation(t *testing.T) {
	f := newMaintenanceFixture(t)
	missing := int64(99)

	cases := []struct {
		name  string
		input TicketCreateInput
		code  string
	}{
		{"missing fault type", TicketCreateInput{InstallationID: 1}, "VALIDATION_FAILED"},
		{"unknown installation", TicketCreateInput{InstallationID: 5, FaultType: domain.FaultTypeOrdinary}, "NOT_FOUND"},
		{"unknown responsible", TicketCreateInput{InstallationID: 1, FaultType: domain.FaultTypeOrdinary, ResponsibleID: &missing}, "NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), nil, tc.input)
			require.Error(t, err)
			assert.Equal(t, tc.code, codeOf(err))
		})
	}
	assert.Empty(t, f.published)
}

func TestMaintenanceGetMissing(t *testing.T) {
	f := newMaintenanceFixture(t)
	_, err := f.svc.Get(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMaintenanceStatusTransitions(t *testing.T) {
	seed := []domain.MaintenanceTicket{
		{ID: 1, InstallationID: 1, Status: domain.TicketStatusRequested},
		{ID: 2, InstallationID: 1, Status: domain.TicketStatusInProcess},
		{ID: 3, InstallationID: 1, Status: domain.TicketStatusCompleted},
		{ID: 4, InstallationID: 1, Status: domain.TicketStatusCancelled},
	}

	cases := []struct {
		name string
		id   int64
		to   domain.TicketStatus
		code string
	}{
		{"requested to in process", 1, domain.TicketStatusInProcess, ""},
		{"requested straight to completed", 1, domain.TicketStatusCompleted, "CONFLICT"},
		{"requested to cancelled", 1, domain.TicketStatusCancelled, ""},
		{"in process to completed", 2, domain.TicketStatusCompleted, ""},
		{"in process back to requested", 2, domain.TicketStatusRequested, "CONFLICT"},
		{"completed is terminal", 3, domain.TicketStatusInProcess, "CONFLICT"},
		{"cancelled is terminal", 4, domain.TicketStatusInProcess, "CONFLICT"},
		{"unknown status", 2, domain.TicketStatus("ARCHIVADO"), "VALIDATION_FAILED"},
		{"missing ticket", 9, domain.TicketStatusInProcess, "NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newMaintenanceFixture(t, seed...)
			ticket, err := f.svc.UpdateStatus(context.Background(), nil, tc.id, tc.to)
			if tc.code != "" {
				require.Error(t, err)
				assert.Equal(t, tc.code, codeOf(err))
				assert.Empty(t, f.published)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, ticket.Status)
			assert.Equal(t, []events.EventType{events.EventTicketStatusChanged}, f.eventTypes())
		})
	}
}

func TestMaintenanceCompletionStampsRealSolution(t *testing.T) {
	f := newMaintenanceFixture(t, domain.MaintenanceTicket{ID: 2, InstallationID: 1, Status: domain.TicketStatusInProcess})

	ticket, err := f.svc.UpdateStatus(context.Background(), nil, 2, domain.TicketStatusCompleted)
	require.NoError(t, err)
	require.NotNil(t, ticket.RealSolution)
	assert.Equal(t, f.now, *ticket.RealSolution)

	stored, err := f.tickets.GetByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCompleted, stored.Status)

	payload, ok := f.published[0].Payload.(events.TicketStatusChangedPayload)
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusInProcess, payload.OldStatus)
	assert.Equal(t, domain.TicketStatusCompleted, payload.NewStatus)
}

func TestMaintenanceFirstEstimateStartsWork(t *testing.T) {
	f := newMaintenanceFixture(t, domain.MaintenanceTicket{ID: 1, InstallationID: 1, Status: domain.TicketStatusRequested})
	target := f.now.Add(72 * time.Hour)

	estimate, err := f.svc.AddEstimatedSolution(context.Background(), nil, 1, target, " repuesto en camino ")
	require.NoError(t, err)
	assert.Equal(t, "repuesto en camino", estimate.Comment)

	stored, err := f.tickets.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProcess, stored.Status)
	current, ok := stored.CurrentEstimate()
	require.True(t, ok)
	assert.Equal(t, target, current.Date)

	assert.Equal(t, []events.EventType{events.EventEstimatedSolutionAdded, events.EventTicketStatusChanged}, f.eventTypes())

	// A later estimate becomes the current one without another status change.
	later := target.Add(48 * time.Hour)
	_, err = f.svc.AddEstimatedSolution(context.Background(), nil, 1, later, "")
	require.NoError(t, err)
	stored, _ = f.tickets.GetByID(context.Background(), 1)
	current, _ = stored.CurrentEstimate()
	assert.Equal(t, later, current.Date)
	assert.Len(t, f.published, 3)
}

func TestMaintenanceEstimateRejectedOnClosedTicket(t *testing.T) {
	f := newMaintenanceFixture(t, domain.MaintenanceTicket{ID: 1, InstallationID: 1, Status: domain.TicketStatusCompleted})
	_, err := f.svc.AddEstimatedSolution(context.Background(), nil, 1, f.now, "")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", codeOf(err))

	_, err = f.svc.AddEstimatedSolution(context.Background(), nil, 1, time.Time{}, "")
	assert.Equal(t, "VALIDATION_FAILED", codeOf(err))
}

func TestMaintenanceUpdateResponsibleAndFaultType(t *testing.T) {
	f := newMaintenanceFixture(t, domain.MaintenanceTicket{
		ID: 1, InstallationID: 1, Status: domain.TicketStatusInProcess, FaultType: domain.FaultTypeOrdinary,
	})
	ctx := context.Background()

	ticket, err := f.svc.UpdateResponsible(ctx, nil, 1, 8)
	require.NoError(t, err)
	assert.Equal(t, "Pedro", ticket.ResponsibleName)

	_, err = f.svc.UpdateResponsible(ctx, nil, 1, 8)
	require.NoError(t, err)

	ticket, err = f.svc.UpdateFaultType(ctx, nil, 1, domain.FaultTypeOperational)
	require.NoError(t, err)
	assert.Equal(t, domain.FaultTypeOperational, ticket.FaultType)

	assert.Equal(t, []events.EventType{events.EventTicketResponsibleChanged, events.EventTicketFaultTypeChanged}, f.eventTypes())
	payload := f.published[1].Payload.(events.TicketFaultTypeChangedPayload)
	assert.Equal(t, int64(1), payload.InstallationID)
	assert.Equal(t, domain.FaultTypeOrdinary, payload.OldFaultType)

	_, err = f.svc.UpdateResponsible(ctx, nil, 1, 77)
	assert.Equal(t, "NOT_FOUND", codeOf(err))
}

func TestMaintenanceUpdateDetailsRecordsOnlyChanges(t *testing.T) {
	f := newMaintenanceFixture(t, domain.MaintenanceTicket{
		ID: 1, InstallationID: 1, Status: domain.TicketStatusInProcess, Description: "fuga", ActionsTaken: "",
	})
	same := "fuga"
	actions := "se cambió el sello"

	ticket, err := f.svc.UpdateDetails(context.Background(), nil, 1, TicketDetailsInput{Description: &same, ActionsTaken: &actions})
	require.NoError(t, err)
	assert.Equal(t, actions, ticket.ActionsTaken)
	assert.Equal(t, []domain.TicketChangeType{domain.ChangeTypeActions}, f.history.changeTypes())
}

func TestMaintenanceComments(t *testing.T) {
	f := newMaintenanceFixture(t, domain.MaintenanceTicket{ID: 1, InstallationID: 1, Status: domain.TicketStatusCompleted})
	actor := int64(5)

	entry, err := f.svc.AddComment(context.Background(), &actor, 1, "  revisado en puerto ")
	require.NoError(t, err)
	assert.Equal(t, "revisado en puerto", entry.Comment)

	comments, err := f.svc.Comments(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, &actor, comments[0].AuthorID)

	_, err = f.svc.AddComment(context.Background(), &actor, 1, "   ")
	assert.Equal(t, "VALIDATION_FAILED", codeOf(err))

	history, err := f.svc.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ChangeTypeComment, history[0].ChangeType)
}

func TestMaintenancePendingOrdersByDaysRemaining(t *testing.T) {
	now := time.Date(2024, 11, 9, 8, 0, 0, 0, time.UTC)
	withEstimate := func(id int64, status domain.TicketStatus, target time.Time) domain.MaintenanceTicket {
		return domain.MaintenanceTicket{
			ID: id, InstallationID: 1, Status: status, CreatedAt: now.Add(-240 * time.Hour),
			EstimatedSolutions: []domain.EstimatedSolution{{ID: id, TicketID: id, Date: target}},
		}
	}
	f := newMaintenanceFixture(t,
		withEstimate(1, domain.TicketStatusInProcess, now.Add(10*24*time.Hour)),
		withEstimate(2, domain.TicketStatusInProcess, now.Add(-2*24*time.Hour)),
		withEstimate(3, domain.TicketStatusRequested, now.Add(24*time.Hour)),
		withEstimate(4, domain.TicketStatusInProcess, now.Add(3*24*time.Hour)),
		domain.MaintenanceTicket{ID: 5, InstallationID: 1, Status: domain.TicketStatusInProcess},
	)

	pending, err := f.svc.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []int64{2, 4, 1}, []int64{pending[0].Ticket.ID, pending[1].Ticket.ID, pending[2].Ticket.ID})
	assert.Equal(t, -2, pending[0].DaysRemaining)
	assert.Equal(t, 10, pending[2].DaysRemaining)
}

func TestMaintenanceStatsAndList(t *testing.T) {
	f := newMaintenanceFixture(t,
		domain.MaintenanceTicket{ID: 1, InstallationID: 1, Status: domain.TicketStatusRequested},
		domain.MaintenanceTicket{ID: 2, InstallationID: 1, Status: domain.TicketStatusInProcess},
		domain.MaintenanceTicket{ID: 3, InstallationID: 2, Status: domain.TicketStatusInProcess},
		domain.MaintenanceTicket{ID: 4, InstallationID: 1, Status: domain.TicketStatusCompleted},
	)

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Requested)
	assert.Equal(t, 2, stats.InProcess)

	installation := int64(1)
	tickets, err := f.svc.List(context.Background(), TicketListFilter{
		InstallationID: &installation,
		Statuses:       domain.OpenStatuses,
	})
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, int64(1), tickets[0].ID)

	_, err = f.svc.List(context.Background(), TicketListFilter{Statuses: []domain.TicketStatus{"CERRADO"}})
	assert.Equal(t, "VALIDATION_FAILED", codeOf(err))
}
