package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/maintenance-service/internal/domain"
	"github.com/fleetops/maintenance-service/internal/notify"
)

type criticalFixture struct {
	svc        *CriticalConditionService
	recipients *fakeRecipientRepo
	mailer     *fakeMailer
	exporter   *fakeExporter
}

func newCriticalFixture(t *testing.T, tickets []domain.MaintenanceTicket) *criticalFixture {
	t.Helper()
	now := time.Date(2024, 11, 20, 12, 0, 0, 0, time.UTC)
	renderer, err := notify.NewRenderer("https://geop.example.com", time.UTC)
	require.NoError(t, err)

	f := &criticalFixture{
		recipients: &fakeRecipientRepo{subs: []subscription{
			{recipient: domain.Recipient{UserID: 1, Email: "oopp@fleet.cl", RoleID: domain.RoleOversight}, group: domain.GroupCriticalAlerts},
			{recipient: domain.Recipient{UserID: 2, Email: "gerencia@fleet.cl", RoleID: domain.RoleAdmin}, group: domain.GroupCriticalAlerts},
			{recipient: domain.Recipient{UserID: 3, Email: "plazos@fleet.cl", RoleID: domain.RoleOversight}, group: domain.GroupDeadlineAlerts},
		}},
		mailer:   &fakeMailer{},
		exporter: &fakeExporter{dir: t.TempDir()},
	}
	f.svc = NewCriticalConditionService(CriticalDependencies{
		InstallationRepo: fakeInstallationRepo{1: {ID: 1, Name: "Barco Uno"}, 2: {ID: 2, Name: "Barco Dos"}},
		TicketRepo:       newFakeTicketRepo(fixedClock(now), tickets...),
		RecipientRepo:    f.recipients,
		Mailer:           f.mailer,
		Renderer:         renderer,
		Exporter:         f.exporter,
		Concurrency:      4,
		Clock:            fixedClock(now),
	})
	return f
}

func faultTickets(startID int64, installationID int64, fault domain.FaultType, status domain.TicketStatus, n int) []domain.MaintenanceTicket {
	out := make([]domain.MaintenanceTicket, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.MaintenanceTicket{
			ID:             startID + int64(i),
			InstallationID: installationID,
			FaultType:      fault,
			Status:         status,
		})
	}
	return out
}

func TestCriticalEvaluateUnknownInstallation(t *testing.T) {
	f := newCriticalFixture(t, nil)

	_, err := f.svc.Evaluate(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", codeOf(err))
	assert.Empty(t, f.recipients.queries)
	assert.Zero(t, f.mailer.count())
}

func TestCriticalEvaluateBelowThresholds(t *testing.T) {
	var tickets []domain.MaintenanceTicket
	tickets = append(tickets, faultTickets(1, 1, domain.FaultTypeOrdinary, domain.TicketStatusInProcess, 14)...)
	tickets = append(tickets, faultTickets(100, 1, domain.FaultTypeEquipment, domain.TicketStatusRequested, 4)...)
	tickets = append(tickets, faultTickets(200, 1, domain.FaultTypeOperational, domain.TicketStatusCompleted, 3)...)
	f := newCriticalFixture(t, tickets)

	summary, err := f.svc.Evaluate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 18, summary.OpenTickets)
	assert.Empty(t, summary.Conditions)
	assert.Empty(t, f.recipients.queries)
	assert.Zero(t, f.mailer.count())
}

func TestCriticalEvaluateAlertsGroupTwo(t *testing.T) {
	var tickets []domain.MaintenanceTicket
	tickets = append(tickets, faultTickets(1, 1, domain.FaultTypeOrdinary, domain.TicketStatusInProcess, 10)...)
	tickets = append(tickets, faultTickets(20, 1, domain.FaultTypeOrdinary, domain.TicketStatusRequested, 5)...)
	tickets = append(tickets, faultTickets(40, 2, domain.FaultTypeOperational, domain.TicketStatusInProcess, 1)...)
	f := newCriticalFixture(t, tickets)

	summary, err := f.svc.Evaluate(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "Barco Uno", summary.InstallationName)
	require.Len(t, summary.Conditions, 1)
	assert.Contains(t, summary.Conditions[0], "15")
	assert.Equal(t, 2, summary.Recipients)
	assert.Equal(t, notify.Summary{Attempted: 2, Sent: 2}, summary.Delivery)

	require.Len(t, f.recipients.queries, 1)
	assert.Equal(t, domain.GroupCriticalAlerts, f.recipients.queries[0].Group)
	assert.Equal(t, []string{"Alerta Condiciones Críticas Instalación Barco Uno 20-11-2024."}, f.mailer.subjectsTo("oopp@fleet.cl"))
	assert.Empty(t, f.mailer.subjectsTo("plazos@fleet.cl"))

	require.Len(t, f.exporter.critical, 1)
	assert.Len(t, f.exporter.critical[0].OrdinaryFaults, 15)
	assert.Empty(t, f.exporter.critical[0].OperationalFaults)
	for _, s := range f.mailer.sent {
		assert.True(t, s.attachmentExists)
	}
	for _, p := range f.exporter.paths {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err))
	}
}

func TestCriticalEvaluateSingleOperationalFault(t *testing.T) {
	f := newCriticalFixture(t, faultTickets(1, 2, domain.FaultTypeOperational, domain.TicketStatusRequested, 1))

	summary, err := f.svc.Evaluate(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, summary.Conditions, 1)
	assert.Equal(t, 2, f.mailer.count())
}

func TestCriticalEvaluateWithoutRecipients(t *testing.T) {
	f := newCriticalFixture(t, faultTickets(1, 2, domain.FaultTypeOperational, domain.TicketStatusRequested, 1))
	f.recipients.subs = nil

	summary, err := f.svc.Evaluate(context.Background(), 2)
	require.NoError(t, err)
	assert.Zero(t, summary.Recipients)
	assert.Empty(t, f.exporter.paths)
	assert.Zero(t, f.mailer.count())
}

func TestCriticalEvaluateDedupesRecipientMailboxes(t *testing.T) {
	f := newCriticalFixture(t, faultTickets(1, 2, domain.FaultTypeOperational, domain.TicketStatusRequested, 1))
	f.recipients.subs = append(f.recipients.subs,
		subscription{recipient: domain.Recipient{UserID: 10, Email: "a@x.cl", RoleID: domain.RoleOversight}, group: domain.GroupCriticalAlerts},
		subscription{recipient: domain.Recipient{UserID: 11, Email: " A@x.cl", RoleID: domain.RoleAdmin}, group: domain.GroupCriticalAlerts},
		subscription{recipient: domain.Recipient{UserID: 12, Email: "", RoleID: domain.RoleAdmin}, group: domain.GroupCriticalAlerts},
	)

	summary, err := f.svc.Evaluate(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Recipients)
	assert.Equal(t, notify.Summary{Attempted: 3, Sent: 3}, summary.Delivery)
	assert.Len(t, f.mailer.subjectsTo("a@x.cl"), 1)
	assert.Equal(t, 3, f.mailer.count())
}

func TestRecipientEmails(t *testing.T) {
	got := recipientEmails([]domain.Recipient{
		{Email: "Jefe@Fleet.cl"},
		{Email: "otro@fleet.cl"},
		{Email: " jefe@fleet.cl "},
		{Email: "  "},
		{Email: "OTRO@FLEET.CL"},
	})
	assert.Equal(t, []string{"Jefe@Fleet.cl", "otro@fleet.cl"}, got)
}
