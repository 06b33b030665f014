package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fleetops/maintenance-service/internal/domain"
	"github.com/fleetops/maintenance-service/internal/escalation"
	"github.com/fleetops/maintenance-service/internal/notify"
	"github.com/fleetops/maintenance-service/internal/repository"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[int64]*domain.MaintenanceTicket
	nextID  int64
	now     func() time.Time
	listErr error
}

func newFakeTicketRepo(now func() time.Time, tickets ...domain.MaintenanceTicket) *fakeTicketRepo {
	r := &fakeTicketRepo{tickets: map[int64]*domain.MaintenanceTicket{}, now: now}
	for i := range tickets {
		t := tickets[i]
		r.tickets[t.ID] = &t
		if t.ID > r.nextID {
			r.nextID = t.ID
		}
	}
	return r
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.MaintenanceTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ticket.ID = r.nextID
	ticket.Folio = fmt.Sprintf("INS-%d", ticket.ID)
	ticket.CreatedAt = r.now()
	ticket.UpdatedAt = ticket.CreatedAt
	cp := *ticket
	r.tickets[ticket.ID] = &cp
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.MaintenanceTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	cp := *ticket
	cp.EstimatedSolutions = existing.EstimatedSolutions
	r.tickets[ticket.ID] = &cp
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id int64) (*domain.MaintenanceTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.MaintenanceTicket, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.MaintenanceTicket
	for _, t := range r.tickets {
		if filter.InstallationID != nil && t.InstallationID != *filter.InstallationID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTicketRepo) AddEstimatedSolution(_ context.Context, estimate *domain.EstimatedSolution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[estimate.TicketID]
	if !ok {
		return pgx.ErrNoRows
	}
	estimate.ID = int64(len(t.EstimatedSolutions) + 1)
	estimate.CreatedAt = r.now()
	t.EstimatedSolutions = append([]domain.EstimatedSolution{*estimate}, t.EstimatedSolutions...)
	return nil
}

func (r *fakeTicketRepo) Stats(_ context.Context, _ time.Time) (domain.TicketStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats domain.TicketStats
	for _, t := range r.tickets {
		switch t.Status {
		case domain.TicketStatusRequested:
			stats.Requested++
		case domain.TicketStatusInProcess:
			stats.InProcess++
		}
	}
	return stats, nil
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeInstallationRepo map[int64]domain.Installation

func (r fakeInstallationRepo) Create(_ context.Context, inst *domain.Installation) error {
	inst.ID = int64(len(r) + 1)
	r[inst.ID] = *inst
	return nil
}

func (r fakeInstallationRepo) GetByID(_ context.Context, id int64) (*domain.Installation, error) {
	inst, ok := r[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &inst, nil
}

func (r fakeInstallationRepo) List(_ context.Context) ([]domain.Installation, error) {
	out := make([]domain.Installation, 0, len(r))
	for _, inst := range r {
		out = append(out, inst)
	}
	return out, nil
}

type fakeResponsibleRepo map[int64]domain.ResponsibleParty

func (r fakeResponsibleRepo) GetByID(_ context.Context, id int64) (*domain.ResponsibleParty, error) {
	p, ok := r[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &p, nil
}

func (r fakeResponsibleRepo) List(_ context.Context) ([]domain.ResponsibleParty, error) {
	out := make([]domain.ResponsibleParty, 0, len(r))
	for _, p := range r {
		out = append(out, p)
	}
	return out, nil
}

type fakeActionLogRepo struct {
	entries []domain.ActionLogEntry
}

func (r *fakeActionLogRepo) Create(_ context.Context, entry *domain.ActionLogEntry) error {
	entry.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeActionLogRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.ActionLogEntry, error) {
	var out []domain.ActionLogEntry
	for _, e := range r.entries {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeHistoryRepo struct {
	entries []domain.TicketHistory
}

func (r *fakeHistoryRepo) Create(_ context.Context, h *domain.TicketHistory) error {
	h.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, *h)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	var out []domain.TicketHistory
	for _, e := range r.entries {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) changeTypes() []domain.TicketChangeType {
	out := make([]domain.TicketChangeType, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.ChangeType)
	}
	return out
}

type fakeNotificationRepo struct {
	items []domain.GeneratedNotification
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *domain.GeneratedNotification) error {
	n.ID = int64(len(r.items) + 1)
	r.items = append(r.items, *n)
	return nil
}

func (r *fakeNotificationRepo) List(_ context.Context, _ repository.NotificationFilter) ([]domain.GeneratedNotification, error) {
	return r.items, nil
}

// subscription is one opted-in user_roles row.
type subscription struct {
	recipient domain.Recipient
	group     domain.NotificationGroupID
}

type fakeRecipientRepo struct {
	mu      sync.Mutex
	subs    []subscription
	queries []repository.RecipientQuery
	err     error
}

func (r *fakeRecipientRepo) ListRecipients(_ context.Context, q repository.RecipientQuery) ([]domain.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
	if r.err != nil {
		return nil, r.err
	}
	var out []domain.Recipient
	for _, s := range r.subs {
		if s.group != q.Group {
			continue
		}
		if len(q.Roles) > 0 && !containsRole(q.Roles, s.recipient.RoleID) {
			continue
		}
		if len(q.UserIDs) > 0 && !containsID(q.UserIDs, s.recipient.UserID) {
			continue
		}
		out = append(out, s.recipient)
	}
	return out, nil
}

func containsRole(list []domain.RoleID, v domain.RoleID) bool {
	for _, r := range list {
		if r == v {
			return true
		}
	}
	return false
}

func containsID(list []int64, v int64) bool {
	for _, id := range list {
		if id == v {
			return true
		}
	}
	return false
}

type sentMessage struct {
	msg              notify.Message
	attachmentExists bool
}

type fakeMailer struct {
	mu   sync.Mutex
	fail map[string]error
	sent []sentMessage
}

func (m *fakeMailer) Send(_ context.Context, msg notify.Message) (string, error) {
	if err := m.fail[msg.To]; err != nil {
		return "", err
	}
	exists := false
	if msg.AttachmentPath != "" {
		_, err := os.Stat(msg.AttachmentPath)
		exists = err == nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{msg: msg, attachmentExists: exists})
	return "msg-" + msg.To, nil
}

func (m *fakeMailer) subjectsTo(to string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		if s.msg.To == to {
			out = append(out, s.msg.Subject)
		}
	}
	return out
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeExporter struct {
	dir      string
	err      error
	paths    []string
	deadline [][]escalation.ClassifiedTicket
	critical []escalation.CriticalReport
}

func (e *fakeExporter) write(prefix string) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	path := filepath.Join(e.dir, fmt.Sprintf("%s-%d.xlsx", prefix, len(e.paths)))
	if err := os.WriteFile(path, []byte("xlsx"), 0o600); err != nil {
		return "", err
	}
	e.paths = append(e.paths, path)
	return path, nil
}

func (e *fakeExporter) DeadlineWorkbook(tickets []escalation.ClassifiedTicket, _ time.Time) (string, error) {
	e.deadline = append(e.deadline, tickets)
	return e.write("deadline")
}

func (e *fakeExporter) CriticalWorkbook(_ string, report escalation.CriticalReport, _ time.Time) (string, error) {
	e.critical = append(e.critical, report)
	return e.write("critical")
}

type fakeLocker struct {
	held     bool
	err      error
	locked   int
	unlocked int
}

func (l *fakeLocker) TryLock(_ context.Context, _ string, _ time.Duration) (string, bool, error) {
	if l.err != nil {
		return "", false, l.err
	}
	if l.held {
		return "", false, nil
	}
	l.locked++
	return "token", true, nil
}

func (l *fakeLocker) Unlock(_ context.Context, _, token string) error {
	if token != "token" {
		return errors.New("foreign token")
	}
	l.unlocked++
	return nil
}

type fakeStore map[string][]byte

func (s fakeStore) SaveJSON(_ context.Context, key string, v any, _ time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s[key] = data
	return nil
}

func (s fakeStore) LoadJSON(_ context.Context, key string, dst any) (bool, error) {
	data, ok := s[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dst)
}

type fakeCritical struct {
	calls []int64
}

func (f *fakeCritical) Evaluate(_ context.Context, installationID int64) (*CriticalSummary, error) {
	f.calls = append(f.calls, installationID)
	return &CriticalSummary{InstallationID: installationID}, nil
}
